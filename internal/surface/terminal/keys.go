package terminal

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/ghostwriter/internal/surface"
)

// convertKey converts a tcell key event to a surface key and modifiers.
// Ctrl+Space and Ctrl+J arrive where terminals cannot report Ctrl+Enter, so
// both become Enter with the control modifier.
func convertKey(e *tcell.EventKey) (surface.Key, surface.ModMask) {
	mod := convertMod(e.Modifiers())
	switch e.Key() {
	case tcell.KeyRune:
		// Shift is part of the rune itself.
		return surface.KeyRune, mod &^ surface.ModShift
	case tcell.KeyEscape:
		return surface.KeyEscape, mod
	case tcell.KeyEnter:
		return surface.KeyEnter, mod
	case tcell.KeyCtrlSpace, tcell.KeyCtrlJ:
		return surface.KeyEnter, mod | surface.ModCtrl
	case tcell.KeyTab:
		return surface.KeyTab, mod
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return surface.KeyBackspace, mod &^ surface.ModCtrl
	case tcell.KeyDelete:
		return surface.KeyDelete, mod
	case tcell.KeyHome, tcell.KeyCtrlA:
		return surface.KeyHome, mod &^ surface.ModCtrl
	case tcell.KeyEnd, tcell.KeyCtrlE:
		return surface.KeyEnd, mod &^ surface.ModCtrl
	case tcell.KeyPgUp:
		return surface.KeyPageUp, mod
	case tcell.KeyPgDn:
		return surface.KeyPageDown, mod
	case tcell.KeyUp:
		return surface.KeyUp, mod
	case tcell.KeyDown:
		return surface.KeyDown, mod
	case tcell.KeyLeft:
		return surface.KeyLeft, mod
	case tcell.KeyRight:
		return surface.KeyRight, mod
	case tcell.KeyF1:
		return surface.KeyF1, mod
	default:
		return surface.KeyNone, mod
	}
}

// convertMod converts tcell modifier mask to a surface ModMask.
func convertMod(m tcell.ModMask) surface.ModMask {
	var result surface.ModMask
	if m&tcell.ModShift != 0 {
		result |= surface.ModShift
	}
	if m&tcell.ModCtrl != 0 {
		result |= surface.ModCtrl
	}
	if m&tcell.ModAlt != 0 {
		result |= surface.ModAlt
	}
	if m&tcell.ModMeta != 0 {
		result |= surface.ModMeta
	}
	return result
}
