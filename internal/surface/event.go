package surface

// EventType identifies the type of a surface event.
type EventType int

const (
	EventNone EventType = iota
	// EventKey is a key press, dispatched before the host's default action.
	EventKey
	// EventInput follows any change the host made to the document.
	EventInput
	// EventPaste carries clipboard content.
	EventPaste
	// EventDrop carries dropped content.
	EventDrop
	// EventCompositionStart begins an input-method composition.
	EventCompositionStart
	// EventCompositionEnd ends an input-method composition.
	EventCompositionEnd
	// EventResize reports new surface dimensions.
	EventResize
	// EventFocus reports focus gained or lost.
	EventFocus
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventKey:
		return "key"
	case EventInput:
		return "input"
	case EventPaste:
		return "paste"
	case EventDrop:
		return "drop"
	case EventCompositionStart:
		return "compositionstart"
	case EventCompositionEnd:
		return "compositionend"
	case EventResize:
		return "resize"
	case EventFocus:
		return "focus"
	default:
		return "none"
	}
}

// Event is a surface event.
type Event struct {
	Type EventType

	// Key event fields
	Key  Key
	Rune rune
	Mod  ModMask

	// Paste and drop fields. Text is the plain-text payload; Rich is set
	// when the payload also carried formatted content.
	Text string
	Rich bool

	// Resize event fields
	Width, Height int

	// Focus event fields
	Focused bool

	prevented bool
}

// PreventDefault stops the host from running its default action.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Key represents a keyboard key.
type Key int

// Key constants for special keys.
const (
	KeyNone Key = iota
	KeyRune     // Regular character (use Rune field)
	KeyEscape
	KeyEnter
	KeyTab
	KeyBackspace
	KeyDelete
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyF1
)

// String returns the key name.
func (k Key) String() string {
	switch k {
	case KeyRune:
		return "Rune"
	case KeyEscape:
		return "Escape"
	case KeyEnter:
		return "Enter"
	case KeyTab:
		return "Tab"
	case KeyBackspace:
		return "Backspace"
	case KeyDelete:
		return "Delete"
	case KeyHome:
		return "Home"
	case KeyEnd:
		return "End"
	case KeyPageUp:
		return "PageUp"
	case KeyPageDown:
		return "PageDown"
	case KeyUp:
		return "ArrowUp"
	case KeyDown:
		return "ArrowDown"
	case KeyLeft:
		return "ArrowLeft"
	case KeyRight:
		return "ArrowRight"
	case KeyF1:
		return "F1"
	default:
		return "Unidentified"
	}
}

// ModMask represents modifier key state.
type ModMask int

const (
	ModNone  ModMask = 0
	ModShift ModMask = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has returns true if the mask contains the given modifier.
func (m ModMask) Has(mod ModMask) bool {
	return m&mod != 0
}
