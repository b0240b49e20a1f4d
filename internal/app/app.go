// Package app wires configuration, logging, the completion provider, the
// terminal surface and the controller into a runnable program.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/dshills/ghostwriter/internal/config"
	"github.com/dshills/ghostwriter/internal/config/notify"
	"github.com/dshills/ghostwriter/internal/controller"
	"github.com/dshills/ghostwriter/internal/eventloop"
	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/provider"
	"github.com/dshills/ghostwriter/internal/surface/terminal"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty uses config.DefaultPath.
	ConfigPath string

	// Watch reloads the configuration when the file changes.
	Watch bool

	// LogLevel, Provider and Model override the configuration when set.
	LogLevel string
	Provider string
	Model    string

	// InputFile seeds the document. OutputFile receives the final text on
	// shutdown.
	InputFile  string
	OutputFile string

	// Screen replaces the terminal screen. Used by tests.
	Screen tcell.Screen

	// ReadClipboard replaces the system clipboard.
	ReadClipboard func() (string, error)
}

// Application is the ghostwriter program.
type Application struct {
	opts Options

	config    *config.Config
	configSub *notify.Subscription
	logger    *logging.Logger
	logFile   *os.File
	registry  *provider.Registry

	loop *eventloop.Loop
	term *terminal.Terminal
	ctrl *controller.Controller

	screenReady bool
	running     atomic.Bool
	closed      bool
}

// New creates and bootstraps an application.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:     opts,
		logger:   logging.NullLogger(),
		registry: NewRegistry(),
	}
	if err := app.bootstrap(); err != nil {
		_ = app.Shutdown()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Configuration
	if err := app.initConfig(); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	// 2. Logging
	if err := app.initLogger(); err != nil {
		return &InitError{Component: "logging", Err: err}
	}

	// 3. Event loop
	app.loop = eventloop.New(
		eventloop.WithUnhandled(app.unhandled),
		eventloop.WithIdle(app.draw),
	)

	// 4. Terminal surface
	ui := app.config.UI()
	term, err := terminal.New(terminal.Options{
		Screen:        app.opts.Screen,
		Loop:          app.loop,
		Logger:        app.logger,
		Foreground:    ui.Foreground,
		Background:    ui.Background,
		OnQuit:        app.Quit,
		ReadClipboard: app.opts.ReadClipboard,
	})
	if err != nil {
		return &InitError{Component: "terminal", Err: err}
	}
	app.term = term

	// 5. Completion controller
	if err := app.initController(); err != nil {
		return &InitError{Component: "controller", Err: err}
	}

	// 6. Live configuration
	app.configSub = app.config.Subscribe(func(ch notify.Change) {
		if ch.Type == notify.ChangeReload {
			app.loop.Post(app.applyConfig)
		}
	})

	app.logger.Info("ghostwriter started with provider %s", app.config.AI().Provider)
	return nil
}

func (app *Application) initConfig() error {
	overrides := make(map[string]any)
	if app.opts.LogLevel != "" {
		overrides["logging.level"] = app.opts.LogLevel
	}
	if app.opts.Provider != "" {
		overrides["ai.provider"] = app.opts.Provider
	}
	if app.opts.Model != "" {
		overrides["ai.model"] = app.opts.Model
	}
	app.config = config.New(
		config.WithFile(app.opts.ConfigPath),
		config.WithWatcher(app.opts.Watch),
		config.WithOverrides(overrides),
	)
	return app.config.Load(context.Background())
}

// initLogger writes to the configured log file. Without one the logger
// discards everything so that nothing draws over the screen.
func (app *Application) initLogger() error {
	lc := app.config.Logging()
	if lc.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(lc.File), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	app.logFile = f
	app.logger = logging.NewLogger(logging.LoggerConfig{
		Level:  logging.ParseLogLevel(lc.Level),
		Output: f,
		Format: lc.Format,
		Prefix: "ghostwriter",
	})
	logging.SetLogger(app.logger)
	return nil
}

func (app *Application) initController() error {
	value := ""
	if app.opts.InputFile != "" {
		data, err := os.ReadFile(app.opts.InputFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		value = string(data)
	}

	handler, err := app.buildHandler()
	if err != nil {
		// Completions report ErrNoHandler until a reload fixes the provider.
		app.logger.WithError(err).Warn("no completion provider")
	}

	cc := app.config.Completion()
	ctrl, err := controller.New(controller.Options{
		Surface:       app.term,
		Loop:          app.loop,
		InitialValue:  value,
		TextOnly:      cc.TextOnly,
		Delay:         cc.Delay,
		Handler:       handler,
		ErrorHandler:  app.reportError,
		OnChange:      app.onChange,
		Placeholder:   cc.Placeholder,
		GhostClass:    cc.GhostClass,
		Boundary:      cc.Boundary,
		TrailingBreak: cc.TrailingBreak,
		Logger:        app.logger,
	})
	if err != nil {
		return err
	}
	app.ctrl = ctrl
	return nil
}

func (app *Application) buildHandler() (lifecycle.Handler, error) {
	return app.registry.Build(providerSettings(app.config.AI(), app.config.SSE()), app.logger)
}

// applyConfig pushes reloaded settings into the running controller. A
// provider that fails to build leaves the previous one in place.
func (app *Application) applyConfig() {
	app.logger.SetLevel(logging.ParseLogLevel(app.config.Logging().Level))

	opts := controllerUpdates(app.config.Completion())
	status := "configuration reloaded"
	handler, err := app.buildHandler()
	if err != nil {
		app.logger.WithError(err).Warn("keeping previous provider")
		status = "provider: " + err.Error()
	} else {
		opts = append(opts, controller.WithHandler(handler))
	}
	if err := app.ctrl.Update(opts...); err != nil {
		app.logger.WithError(err).Debug("reload ignored")
		return
	}
	for path, err := range app.config.Errors() {
		app.logger.Warn("config %s: %v", path, err)
	}
	app.setStatus(status)
}

// Run shows the terminal and processes events until Quit is called or ctx
// is done.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if err := app.initScreen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.term.Start(ctx)

	err := app.loop.Run(ctx)
	switch {
	case err == nil,
		errors.Is(err, eventloop.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, ErrQuit):
		return nil
	default:
		return err
	}
}

func (app *Application) initScreen() error {
	if app.screenReady {
		return nil
	}
	if err := app.term.Init(); err != nil {
		return &InitError{Component: "screen", Err: err}
	}
	app.screenReady = true
	return nil
}

// Quit stops the event loop. It is safe to call from any goroutine.
func (app *Application) Quit() {
	app.loop.Stop()
}

// Value returns the document text without ghost text.
func (app *Application) Value() string {
	if app.ctrl == nil {
		return ""
	}
	return app.ctrl.Value()
}

// Shutdown releases every component in reverse order of creation and
// writes the output file. It must not be called while Run is active.
func (app *Application) Shutdown() error {
	if app.closed {
		return nil
	}
	app.closed = true

	var result *multierror.Error
	if app.configSub != nil {
		app.configSub.Unsubscribe()
	}
	if app.ctrl != nil {
		if app.opts.OutputFile != "" {
			if err := os.WriteFile(app.opts.OutputFile, []byte(app.ctrl.Value()), 0o644); err != nil {
				result = multierror.Append(result, fmt.Errorf("writing output: %w", err))
			}
		}
		if err := app.ctrl.Close(); err != nil && !errors.Is(err, controller.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}
	if app.term != nil && app.screenReady {
		app.term.Shutdown()
		app.screenReady = false
	}
	if app.config != nil {
		app.config.Close()
	}
	if app.logFile != nil {
		app.logger.Info("ghostwriter stopped")
		if err := app.logger.Sync(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := app.logFile.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (app *Application) onChange(value string) {
	app.logger.Debug("value changed (%d bytes)", len(value))
}

func (app *Application) reportError(err error) {
	app.logger.WithError(err).Warn("completion failed")
	app.setStatus(describe(err))
}

func (app *Application) unhandled(err error) {
	app.logger.WithError(err).Error("unhandled error")
	app.setStatus(describe(err))
}

func (app *Application) setStatus(msg string) {
	if app.screenReady {
		app.term.SetStatus(msg)
	}
}

func (app *Application) draw() {
	if app.screenReady {
		app.term.Draw()
	}
}
