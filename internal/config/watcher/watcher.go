// Package watcher reports changes to configuration files. It watches each
// file's directory so that editors which replace files on save are seen,
// and coalesces bursts of events per file.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/ghostwriter/internal/logging"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 100 * time.Millisecond

// Operation is the kind of file change.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota
	// OpCreate indicates the file was created.
	OpCreate
	// OpRemove indicates the file was removed or renamed away.
	OpRemove
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is a debounced file change.
type Event struct {
	// Path is the absolute path of the changed file.
	Path string
	Op   Operation
	Time time.Time
}

// Handler is called when a watched file changes.
type Handler func(event Event)

// Watcher monitors files for changes.
type Watcher struct {
	mu       sync.Mutex
	fs       *fsnotify.Watcher
	files    map[string]bool
	dirs     map[string]bool
	handlers []Handler
	debounce time.Duration
	pending  map[string]*time.Timer
	logger   *logging.Logger
	done     chan struct{}
	running  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) { w.logger = logging.OrNull(l).WithComponent("watcher") }
}

// New creates a watcher.
func New(opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fs,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		debounce: DefaultDebounce,
		pending:  make(map[string]*time.Timer),
		logger:   logging.NullLogger(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds a file. The file need not exist yet; its directory must.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	w.files[abs] = true
	return nil
}

// OnChange registers a handler.
func (w *Watcher) OnChange(h Handler) {
	w.mu.Lock()
	w.handlers = append(w.handlers, h)
	w.mu.Unlock()
}

// Start begins delivering events.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	go w.loop()
}

// Stop ends watching and cancels pending events. It is safe to call more
// than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return
	default:
	}
	close(w.done)
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	op, ok := convertOp(ev.Op)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path, op) })
}

func (w *Watcher) fire(path string, op Operation) {
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return
	default:
	}
	delete(w.pending, path)
	handlers := append([]Handler(nil), w.handlers...)
	w.mu.Unlock()

	w.logger.Debug("%s %s", op, path)
	ev := Event{Path: path, Op: op, Time: time.Now()}
	for _, h := range handlers {
		h(ev)
	}
}

// convertOp maps an fsnotify operation. Chmod alone is ignored.
func convertOp(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpRemove, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	default:
		return 0, false
	}
}
