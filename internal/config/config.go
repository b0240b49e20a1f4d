// Package config loads ghostwriter settings from built-in defaults, a TOML
// file, environment variables and command-line overrides, merged in that
// order of increasing priority. The file is watched and reloads are
// reported to subscribers as per-setting changes.
//
//	# ~/.config/ghostwriter/config.toml
//	[completion]
//	delay = 400
//
//	[ai]
//	provider = "anthropic"
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/ghostwriter/internal/config/layer"
	"github.com/dshills/ghostwriter/internal/config/loader"
	"github.com/dshills/ghostwriter/internal/config/notify"
	"github.com/dshills/ghostwriter/internal/config/watcher"
	"github.com/dshills/ghostwriter/internal/logging"
)

// Layer names.
const (
	layerDefaults = "defaults"
	layerFile     = "file"
	layerEnv      = "environment"
	layerArgs     = "arguments"
	layerSession  = "session"
)

// Config provides merged access to all settings.
type Config struct {
	mu sync.RWMutex

	layers   *layer.Manager
	notifier *notify.Notifier
	watcher  *watcher.Watcher
	logger   *logging.Logger

	path          string
	envPrefix     string
	overrides     map[string]any
	enableWatcher bool
	debounce      time.Duration
	closed        bool

	// configErrors holds the first type error seen per path.
	configErrors map[string]error
}

// Option configures a Config.
type Option func(*Config)

// WithFile sets the TOML file. Empty uses DefaultPath.
func WithFile(path string) Option {
	return func(c *Config) { c.path = path }
}

// WithWatcher enables live reload of the file.
func WithWatcher(enable bool) Option {
	return func(c *Config) { c.enableWatcher = enable }
}

// WithDebounce sets the reload quiet period.
func WithDebounce(d time.Duration) Option {
	return func(c *Config) { c.debounce = d }
}

// WithEnvPrefix sets the prefix of scanned environment variables.
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) { c.envPrefix = prefix }
}

// WithOverrides sets command-line values by dot path. They take priority
// over every other source except Set.
func WithOverrides(values map[string]any) Option {
	return func(c *Config) {
		for path, v := range values {
			c.overrides[path] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Config) { c.logger = logging.OrNull(l).WithComponent("config") }
}

// New creates a Config. Load must be called before use.
func New(opts ...Option) *Config {
	c := &Config{
		layers:        layer.NewManager(),
		notifier:      notify.New(),
		logger:        logging.NullLogger(),
		envPrefix:     loader.DefaultPrefix,
		overrides:     make(map[string]any),
		enableWatcher: true,
		debounce:      watcher.DefaultDebounce,
		configErrors:  make(map[string]error),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.path == "" {
		c.path = DefaultPath()
	}
	return c
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ghostwriter", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ghostwriter", "config.toml")
}

// Path returns the configuration file.
func (c *Config) Path() string { return c.path }

// Load reads every source and starts the watcher. A missing file is not an
// error; a malformed one is.
func (c *Config) Load(_ context.Context) error {
	c.layers.Put(layer.New(layerDefaults, layer.SourceBuiltin, defaultConfig()))

	if err := c.loadFile(); err != nil {
		return err
	}

	env, err := loader.NewEnvLoader(c.envPrefix).Load()
	if err != nil {
		return err
	}
	c.layers.Put(layer.New(layerEnv, layer.SourceEnv, env))

	args := make(map[string]any)
	for path, v := range c.overrides {
		layer.SetByPath(args, path, v)
	}
	c.layers.Put(layer.New(layerArgs, layer.SourceArgs, args))

	if !c.enableWatcher {
		return nil
	}
	w, err := watcher.New(watcher.WithDebounce(c.debounce), watcher.WithLogger(c.logger))
	if err != nil {
		return fmt.Errorf("starting config watcher: %w", err)
	}
	if err := w.Watch(c.path); err != nil {
		// The directory may not exist; live reload is then unavailable.
		c.logger.WithError(err).Debug("not watching %s", c.path)
		w.Stop()
		return nil
	}
	w.OnChange(c.handleFileChange)
	c.mu.Lock()
	c.watcher = w
	c.mu.Unlock()
	w.Start()
	return nil
}

func (c *Config) loadFile() error {
	data, err := loader.NewTOMLLoader(c.path).Load()
	if err != nil {
		return err
	}
	if data == nil {
		c.layers.Remove(layerFile)
		return nil
	}
	l := layer.New(layerFile, layer.SourceFile, data)
	l.Path = c.path
	c.layers.Put(l)
	return nil
}

// Reload rereads the file and notifies subscribers of every setting whose
// merged value changed, followed by a reload event. A malformed file keeps
// the previous values.
func (c *Config) Reload() error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	before := c.layers.Merge()
	if err := c.loadFile(); err != nil {
		c.logger.WithError(err).Warn("reload of %s failed", c.path)
		return err
	}
	after := c.layers.Merge()

	c.mu.Lock()
	c.configErrors = make(map[string]error)
	c.mu.Unlock()

	added, modified, removed := layer.Diff(before, after)
	for _, path := range append(added, modified...) {
		oldValue, _ := layer.GetByPath(before, path)
		newValue, _ := layer.GetByPath(after, path)
		c.notifier.NotifySet(path, oldValue, newValue, c.path)
	}
	for _, path := range removed {
		oldValue, _ := layer.GetByPath(before, path)
		c.notifier.NotifyDelete(path, oldValue, c.path)
	}
	c.notifier.NotifyReload(c.path)
	c.logger.Info("reloaded %s (%d changed)", c.path, len(added)+len(modified)+len(removed))
	return nil
}

func (c *Config) handleFileChange(watcher.Event) {
	_ = c.Reload()
}

// Close stops the watcher and notifications.
func (c *Config) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	w := c.watcher
	c.mu.Unlock()
	if w != nil {
		w.Stop()
	}
	c.notifier.Close()
}

// Subscribe registers an observer for all changes.
func (c *Config) Subscribe(observer notify.Observer) *notify.Subscription {
	return c.notifier.Subscribe(observer)
}

// SubscribePath registers an observer for changes under path.
func (c *Config) SubscribePath(path string, observer notify.Observer) *notify.Subscription {
	return c.notifier.SubscribePath(path, observer)
}

// Get returns the merged value at path.
func (c *Config) Get(path string) (any, bool) {
	return layer.GetByPath(c.layers.Merge(), path)
}

// Source returns the name of the layer providing path.
func (c *Config) Source(path string) string {
	return c.layers.Which(path)
}

// Merged returns a copy of the merged configuration.
func (c *Config) Merged() map[string]any {
	return c.layers.Merge()
}

// Set overrides path for the rest of the session and notifies subscribers.
func (c *Config) Set(path string, value any) error {
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") {
		return ErrInvalidPath
	}
	oldValue, _ := c.Get(path)
	c.layers.Set(layerSession, path, value)
	c.notifier.NotifySet(path, oldValue, value, layerSession)
	return nil
}

// GetString returns a string value.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns an integer value.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
	}
}

// GetBool returns a boolean value.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

// GetFloat returns a float64 value.
func (c *Config) GetFloat(path string) (float64, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "float64", Actual: typeName(v)}
	}
}

// GetDuration returns a duration. Integers are milliseconds; strings use
// time.ParseDuration syntax.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return time.Duration(val) * time.Millisecond, nil
	case int64:
		return time.Duration(val) * time.Millisecond, nil
	case float64:
		return time.Duration(val * float64(time.Millisecond)), nil
	case time.Duration:
		return val, nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, &TypeError{Path: path, Expected: "duration", Actual: fmt.Sprintf("%q", val)}
		}
		return d, nil
	default:
		return 0, &TypeError{Path: path, Expected: "duration", Actual: typeName(v)}
	}
}

// Errors returns the type errors recorded by section accessors since the
// last reload.
func (c *Config) Errors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.configErrors))
	for k, v := range c.configErrors {
		out[k] = v
	}
	return out
}

func (c *Config) recordConfigError(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.configErrors[path]; !exists {
		c.configErrors[path] = err
		c.logger.WithError(err).Warn("invalid setting %s", path)
	}
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}
