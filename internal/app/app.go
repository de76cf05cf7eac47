// Package app orchestrates the content rendering and refresh pipeline: it
// owns the scheduler tick loop and runs the refresh cycle that turns the
// active plugin instance's content into a frame on the panel.
package app

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ayusman/paperframe/internal/cache"
	"github.com/ayusman/paperframe/internal/display"
	"github.com/ayusman/paperframe/internal/plugin"
	"github.com/ayusman/paperframe/internal/quantize"
	"github.com/ayusman/paperframe/internal/schedule"
	"github.com/ayusman/paperframe/internal/store"
)

// Pipeline timing constants.
const (
	// TickInterval is how often the scheduler is evaluated.
	TickInterval = time.Minute
	// DefaultGenerateTimeout bounds a plugin's generate call so a hung
	// network fetch cannot wedge the refresh loop.
	DefaultGenerateTimeout = 2 * time.Minute
)

// ErrNoActiveInstance is returned by a refresh when no plugin instance is
// active.
var ErrNoActiveInstance = errors.New("app: no active plugin instance")

// TransformFunc is the optional external AI style transform applied between
// generation and quantization. Its failures belong to the generation
// failure domain.
type TransformFunc func(ctx context.Context, img image.Image, prompt string) (image.Image, error)

// Event describes the outcome of one refresh cycle.
type Event struct {
	Time       time.Time `json:"time"`
	Reason     string    `json:"reason"`
	InstanceID string    `json:"instance_id"`
	PluginID   string    `json:"plugin_id"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Config holds the wiring for the pipeline.
type Config struct {
	Device    plugin.DeviceConfig
	Driver    display.Driver
	Store     *store.Store
	Cache     *cache.Cache
	Registry  *plugin.Registry
	Scheduler *schedule.Scheduler

	Palette quantize.Palette
	Method  quantize.Method

	GenerateTimeout time.Duration
	// CacheRetention prunes artifacts that have been expired longer than
	// this; zero disables pruning.
	CacheRetention time.Duration
	// CacheMaxBytes bounds the total artifact bytes kept; the janitor
	// evicts oldest artifacts over this. Zero disables the bound.
	CacheMaxBytes int64

	Transform       TransformFunc
	TransformPrompt string

	// Notify receives every refresh outcome; used by the control surface
	// to push events.
	Notify func(Event)

	Logger *log.Logger
}

// App is the running pipeline.
type App struct {
	config Config
	log    *log.Logger

	// refreshMu serializes refresh cycles: the panel is a single
	// exclusively-owned resource and two hardware refreshes must never be
	// in flight at once.
	refreshMu sync.Mutex

	mu        sync.Mutex
	stopCh    chan struct{}
	lastEvent *Event
}

// New creates an App from the given wiring.
func New(config Config) *App {
	if config.GenerateTimeout <= 0 {
		config.GenerateTimeout = DefaultGenerateTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &App{config: config, log: logger}
}

// Start initializes the panel and begins the tick loop. A driver init
// failure is returned to the caller and is fatal: nothing else in the
// pipeline can run without a panel.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.config.Driver.Init(); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	go a.runLoop(a.stopCh)
	if a.config.CacheRetention > 0 || a.config.CacheMaxBytes > 0 {
		go a.runJanitor(a.stopCh)
	}

	a.log.Info("render pipeline started",
		"update_time", a.config.Scheduler.UpdateTime().String(),
		"panel", a.config.Device)
	return nil
}

// Stop halts the tick loop and puts the panel to sleep. An in-flight
// refresh finishes first; hardware writes are never aborted mid-sequence.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.stopCh = nil
	a.mu.Unlock()

	// Wait for any running cycle, then power down.
	a.refreshMu.Lock()
	a.config.Driver.Sleep()
	a.refreshMu.Unlock()

	a.log.Info("render pipeline stopped")
}

// runLoop evaluates the scheduler once per tick and runs a refresh cycle
// when one is due.
func (a *App) runLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			if !a.config.Scheduler.IsDue(now) {
				continue
			}
			if err := a.Refresh(context.Background(), "scheduled"); err != nil && !errors.Is(err, ErrNoActiveInstance) {
				a.log.Error("scheduled refresh failed", "err", err)
			}
		}
	}
}

// runJanitor prunes long-expired cache artifacts once a day and evicts
// the oldest ones when the size budget is exceeded.
func (a *App) runJanitor(stopCh <-chan struct{}) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			removed := 0
			if a.config.CacheRetention > 0 {
				n, err := a.config.Cache.Prune(a.config.CacheRetention)
				if err != nil {
					a.log.Warn("cache prune failed", "err", err)
				}
				removed += n
			}
			if a.config.CacheMaxBytes > 0 {
				n, err := a.config.Cache.EnforceBudget(a.config.CacheMaxBytes)
				if err != nil {
					a.log.Warn("cache budget enforcement failed", "err", err)
				}
				removed += n
			}
			if removed > 0 {
				a.log.Info("pruned cache artifacts", "removed", removed)
			}
		}
	}
}

// LastEvent returns the outcome of the most recent refresh cycle, or nil.
func (a *App) LastEvent() *Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastEvent == nil {
		return nil
	}
	ev := *a.lastEvent
	return &ev
}

// Scheduler exposes the scheduler to the control surface.
func (a *App) Scheduler() *schedule.Scheduler {
	return a.config.Scheduler
}

// Store exposes the persistence layer to the control surface.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Registry exposes the plugin registry to the control surface.
func (a *App) Registry() *plugin.Registry {
	return a.config.Registry
}
