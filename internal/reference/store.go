package reference

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/smukkama/farm-carbon/internal/timer"
)

// ErrNotLoaded is returned while no snapshot has been stored yet
var ErrNotLoaded = errors.New("reference data not loaded")

// Store publishes the current snapshot. Readers get either the previous
// or the next snapshot, never a mix of both.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding snap, which may be nil
func NewStore(snap *Snapshot) *Store {
	s := &Store{}
	if snap != nil {
		s.current.Store(snap)
	}
	return s
}

// Current returns the snapshot in effect
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Swap replaces the snapshot and returns the previous one
func (s *Store) Swap(snap *Snapshot) *Snapshot {
	return s.current.Swap(snap)
}

// LoaderFunc produces a fresh snapshot
type LoaderFunc func() (*Snapshot, error)

// DefaultDebounce collapses a burst of file events into one reload
const DefaultDebounce = 250 * time.Millisecond

// Refresher reloads the store on a fixed interval and, once Watch is
// called, whenever a reference file changes
type Refresher struct {
	store    *Store
	load     LoaderFunc
	interval time.Duration
	debounce time.Duration
	timers   *timer.TimerManager
	logger   *zap.Logger
	onReload func(error)

	// reloadMu orders load and swap so an older read never replaces a newer one
	reloadMu sync.Mutex

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// RefresherOption customises a Refresher
type RefresherOption func(*Refresher)

// WithReloadHook registers fn to be called after each reload attempt
func WithReloadHook(fn func(error)) RefresherOption {
	return func(r *Refresher) {
		r.onReload = fn
	}
}

// WithDebounce sets how long Watch waits for file events to settle
func WithDebounce(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// NewRefresher creates a refresher; Start begins the schedule
func NewRefresher(store *Store, load LoaderFunc, interval time.Duration, logger *zap.Logger, opts ...RefresherOption) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Refresher{
		store:    store,
		load:     load,
		interval: interval,
		debounce: DefaultDebounce,
		timers:   timer.NewTimerManager(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start schedules the periodic reload
func (r *Refresher) Start() error {
	r.timers.Start()
	return r.timers.Every("reference-refresh", r.interval, func() {
		_ = r.Reload()
	})
}

// Watch reloads whenever one of the reference files in dir is written,
// created, renamed or removed. The directory is watched rather than the
// files so editors that save by rename are seen.
func (r *Refresher) Watch(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return errors.New("reference directory already watched")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	r.timers.Start()
	r.watcher = w
	r.watchDone = make(chan struct{})
	go r.watchLoop(w, r.watchDone)

	r.logger.Info("Watching reference directory", zap.String("dir", dir))
	return nil
}

func (r *Refresher) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&relevant == 0 || !isReferenceFile(event.Name) {
				continue
			}
			r.logger.Debug("Reference file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()))
			// same id, so a burst keeps pushing the reload back
			_ = r.timers.Schedule("reference-watch", time.Now().Add(r.debounce), func() {
				_ = r.Reload()
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			r.logger.Warn("Reference watcher error", zap.Error(err))
		}
	}
}

func isReferenceFile(name string) bool {
	switch filepath.Base(name) {
	case AtomicWeightFile, UnitConversionFile, PlantationMetricsFile:
		return true
	}
	return false
}

// Stop ends watching, cancels the schedule and waits for a reload in
// progress
func (r *Refresher) Stop() {
	r.mu.Lock()
	w, done := r.watcher, r.watchDone
	r.watcher, r.watchDone = nil, nil
	r.mu.Unlock()

	if w != nil {
		w.Close()
		<-done
	}
	r.timers.Stop()
}

// Reload loads a snapshot and swaps it in. On failure the previous
// snapshot stays in effect.
func (r *Refresher) Reload() error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	snap, err := r.load()
	if err != nil {
		r.logger.Warn("Reference reload failed, keeping previous snapshot", zap.Error(err))
	} else {
		r.store.Swap(snap)
		r.logger.Debug("Reference data reloaded",
			zap.Int("species", snap.Species.Len()),
			zap.Int("conversions", snap.Units.Len()))
	}
	if r.onReload != nil {
		r.onReload(err)
	}
	return err
}
