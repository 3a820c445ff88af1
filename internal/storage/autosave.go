package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotFunc returns the key and value to save. ok=false skips the round.
type SnapshotFunc func() (key string, v any, ok bool)

// AutoSaver periodically writes a snapshot to a Store.
type AutoSaver struct {
	store    *Store
	interval time.Duration
	snapshot SnapshotFunc
	onSaved  func(key string, at time.Time)
	log      zerolog.Logger

	mu        sync.Mutex
	suspended bool
	started   bool
	stopped   bool
	stop      chan struct{}
	done      chan struct{}
}

// NewAutoSaver returns a saver; onSaved may be nil.
func NewAutoSaver(store *Store, interval time.Duration, snapshot SnapshotFunc, onSaved func(string, time.Time), log zerolog.Logger) *AutoSaver {
	return &AutoSaver{
		store:    store,
		interval: interval,
		snapshot: snapshot,
		onSaved:  onSaved,
		log:      log.With().Str("component", "auto_saver").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. A non-positive interval disables it.
func (a *AutoSaver) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || a.stopped || a.interval <= 0 {
		return
	}
	a.started = true
	go a.loop()
}

func (a *AutoSaver) loop() {
	defer close(a.done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			skip := a.suspended
			a.mu.Unlock()
			if skip {
				continue
			}
			a.SaveNow(context.Background())
		}
	}
}

// SaveNow takes a snapshot and queues it.
func (a *AutoSaver) SaveNow(ctx context.Context) {
	key, v, ok := a.snapshot()
	if !ok {
		return
	}
	if err := a.store.Save(ctx, key, v, SaveOptions{Persistent: true}); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("Auto-save failed")
		return
	}
	if a.onSaved != nil {
		a.onSaved(key, time.Now())
	}
}

// Suspend skips saves until Resume.
func (a *AutoSaver) Suspend() {
	a.mu.Lock()
	a.suspended = true
	a.mu.Unlock()
}

func (a *AutoSaver) Resume() {
	a.mu.Lock()
	a.suspended = false
	a.mu.Unlock()
}

// Suspended reports whether saves are skipped.
func (a *AutoSaver) Suspended() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.suspended
}

// Stop ends the loop and waits for it, so no save starts after it returns.
// It must not be called from the snapshot or onSaved callbacks.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	started := a.started
	a.mu.Unlock()

	close(a.stop)
	if started {
		<-a.done
	}
}
