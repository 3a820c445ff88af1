package engine

import (
	"context"
	"time"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/event"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/storage"
)

// effects collects the side effects of an operation while the engine lock is
// held. They run after it is released.
type effects struct {
	events    []event.Event
	stopSaver []*storage.AutoSaver
	snapshot  *model.SessionSnapshot
	immediate bool
	result    *model.CompletionResult
}

func (f *effects) publish(ev event.Event) {
	f.events = append(f.events, ev)
}

// persist keeps only the latest snapshot of an operation.
func (f *effects) persist(snap model.SessionSnapshot, immediate bool) {
	f.snapshot = &snap
	f.immediate = f.immediate || immediate
}

func (f *effects) empty() bool {
	return len(f.events) == 0 && len(f.stopSaver) == 0 && f.snapshot == nil && f.result == nil
}

func (e *Engine) takeEffectsLocked() effects {
	fx := e.fx
	e.fx = effects{}
	return fx
}

// flush releases the lock and runs the pending effects.
func (e *Engine) flush(ctx context.Context) {
	fx := e.takeEffectsLocked()
	e.mu.Unlock()
	e.apply(ctx, fx)
}

func (e *Engine) apply(ctx context.Context, fx effects) {
	if fx.empty() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, s := range fx.stopSaver {
		s.Stop()
	}

	if e.store != nil && fx.snapshot != nil {
		key := config.StoreKey.SessionState(fx.snapshot.ExerciseID, fx.snapshot.SessionID)
		opts := storage.SaveOptions{Persistent: true, Temporary: true, Immediate: fx.immediate}
		if err := e.store.Save(ctx, key, fx.snapshot, opts); err != nil {
			e.log.Warn().Err(err).Str("key", key).Msg("Snapshot save failed")
		}
	}

	if fx.result != nil {
		if e.store != nil {
			key := config.StoreKey.ExerciseResult(fx.result.ExerciseID, fx.result.SessionID)
			opts := storage.SaveOptions{Persistent: true, Large: true, Immediate: true}
			if err := e.store.Save(ctx, key, fx.result, opts); err != nil {
				e.log.Warn().Err(err).Str("key", key).Msg("Result save failed")
			}
		}
		if e.sink != nil {
			if err := e.sink.PushResult(ctx, *fx.result); err != nil {
				e.log.Warn().Err(err).Msg("Result sink rejected completion")
			}
		}
	}

	for _, ev := range fx.events {
		e.bus.Publish(ev)
	}
}

// ensureSaverLocked starts the auto-save loop if a store is configured.
func (e *Engine) ensureSaverLocked() {
	if e.saver != nil || e.store == nil || e.cfg.AutoSaveFrequency() <= 0 {
		return
	}
	e.saver = storage.NewAutoSaver(e.store, e.cfg.AutoSaveFrequency(), e.autoSnapshot, e.onAutoSaved, e.log)
	e.saver.Start()
}

func (e *Engine) autoSnapshot() (string, any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.def == nil || !e.started {
		return "", nil, false
	}
	snap := e.snapshotLocked()
	return config.StoreKey.SessionState(snap.ExerciseID, snap.SessionID), snap, true
}

func (e *Engine) onAutoSaved(key string, at time.Time) {
	e.bus.Publish(event.AutoSaved{Key: key, SavedAt: at})
}

// stopBackgroundLocked stops the tick loop and schedules the auto-saver to
// stop once the lock is released. The returned loop may still be finishing
// its last tick.
func (e *Engine) stopBackgroundLocked() *tickLoop {
	if e.saver != nil {
		e.fx.stopSaver = append(e.fx.stopSaver, e.saver)
		e.saver = nil
	}
	return e.stopTicksLocked()
}
