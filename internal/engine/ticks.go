package engine

import (
	"context"
	"time"

	"github.com/stemsi/exstem-drill/internal/event"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/timer"
)

type tickLoop struct {
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

func (e *Engine) startTicksLocked() {
	if e.ticks != nil {
		return
	}
	e.gen++
	tl := &tickLoop{
		ticker: time.NewTicker(e.interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.ticks = tl
	go e.runTicks(tl, e.gen)
}

func (e *Engine) runTicks(tl *tickLoop, gen uint64) {
	defer close(tl.done)
	defer tl.ticker.Stop()
	for {
		select {
		case <-tl.stop:
			return
		case <-tl.ticker.C:
			e.tick(gen)
		}
	}
}

func (e *Engine) pauseTicksLocked() {
	if e.ticks != nil {
		e.ticks.ticker.Stop()
	}
}

func (e *Engine) resumeTicksLocked() {
	if e.ticks == nil {
		e.startTicksLocked()
		return
	}
	e.ticks.ticker.Reset(e.interval)
}

// stopTicksLocked detaches the loop without waiting, so it is safe to call
// from the loop itself. A late tick of a detached loop is ignored.
func (e *Engine) stopTicksLocked() *tickLoop {
	tl := e.ticks
	if tl == nil {
		return nil
	}
	e.ticks = nil
	e.gen++
	tl.ticker.Stop()
	close(tl.stop)
	return tl
}

// Tick advances the timers once. The tick loop calls it on every interval;
// it is exported for callers driving the engine with a manual clock.
func (e *Engine) Tick() {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()
	e.tick(gen)
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	defer e.flush(context.Background())
	if e.destroyed || gen != e.gen || e.timers == nil || e.result != nil ||
		e.status.Current() != model.SessionStatusInProgress {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			_ = e.failLocked("tick", r)
		}
	}()

	for _, n := range e.timers.Tick() {
		e.fx.publish(noticeEvent(n))
		if n.Kind == timer.NoticeLimitExceeded && n.Scope == timer.ScopeGlobal {
			e.log.Info().Int64("elapsed_ms", n.Elapsed.Milliseconds()).Msg("Exercise time limit reached")
			if e.cfg.AutoCompleteOnTimeout {
				if _, err := e.completeLocked(); err != nil {
					e.log.Warn().Err(err).Msg("Auto-complete on timeout failed")
				}
			}
		}
	}
}

func noticeEvent(n timer.Notice) event.Event {
	switch n.Kind {
	case timer.NoticeWarning:
		return event.TimeWarning{
			Timer:         string(n.Scope),
			QuestionIndex: n.QuestionIndex,
			RemainingMs:   n.Remaining().Milliseconds(),
		}
	case timer.NoticeLimitExceeded:
		return event.TimeLimitExceeded{
			Timer:         string(n.Scope),
			QuestionIndex: n.QuestionIndex,
			ElapsedMs:     n.Elapsed.Milliseconds(),
		}
	default:
		return event.TimerUpdate{
			Timer:         string(n.Scope),
			QuestionIndex: n.QuestionIndex,
			ElapsedMs:     n.Elapsed.Milliseconds(),
			RemainingMs:   n.Remaining().Milliseconds(),
			Formatted:     timer.FormatDuration(n.Elapsed),
		}
	}
}
