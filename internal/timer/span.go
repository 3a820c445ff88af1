package timer

import (
	"time"

	"github.com/stemsi/exstem-drill/internal/model"
)

// span is one logical timer. Elapsed time is always derived from the
// recorded fields.
type span struct {
	start      time.Time
	end        *time.Time
	pauseStart *time.Time
	paused     time.Duration
	limit      time.Duration
	warned     bool
}

func newSpan(now time.Time, limit time.Duration) *span {
	return &span{start: now, limit: limit}
}

func (s *span) ended() bool   { return s.end != nil }
func (s *span) isPaused() bool { return s.pauseStart != nil }

func (s *span) elapsed(now time.Time) time.Duration {
	var d time.Duration
	switch {
	case s.end != nil:
		d = s.end.Sub(s.start) - s.paused
	case s.pauseStart != nil:
		d = s.pauseStart.Sub(s.start) - s.paused
	default:
		d = now.Sub(s.start) - s.paused
	}
	if d < 0 {
		return 0
	}
	return d
}

func (s *span) pause(now time.Time) {
	if s.ended() || s.isPaused() {
		return
	}
	t := now
	s.pauseStart = &t
}

func (s *span) resume(now time.Time) {
	if s.pauseStart == nil {
		return
	}
	if !s.ended() {
		s.paused += now.Sub(*s.pauseStart)
	}
	s.pauseStart = nil
}

func (s *span) stop(now time.Time) {
	if s.ended() {
		return
	}
	// Ending while paused freezes the clock at the pause point.
	t := now
	if s.pauseStart != nil {
		t = *s.pauseStart
		s.pauseStart = nil
	}
	s.end = &t
}

func (s *span) state(now time.Time) model.TimerState {
	st := model.TimerState{
		StartTime:      s.start,
		PausedMs:       s.paused.Milliseconds(),
		IsPaused:       s.isPaused(),
		LimitMs:        s.limit.Milliseconds(),
		ElapsedMs:      s.elapsed(now).Milliseconds(),
		WarningEmitted: s.warned,
	}
	if s.end != nil {
		t := *s.end
		st.EndTime = &t
	}
	if s.pauseStart != nil {
		t := *s.pauseStart
		st.PauseStartTime = &t
	}
	return st
}

func spanFromState(st model.TimerState) *span {
	s := &span{
		start:  st.StartTime,
		paused: time.Duration(st.PausedMs) * time.Millisecond,
		limit:  time.Duration(st.LimitMs) * time.Millisecond,
		warned: st.WarningEmitted,
	}
	if st.EndTime != nil {
		t := *st.EndTime
		s.end = &t
	}
	if st.PauseStartTime != nil {
		t := *st.PauseStartTime
		s.pauseStart = &t
	}
	return s
}
