package timer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/exstem-drill/internal/model"
)

// DefaultTickInterval is the period callers should drive Tick at.
const DefaultTickInterval = 100 * time.Millisecond

// DefaultWarningFraction is the share of a limit at which a warning fires.
const DefaultWarningFraction = 0.8

// Scope names one of the two logical timers.
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeQuestion Scope = "question"
)

// NoticeKind classifies what a tick observed.
type NoticeKind string

const (
	NoticeUpdate        NoticeKind = "update"
	NoticeWarning       NoticeKind = "warning"
	NoticeLimitExceeded NoticeKind = "limit_exceeded"
)

// Notice is a single observation produced by Tick.
type Notice struct {
	Kind          NoticeKind
	Scope         Scope
	QuestionIndex int
	Elapsed       time.Duration
	Limit         time.Duration
}

// Remaining is the time left before the limit, or zero without a limit.
func (n Notice) Remaining() time.Duration {
	if n.Limit <= 0 || n.Elapsed >= n.Limit {
		return 0
	}
	return n.Limit - n.Elapsed
}

// Options configure limits. A zero limit disables the limit and warning.
type Options struct {
	GlobalLimit     time.Duration
	QuestionLimit   time.Duration
	WarningFraction float64
}

// DualTimer tracks a whole-session timer and a per-question timer.
// It never schedules anything itself: the owner calls Tick periodically.
type DualTimer struct {
	mu        sync.Mutex
	clock     Clock
	opts      Options
	global    *span
	question  *span
	qIndex    int
	completed map[int]*span
	paused    bool
}

// NewDualTimer returns an idle timer.
func NewDualTimer(clock Clock, opts Options) *DualTimer {
	if clock == nil {
		clock = SystemClock()
	}
	if opts.WarningFraction <= 0 || opts.WarningFraction >= 1 {
		opts.WarningFraction = DefaultWarningFraction
	}
	return &DualTimer{
		clock:     clock,
		opts:      opts,
		completed: make(map[int]*span),
	}
}

// StartGlobal (re)starts the session timer.
func (t *DualTimer) StartGlobal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.global = newSpan(now, t.opts.GlobalLimit)
	if t.paused {
		t.global.pause(now)
	}
}

// StartQuestion ends the running question timer, if any, and starts one
// for index i.
func (t *DualTimer) StartQuestion(i int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.endQuestionLocked(now)
	t.question = newSpan(now, t.opts.QuestionLimit)
	t.qIndex = i
	if t.paused {
		t.question.pause(now)
	}
}

// EndQuestion stops the running question timer and returns its final
// elapsed time.
func (t *DualTimer) EndQuestion() (int, time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endQuestionLocked(t.clock.Now())
}

func (t *DualTimer) endQuestionLocked(now time.Time) (int, time.Duration, bool) {
	if t.question == nil {
		return 0, 0, false
	}
	q, i := t.question, t.qIndex
	q.stop(now)
	t.completed[i] = q
	t.question = nil
	return i, q.elapsed(now), true
}

// StopAll ends both timers.
func (t *DualTimer) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopAllLocked(t.clock.Now())
}

func (t *DualTimer) stopAllLocked(now time.Time) {
	t.endQuestionLocked(now)
	if t.global != nil {
		t.global.stop(now)
	}
}

// Pause freezes both timers. It reports false if already paused.
func (t *DualTimer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		return false
	}
	now := t.clock.Now()
	t.paused = true
	if t.global != nil {
		t.global.pause(now)
	}
	if t.question != nil {
		t.question.pause(now)
	}
	return true
}

// Resume restarts both timers, excluding the paused gap from elapsed time.
// It reports false if not paused.
func (t *DualTimer) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		return false
	}
	now := t.clock.Now()
	t.paused = false
	if t.global != nil {
		t.global.resume(now)
	}
	if t.question != nil {
		t.question.resume(now)
	}
	return true
}

// IsPaused reports whether the timer is paused.
func (t *DualTimer) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// GlobalElapsed returns the session's active time.
func (t *DualTimer) GlobalElapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.global == nil {
		return 0
	}
	return t.global.elapsed(t.clock.Now())
}

// QuestionElapsed returns the active time on the current question.
func (t *DualTimer) QuestionElapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.question == nil {
		return 0
	}
	return t.question.elapsed(t.clock.Now())
}

// QuestionTime returns the time spent on question i, whether it is running
// or completed.
func (t *DualTimer) QuestionTime(i int) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	if t.question != nil && t.qIndex == i {
		return t.question.elapsed(now), true
	}
	if s, ok := t.completed[i]; ok {
		return s.elapsed(now), true
	}
	return 0, false
}

// CurrentQuestion returns the index of the running question timer.
func (t *DualTimer) CurrentQuestion() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.qIndex, t.question != nil
}

// Tick recomputes elapsed times and reports updates, warnings and limits.
// A paused timer yields nothing. Warnings fire once per timer instance.
// An exceeded question limit ends that question; an exceeded global limit
// ends everything.
func (t *DualTimer) Tick() []Notice {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		return nil
	}
	now := t.clock.Now()
	var out []Notice

	if g := t.global; g != nil && !g.ended() {
		out = t.observe(out, g, ScopeGlobal, t.qIndex, now)
		if g.limit > 0 && g.elapsed(now) >= g.limit {
			t.stopAllLocked(now)
			return out
		}
	}
	if q := t.question; q != nil && !q.ended() {
		out = t.observe(out, q, ScopeQuestion, t.qIndex, now)
		if q.limit > 0 && q.elapsed(now) >= q.limit {
			t.endQuestionLocked(now)
		}
	}
	return out
}

func (t *DualTimer) observe(out []Notice, s *span, scope Scope, idx int, now time.Time) []Notice {
	el := s.elapsed(now)
	n := Notice{Kind: NoticeUpdate, Scope: scope, QuestionIndex: idx, Elapsed: el, Limit: s.limit}
	out = append(out, n)
	if s.limit <= 0 {
		return out
	}
	warnAt := time.Duration(float64(s.limit) * t.opts.WarningFraction)
	if !s.warned && el >= warnAt {
		s.warned = true
		n.Kind = NoticeWarning
		out = append(out, n)
	}
	if el >= s.limit {
		n.Kind = NoticeLimitExceeded
		out = append(out, n)
	}
	return out
}

// Reset discards all timing state.
func (t *DualTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.global = nil
	t.question = nil
	t.qIndex = 0
	t.completed = make(map[int]*span)
	t.paused = false
}

// Snapshot returns a serializable copy of the timer state.
func (t *DualTimer) Snapshot() model.TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	snap := model.TimerSnapshot{IsPaused: t.paused}
	if t.global != nil {
		st := t.global.state(now)
		snap.Global = &st
	}
	if t.question != nil {
		snap.Question = &model.QuestionTimerState{QuestionIndex: t.qIndex, Timer: t.question.state(now)}
	}
	idx := make([]int, 0, len(t.completed))
	for i := range t.completed {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		snap.Completed = append(snap.Completed, model.QuestionTimerState{QuestionIndex: i, Timer: t.completed[i].state(now)})
	}
	return snap
}

// Restore replaces the timer state with snap. Timers that were running are
// frozen at their recorded elapsed time and the timer comes back paused, so
// time spent offline is not counted.
func (t *DualTimer) Restore(snap model.TimerSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.global, t.question = nil, nil
	t.qIndex = 0
	t.completed = make(map[int]*span)

	running := false
	freeze := func(st model.TimerState) *span {
		s := spanFromState(st)
		if !s.ended() && !s.isPaused() {
			at := s.start.Add(s.paused + time.Duration(st.ElapsedMs)*time.Millisecond)
			s.pauseStart = &at
			running = true
		}
		return s
	}
	if snap.Global != nil {
		t.global = freeze(*snap.Global)
	}
	if snap.Question != nil {
		t.question = freeze(snap.Question.Timer)
		t.qIndex = snap.Question.QuestionIndex
	}
	for _, c := range snap.Completed {
		t.completed[c.QuestionIndex] = spanFromState(c.Timer)
	}
	t.paused = snap.IsPaused || running
}

// FormatTime renders milliseconds as mm:ss. Negative input renders 00:00.
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	sec := ms / 1000
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}

// FormatDuration is FormatTime for a time.Duration.
func FormatDuration(d time.Duration) string {
	return FormatTime(d.Milliseconds())
}
