package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/answer"
	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/event"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/scoring"
	"github.com/stemsi/exstem-drill/internal/storage"
	"github.com/stemsi/exstem-drill/internal/timer"
)

// ResultSink receives completed sessions.
type ResultSink interface {
	PushResult(ctx context.Context, r model.CompletionResult) error
}

// Deps are the collaborators of an Engine. Store and Sink are optional.
type Deps struct {
	Validator *answer.Validator
	Store     *storage.Store
	Bus       *event.Bus
	Sink      ResultSink
	Clock     timer.Clock
	Log       zerolog.Logger
}

// Options identify the session.
type Options struct {
	SessionID string
	LearnerID int
	// TickInterval drives the timers. Defaults to timer.DefaultTickInterval.
	TickInterval time.Duration
}

// Engine runs one exercise session. All methods are safe for concurrent use;
// events are published after internal locks are released.
type Engine struct {
	mu sync.Mutex

	validator *answer.Validator
	store     *storage.Store
	bus       *event.Bus
	sink      ResultSink
	clock     timer.Clock
	baseLog   zerolog.Logger
	log       zerolog.Logger

	sessionID string
	learnerID int
	interval  time.Duration

	def    *model.ExerciseDefinition
	cfg    config.ExerciseConfig
	calc   *scoring.Calculator
	timers *timer.DualTimer
	status model.StatusTracker

	started   bool
	startedAt *time.Time
	current   int
	answers   map[int]model.AnswerRecord
	hints     map[int][]model.HintUse
	bookmarks map[int]struct{}
	score     int
	streak    int
	result    *model.CompletionResult
	destroyed bool

	ticks *tickLoop
	gen   uint64
	saver *storage.AutoSaver

	fx effects
}

// New creates an idle engine. Call LoadExercise before anything else.
func New(deps Deps, opts Options) *Engine {
	if deps.Validator == nil {
		deps.Validator = answer.NewValidator(deps.Log)
	}
	if deps.Bus == nil {
		deps.Bus = event.NewBus(deps.Log)
	}
	if deps.Clock == nil {
		deps.Clock = timer.SystemClock()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = timer.DefaultTickInterval
	}

	e := &Engine{
		validator: deps.Validator,
		store:     deps.Store,
		bus:       deps.Bus,
		sink:      deps.Sink,
		clock:     deps.Clock,
		baseLog: deps.Log.With().
			Str("component", "session_engine").
			Str("session_id", opts.SessionID).
			Logger(),
		sessionID: opts.SessionID,
		learnerID: opts.LearnerID,
		interval:  opts.TickInterval,
	}
	e.log = e.baseLog
	e.resetStateLocked()
	e.bus.Publish(event.EngineInitialized{SessionID: opts.SessionID})
	return e
}

// Bus returns the event bus the engine publishes on.
func (e *Engine) Bus() *event.Bus { return e.bus }

func (e *Engine) SessionID() string { return e.sessionID }
func (e *Engine) LearnerID() int    { return e.learnerID }

// ExerciseID returns the loaded exercise id, or "" before LoadExercise.
func (e *Engine) ExerciseID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.def == nil {
		return ""
	}
	return e.def.ID
}

// Status returns the session status.
func (e *Engine) Status() model.SessionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status.Current()
}

// CurrentQuestion returns the current question without its answer key.
func (e *Engine) CurrentQuestion() (model.PublicQuestion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.def == nil || e.current < 0 || e.current >= e.def.QuestionCount() {
		return model.PublicQuestion{}, ErrNoCurrentQuestion
	}
	return e.def.PublicQuestion(e.current), nil
}

func (e *Engine) resetStateLocked() {
	e.started = false
	e.startedAt = nil
	e.current = 0
	e.answers = make(map[int]model.AnswerRecord)
	e.hints = make(map[int][]model.HintUse)
	e.bookmarks = make(map[int]struct{})
	e.score = 0
	e.streak = 0
	e.result = nil
	e.status.Reset()
	if e.timers != nil {
		e.timers.Reset()
	}
}

// LoadExercise installs def and cfg and resets all session state.
func (e *Engine) LoadExercise(ctx context.Context, def *model.ExerciseDefinition, cfg config.ExerciseConfig) error {
	if def == nil {
		return ErrMissingExerciseData
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMissingExerciseData, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	e.mu.Lock()
	defer e.flush(ctx)
	if e.destroyed {
		return ErrDestroyed
	}

	e.stopBackgroundLocked()
	e.def = def
	e.cfg = cfg
	e.calc = scoring.NewCalculator(cfg.ScoringConfig())
	e.timers = timer.NewDualTimer(e.clock, timer.Options{
		GlobalLimit:     cfg.TimeLimit(),
		QuestionLimit:   cfg.QuestionTimeLimit(),
		WarningFraction: cfg.TimeWarningFraction,
	})
	e.resetStateLocked()
	e.log = e.baseLog.With().Str("exercise_id", def.ID).Logger()

	e.fx.publish(event.ExerciseLoaded{
		ExerciseID:    def.ID,
		SessionID:     e.sessionID,
		Title:         def.Title,
		Type:          def.Type,
		QuestionCount: def.QuestionCount(),
	})
	e.log.Info().Int("questions", def.QuestionCount()).Msg("Exercise loaded")
	return nil
}

// Start begins the session and its global timer.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.usableLocked(); err != nil {
		return err
	}
	if e.started {
		return ErrAlreadyStarted
	}
	if err := e.status.Transition(model.SessionStatusInProgress); err != nil {
		return err
	}

	now := e.clock.Now()
	e.started = true
	e.startedAt = &now
	e.timers.StartGlobal()
	e.timers.StartQuestion(e.current)
	e.startTicksLocked()
	e.ensureSaverLocked()

	e.fx.publish(event.ExerciseStarted{SessionID: e.sessionID, StartedAt: now})
	e.fx.persist(e.snapshotLocked(), false)
	return nil
}

// Pause freezes the timers and suspends auto-save.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.activeLocked(); err != nil {
		return err
	}
	if err := e.status.Transition(model.SessionStatusPaused); err != nil {
		return err
	}
	e.timers.Pause()
	e.pauseTicksLocked()
	if e.saver != nil {
		e.saver.Suspend()
	}

	e.fx.publish(event.ExercisePaused{SessionID: e.sessionID, ElapsedMs: e.timers.GlobalElapsed().Milliseconds()})
	e.fx.persist(e.snapshotLocked(), false)
	return nil
}

// Resume restarts the timers and auto-save.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.usableLocked(); err != nil {
		return err
	}
	if e.result != nil {
		return ErrCompleted
	}
	if e.status.Current() != model.SessionStatusPaused {
		return ErrNotPaused
	}
	if err := e.status.Transition(model.SessionStatusInProgress); err != nil {
		return err
	}
	e.timers.Resume()
	e.resumeTicksLocked()
	e.ensureSaverLocked()
	if e.saver != nil {
		e.saver.Resume()
	}

	e.fx.publish(event.ExerciseResumed{SessionID: e.sessionID, ElapsedMs: e.timers.GlobalElapsed().Milliseconds()})
	return nil
}

// Reset clears all progress of the loaded exercise and returns to ready.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.flush(ctx)
	if e.destroyed {
		return ErrDestroyed
	}
	if e.def == nil {
		return ErrMissingExerciseData
	}
	e.stopBackgroundLocked()
	e.resetStateLocked()

	e.fx.publish(event.ExerciseReset{SessionID: e.sessionID})
	e.fx.persist(e.snapshotLocked(), false)
	e.log.Info().Msg("Exercise reset")
	return nil
}

// GetState returns a serializable snapshot sufficient to resume the session.
func (e *Engine) GetState() model.SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() model.SessionSnapshot {
	snap := model.SessionSnapshot{
		SessionID:            e.sessionID,
		LearnerID:            e.learnerID,
		Status:               e.status.Current(),
		CurrentQuestionIndex: e.current,
		Score:                e.score,
		Streak:               e.streak,
		Answers:              make([]model.AnswerEntry, 0, len(e.answers)),
		Hints:                make([]model.HintEntry, 0, len(e.hints)),
		Bookmarks:            e.bookmarkListLocked(),
		IsStarted:            e.started,
		IsCompleted:          e.result != nil,
		IsPaused:             e.status.Current() == model.SessionStatusPaused,
		Result:               e.result,
		SavedAt:              e.clock.Now(),
	}
	if e.def != nil {
		snap.ExerciseID = e.def.ID
		snap.QuestionCount = e.def.QuestionCount()
	}
	if e.startedAt != nil {
		t := *e.startedAt
		snap.StartedAt = &t
	}
	if e.timers != nil {
		snap.Timer = e.timers.Snapshot()
	}
	for _, i := range sortedKeys(e.answers) {
		snap.Answers = append(snap.Answers, model.AnswerEntry{Index: i, Record: e.answers[i]})
	}
	for _, i := range sortedKeys(e.hints) {
		uses := append([]model.HintUse(nil), e.hints[i]...)
		snap.Hints = append(snap.Hints, model.HintEntry{Index: i, Uses: uses})
	}
	return snap
}

// Restore resumes a session from a snapshot of the loaded exercise. A
// session that was running comes back paused.
func (e *Engine) Restore(ctx context.Context, snap model.SessionSnapshot) error {
	e.mu.Lock()
	defer e.flush(ctx)
	if e.destroyed {
		return ErrDestroyed
	}
	if e.def == nil {
		return ErrMissingExerciseData
	}
	if snap.ExerciseID != e.def.ID || (snap.SessionID != "" && snap.SessionID != e.sessionID) {
		return ErrSnapshotMismatch
	}

	e.stopBackgroundLocked()
	e.resetStateLocked()

	n := e.def.QuestionCount()
	e.current = clampIndex(snap.CurrentQuestionIndex, n)
	for _, a := range snap.Answers {
		if a.Index >= 0 && a.Index < n {
			e.answers[a.Index] = a.Record
		}
	}
	for _, h := range snap.Hints {
		if h.Index >= 0 && h.Index < n {
			e.hints[h.Index] = append([]model.HintUse(nil), h.Uses...)
		}
	}
	for _, b := range snap.Bookmarks {
		if b >= 0 && b < n {
			e.bookmarks[b] = struct{}{}
		}
	}
	e.score = snap.Score
	e.streak = snap.Streak
	e.started = snap.IsStarted
	if snap.StartedAt != nil {
		t := *snap.StartedAt
		e.startedAt = &t
	}
	e.timers.Restore(snap.Timer)

	var status model.SessionStatus
	switch {
	case snap.Result != nil:
		r := *snap.Result
		e.result = &r
		status = model.SessionStatusCompleted
	case snap.IsStarted:
		status = model.SessionStatusPaused
		if !e.timers.IsPaused() {
			e.timers.Pause()
		}
	default:
		status = model.SessionStatusReady
	}
	if err := e.status.Restore(status); err != nil {
		return err
	}

	e.log.Info().Str("status", string(status)).Int("answers", len(e.answers)).Msg("Session restored")
	return nil
}

// Destroy stops every timer and background loop, saves a final snapshot and
// detaches all observers. No tick fires after it returns.
func (e *Engine) Destroy(ctx context.Context) {
	e.teardown(ctx, true)
}

// Discard tears the engine down like Destroy but writes nothing to the
// store, leaving any stored snapshot of the session untouched.
func (e *Engine) Discard(ctx context.Context) {
	e.teardown(ctx, false)
}

func (e *Engine) teardown(ctx context.Context, save bool) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	ticks := e.stopBackgroundLocked()
	if save && e.def != nil {
		// The final snapshot keeps running timers resumable.
		e.fx.persist(e.snapshotLocked(), true)
	}
	if !save {
		e.fx.snapshot = nil
		e.fx.result = nil
	}
	if e.timers != nil {
		e.timers.StopAll()
	}
	e.fx.publish(event.EngineDestroyed{SessionID: e.sessionID})
	fx := e.takeEffectsLocked()
	e.mu.Unlock()

	if ticks != nil {
		<-ticks.done
	}
	e.apply(ctx, fx)
	e.bus.Close()
	if save {
		e.log.Info().Msg("Engine destroyed")
	} else {
		e.log.Debug().Msg("Engine discarded")
	}
}

// usableLocked rejects operations on a destroyed, failed or unloaded engine.
func (e *Engine) usableLocked() error {
	switch {
	case e.destroyed:
		return ErrDestroyed
	case e.def == nil:
		return ErrMissingExerciseData
	case e.status.Current() == model.SessionStatusFailed:
		return ErrFailed
	}
	return nil
}

// activeLocked additionally requires a started, unfinished, unpaused session.
func (e *Engine) activeLocked() error {
	if err := e.usableLocked(); err != nil {
		return err
	}
	switch {
	case e.result != nil:
		return ErrCompleted
	case !e.started:
		return ErrNotStarted
	case e.status.Current() == model.SessionStatusPaused:
		return ErrPaused
	}
	return nil
}

// failLocked moves the session to failed after an internal fault.
func (e *Engine) failLocked(op string, cause any) error {
	err := fmt.Errorf("%w: %s: %v", ErrFailed, op, cause)
	_ = e.status.Transition(model.SessionStatusFailed)
	if e.timers != nil {
		e.timers.StopAll()
	}
	e.stopBackgroundLocked()
	e.fx.publish(event.EngineError{Op: op, Error: fmt.Sprint(cause)})
	e.log.Error().Str("op", op).Interface("cause", cause).Msg("Engine failed")
	return err
}

func (e *Engine) bookmarkListLocked() []int {
	out := make([]int, 0, len(e.bookmarks))
	for i := range e.bookmarks {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (e *Engine) hintsTotalLocked() int {
	n := 0
	for _, uses := range e.hints {
		n += len(uses)
	}
	return n
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func clampIndex(i, n int) int {
	if i < 0 || n == 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
