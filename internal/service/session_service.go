package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/answer"
	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/engine"
	"github.com/stemsi/exstem-drill/internal/event"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/storage"
	"github.com/stemsi/exstem-drill/internal/timer"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("too many live sessions")
	ErrNoSnapshot      = errors.New("no saved session to resume")
	ErrShuttingDown    = errors.New("session service is shutting down")
)

// SessionRecorder receives session lifecycle records.
type SessionRecorder interface {
	PushSession(ctx context.Context, ref model.SessionRef) error
}

// SessionDeps are the collaborators shared by every hosted engine.
type SessionDeps struct {
	Exercises *ExerciseService
	Store     *storage.Store
	Validator *answer.Validator
	Sink      engine.ResultSink
	Recorder  SessionRecorder
	Clock     timer.Clock
	Log       zerolog.Logger

	Defaults      config.ExerciseConfig
	MaxPerLearner int
	TickInterval  time.Duration
}

type hostedSession struct {
	engine      *engine.Engine
	unsubscribe func()

	mu         sync.Mutex
	ref        model.SessionRef
	lastActive time.Time
}

func (h *hostedSession) snapshotRef() (model.SessionRef, time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ref, h.lastActive
}

// SessionService hosts one engine per exercise session, keyed by session id
// and owned by a learner.
type SessionService struct {
	deps SessionDeps
	log  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*hostedSession
	closed   bool

	indexMu sync.Mutex
}

// NewSessionService creates a new SessionService.
func NewSessionService(deps SessionDeps) *SessionService {
	if deps.Validator == nil {
		deps.Validator = answer.NewValidator(deps.Log)
	}
	if deps.Clock == nil {
		deps.Clock = timer.SystemClock()
	}
	return &SessionService{
		deps:     deps,
		log:      deps.Log.With().Str("component", "session_service").Logger(),
		sessions: make(map[string]*hostedSession),
	}
}

// Create loads an exercise into a new engine, or resumes a saved session
// when req.ResumeSessionID is set.
func (s *SessionService) Create(ctx context.Context, learnerID int, req model.CreateSessionRequest) (model.SessionView, error) {
	if req.ResumeSessionID != "" {
		if eng, err := s.Get(req.ResumeSessionID, learnerID); err == nil {
			return s.view(eng, true), nil
		}
	}
	if err := s.checkCapacity(learnerID); err != nil {
		return model.SessionView{}, err
	}

	def := req.Exercise
	if def == nil {
		var err error
		if def, err = s.deps.Exercises.Get(ctx, req.ExerciseID); err != nil {
			return model.SessionView{}, err
		}
	}
	cfg := s.deps.Defaults.WithOverrides(req.Config)

	sessionID := uuid.New().String()
	var snap *model.SessionSnapshot
	if req.ResumeSessionID != "" {
		key := config.StoreKey.SessionState(def.ID, req.ResumeSessionID)
		snap = storage.LoadAs[*model.SessionSnapshot](ctx, s.deps.Store, key, nil, storage.LoadOptions{})
		if snap == nil || snap.LearnerID != learnerID {
			return model.SessionView{}, ErrNoSnapshot
		}
		sessionID = req.ResumeSessionID
	}

	eng := engine.New(engine.Deps{
		Validator: s.deps.Validator,
		Store:     s.deps.Store,
		Bus:       event.NewBus(s.deps.Log),
		Sink:      s.deps.Sink,
		Clock:     s.deps.Clock,
		Log:       s.deps.Log,
	}, engine.Options{
		SessionID:    sessionID,
		LearnerID:    learnerID,
		TickInterval: s.deps.TickInterval,
	})

	if err := s.prepare(ctx, eng, def, cfg, snap, req.Start); err != nil {
		eng.Discard(ctx)
		return model.SessionView{}, err
	}

	now := s.deps.Clock.Now()
	h := &hostedSession{
		engine: eng,
		ref: model.SessionRef{
			SessionID:  sessionID,
			ExerciseID: def.ID,
			LearnerID:  learnerID,
			Title:      def.Title,
			Status:     eng.Status(),
			Live:       true,
			CreatedAt:  now,
		},
		lastActive: now,
	}
	if snap != nil && snap.StartedAt != nil {
		h.ref.CreatedAt = *snap.StartedAt
	}
	h.unsubscribe = eng.Bus().Subscribe(event.ObserverFunc(func(ev event.Event) { s.observe(h, ev) }))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.unsubscribe()
		eng.Discard(ctx)
		return model.SessionView{}, ErrShuttingDown
	}
	if existing, ok := s.sessions[sessionID]; ok {
		// A concurrent resume of the same session won the race.
		s.mu.Unlock()
		h.unsubscribe()
		eng.Discard(ctx)
		return s.view(existing.engine, true), nil
	}
	s.sessions[sessionID] = h
	s.mu.Unlock()

	s.indexSession(ctx, h.ref)
	s.record(ctx, h.ref)

	s.log.Info().
		Str("session_id", sessionID).
		Str("exercise_id", def.ID).
		Int("learner_id", learnerID).
		Bool("restored", snap != nil).
		Msg("Session created")

	return s.view(eng, snap != nil), nil
}

func (s *SessionService) prepare(ctx context.Context, eng *engine.Engine, def *model.ExerciseDefinition, cfg config.ExerciseConfig, snap *model.SessionSnapshot, start bool) error {
	if err := eng.LoadExercise(ctx, def, cfg); err != nil {
		return err
	}
	if snap != nil {
		return eng.Restore(ctx, *snap)
	}
	if start {
		return eng.Start(ctx)
	}
	return nil
}

func (s *SessionService) checkCapacity(learnerID int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrShuttingDown
	}
	if s.deps.MaxPerLearner <= 0 {
		return nil
	}
	live := 0
	for _, h := range s.sessions {
		ref, _ := h.snapshotRef()
		if ref.LearnerID == learnerID && !isFinished(ref.Status) {
			live++
		}
	}
	if live >= s.deps.MaxPerLearner {
		return ErrSessionLimit
	}
	return nil
}

func isFinished(st model.SessionStatus) bool {
	return st == model.SessionStatusCompleted || st == model.SessionStatusFailed
}

// observe tracks status and activity for a hosted engine. It runs on the
// engine's event path, outside the engine lock.
func (s *SessionService) observe(h *hostedSession, ev event.Event) {
	switch ev.Name() {
	case event.NameTimerUpdate, event.NameAutoSaved, event.NameEngineDestroyed:
		return
	}

	st := h.engine.Status()
	h.mu.Lock()
	h.lastActive = s.deps.Clock.Now()
	changed := h.ref.Status != st
	h.ref.Status = st
	ref := h.ref
	h.mu.Unlock()

	if changed && isFinished(st) {
		ctx := context.Background()
		s.indexSession(ctx, ref)
		s.record(ctx, ref)
	}
}

func (s *SessionService) view(eng *engine.Engine, restored bool) model.SessionView {
	v := model.SessionView{
		SessionID: eng.SessionID(),
		Restored:  restored,
		State:     eng.GetState(),
	}
	if q, err := eng.CurrentQuestion(); err == nil {
		v.Question = &q
	}
	return v
}

// View returns the current state of a session owned by learnerID.
func (s *SessionService) View(sessionID string, learnerID int) (model.SessionView, error) {
	eng, err := s.Get(sessionID, learnerID)
	if err != nil {
		return model.SessionView{}, err
	}
	return s.view(eng, false), nil
}

// Get returns the live engine for a session owned by learnerID. Sessions of
// other learners are reported as missing.
func (s *SessionService) Get(sessionID string, learnerID int) (*engine.Engine, error) {
	s.mu.RLock()
	h, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || h.engine.LearnerID() != learnerID {
		return nil, ErrSessionNotFound
	}
	return h.engine, nil
}

// List returns a page of the learner's sessions, live ones first. Saved
// sessions from earlier processes come from the learner's index.
func (s *SessionService) List(ctx context.Context, learnerID int, q model.PageQuery) ([]model.SessionRef, int) {
	indexed := storage.LoadAs(ctx, s.deps.Store, config.StoreKey.LearnerSessions(learnerID), []model.SessionRef{}, storage.LoadOptions{})

	byID := make(map[string]model.SessionRef, len(indexed))
	for _, ref := range indexed {
		ref.Live = false
		byID[ref.SessionID] = ref
	}
	s.mu.RLock()
	for _, h := range s.sessions {
		ref, _ := h.snapshotRef()
		if ref.LearnerID == learnerID {
			byID[ref.SessionID] = ref
		}
	}
	s.mu.RUnlock()

	refs := make([]model.SessionRef, 0, len(byID))
	for _, ref := range byID {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Live != refs[j].Live {
			return refs[i].Live
		}
		return refs[i].CreatedAt.After(refs[j].CreatedAt)
	})

	total := len(refs)
	from := q.Offset()
	if from > total {
		from = total
	}
	to := from + q.PerPage
	if to > total {
		to = total
	}
	return refs[from:to], total
}

// Destroy stops a session and removes it from the registry. Its final
// snapshot stays in the store so it can be resumed.
func (s *SessionService) Destroy(ctx context.Context, sessionID string, learnerID int) error {
	s.mu.Lock()
	h, ok := s.sessions[sessionID]
	if !ok || h.engine.LearnerID() != learnerID {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	s.release(ctx, h)
	return nil
}

func (s *SessionService) release(ctx context.Context, h *hostedSession) {
	h.unsubscribe()
	h.engine.Destroy(ctx)

	h.mu.Lock()
	h.ref.Status = h.engine.Status()
	ref := h.ref
	h.mu.Unlock()
	s.indexSession(ctx, ref)
}

// Len returns the number of live sessions.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap destroys finished sessions and sessions idle for longer than idle.
// It returns how many were removed.
func (s *SessionService) Reap(ctx context.Context, idle time.Duration) int {
	now := s.deps.Clock.Now()

	var victims []*hostedSession
	s.mu.Lock()
	for id, h := range s.sessions {
		ref, last := h.snapshotRef()
		if isFinished(ref.Status) || (idle > 0 && now.Sub(last) >= idle) {
			victims = append(victims, h)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, h := range victims {
		s.release(ctx, h)
	}
	if len(victims) > 0 {
		s.log.Info().Int("count", len(victims)).Msg("Reaped sessions")
	}
	return len(victims)
}

// RunReaper calls Reap every interval until ctx is done.
func (s *SessionService) RunReaper(ctx context.Context, every, idle time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap(ctx, idle)
		}
	}
}

// Shutdown destroys every live session, saving their snapshots, and
// rejects new ones.
func (s *SessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	hosted := make([]*hostedSession, 0, len(s.sessions))
	for id, h := range s.sessions {
		hosted = append(hosted, h)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, h := range hosted {
		s.release(ctx, h)
	}
	s.log.Info().Int("count", len(hosted)).Msg("Sessions shut down")
}

// indexSession upserts ref into the learner's session index.
func (s *SessionService) indexSession(ctx context.Context, ref model.SessionRef) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	key := config.StoreKey.LearnerSessions(ref.LearnerID)
	refs := storage.LoadAs(ctx, s.deps.Store, key, []model.SessionRef{}, storage.LoadOptions{})

	ref.Live = false
	replaced := false
	for i := range refs {
		if refs[i].SessionID == ref.SessionID {
			refs[i] = ref
			replaced = true
			break
		}
	}
	if !replaced {
		refs = append(refs, ref)
	}

	if err := s.deps.Store.Save(ctx, key, refs, storage.SaveOptions{Persistent: true, Large: true}); err != nil {
		s.log.Warn().Err(err).Int("learner_id", ref.LearnerID).Msg("Failed to index session")
	}
}

func (s *SessionService) record(ctx context.Context, ref model.SessionRef) {
	if s.deps.Recorder == nil {
		return
	}
	if err := s.deps.Recorder.PushSession(ctx, ref); err != nil {
		s.log.Warn().Err(err).Str("session_id", ref.SessionID).Msg("Failed to queue session record")
	}
}
