package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/storage"
	"github.com/stemsi/exstem-drill/internal/timer"
)

type recorderStub struct {
	mu   sync.Mutex
	refs []model.SessionRef
}

func (r *recorderStub) PushSession(_ context.Context, ref model.SessionRef) error {
	r.mu.Lock()
	r.refs = append(r.refs, ref)
	r.mu.Unlock()
	return nil
}

func (r *recorderStub) statuses() []model.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.SessionStatus, len(r.refs))
	for i, ref := range r.refs {
		out[i] = ref.Status
	}
	return out
}

type sessionFixture struct {
	svc      *SessionService
	store    *storage.Store
	clock    *timer.ManualClock
	recorder *recorderStub
}

func newSessionFixture(t *testing.T, maxPerLearner int) *sessionFixture {
	t.Helper()
	log := zerolog.Nop()
	store := storage.Open(context.Background(), storage.Options{Namespace: "test"}, log, storage.NewMemoryBackend(0))

	defaults := config.DefaultExerciseConfig()
	defaults.AutoSaveFrequencyMs = 0

	f := &sessionFixture{
		store:    store,
		clock:    timer.NewManualClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
		recorder: &recorderStub{},
	}
	f.svc = NewSessionService(SessionDeps{
		Exercises:     NewExerciseService(nil, store, log),
		Store:         store,
		Recorder:      f.recorder,
		Clock:         f.clock,
		Log:           log,
		Defaults:      defaults,
		MaxPerLearner: maxPerLearner,
		TickInterval:  time.Hour,
	})
	t.Cleanup(func() {
		f.svc.Shutdown(context.Background())
		_ = store.Close(context.Background())
	})
	return f
}

func trueFalse() *model.ExerciseDefinition {
	return &model.ExerciseDefinition{
		ID:    "tf-basics",
		Title: "True or false",
		Type:  model.ExerciseTypeTrueFalse,
		Questions: []model.Question{
			{ID: "q1", Prompt: "Water boils at 100C at sea level", CorrectAnswer: "true"},
			{ID: "q2", Prompt: "The sun orbits the earth", CorrectAnswer: "false"},
		},
	}
}

func TestSessionService_CreateInlineAndStart(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, 0)

	view, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse(), Start: true})
	require.NoError(t, err)
	assert.NotEmpty(t, view.SessionID)
	assert.False(t, view.Restored)
	assert.Equal(t, model.SessionStatusInProgress, view.State.Status)
	require.NotNil(t, view.Question)
	assert.Equal(t, "q1", view.Question.ID)

	eng, err := f.svc.Get(view.SessionID, 7)
	require.NoError(t, err)
	assert.Equal(t, "tf-basics", eng.ExerciseID())

	_, err = f.svc.Get(view.SessionID, 8)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Equal(t, []model.SessionStatus{model.SessionStatusInProgress}, f.recorder.statuses())
}

func TestSessionService_StoredExercise(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, 0)

	_, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{ExerciseID: "tf-basics"})
	assert.ErrorIs(t, err, ErrExerciseNotFound)

	require.NoError(t, f.svc.deps.Exercises.Put(ctx, trueFalse(), 1))

	view, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{ExerciseID: "tf-basics"})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusReady, view.State.Status)
	assert.Equal(t, 2, view.State.QuestionCount)
}

func TestSessionService_AppliesOverrides(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, 0)

	hints := 1
	view, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{
		Exercise: trueFalse(),
		Config:   &model.ExerciseConfigOverrides{MaxHints: &hints},
		Start:    true,
	})
	require.NoError(t, err)

	eng, err := f.svc.Get(view.SessionID, 7)
	require.NoError(t, err)
	_, err = eng.GetHint(ctx, 0)
	require.NoError(t, err)
	hint, err := eng.GetHint(ctx, 0)
	require.NoError(t, err)
	assert.True(t, hint.Exhausted)
}

func TestSessionService_LearnerLimit(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, 1)

	first, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse(), Start: true})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse()})
	assert.ErrorIs(t, err, ErrSessionLimit)

	_, err = f.svc.Create(ctx, 8, model.CreateSessionRequest{Exercise: trueFalse()})
	assert.NoError(t, err)

	eng, err := f.svc.Get(first.SessionID, 7)
	require.NoError(t, err)
	_, err = eng.Complete(ctx)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse()})
	assert.NoError(t, err)
}

func TestSessionService_DestroyAndResume(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, 0)

	view, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse(), Start: true})
	require.NoError(t, err)
	eng, err := f.svc.Get(view.SessionID, 7)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Second)
	_, err = eng.SubmitAnswer(ctx, "true")
	require.NoError(t, err)
	_, err = eng.NextQuestion(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Destroy(ctx, view.SessionID, 8), ErrSessionNotFound)
	require.NoError(t, f.svc.Destroy(ctx, view.SessionID, 7))
	_, err = f.svc.Get(view.SessionID, 7)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Create(ctx, 8, model.CreateSessionRequest{Exercise: trueFalse(), ResumeSessionID: view.SessionID})
	assert.ErrorIs(t, err, ErrNoSnapshot)

	f.clock.Advance(time.Hour)
	resumed, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse(), ResumeSessionID: view.SessionID})
	require.NoError(t, err)
	assert.True(t, resumed.Restored)
	assert.Equal(t, view.SessionID, resumed.SessionID)
	assert.Equal(t, model.SessionStatusPaused, resumed.State.Status)
	assert.Equal(t, 1, resumed.State.CurrentQuestionIndex)
	assert.Len(t, resumed.State.Answers, 1)
	// Time spent offline is not counted.
	assert.Equal(t, int64(3000), resumed.State.Timer.Global.ElapsedMs)

	again, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse(), ResumeSessionID: view.SessionID})
	require.NoError(t, err)
	assert.True(t, again.Restored)
	assert.Equal(t, 1, f.svc.Len())
}

func TestSessionService_List(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, 0)

	a, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse()})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	b, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse()})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, 9, model.CreateSessionRequest{Exercise: trueFalse()})
	require.NoError(t, err)

	require.NoError(t, f.svc.Destroy(ctx, a.SessionID, 7))

	refs, total := f.svc.List(ctx, 7, model.PageQuery{Page: 1, PerPage: 10})
	require.Equal(t, 2, total)
	assert.Equal(t, b.SessionID, refs[0].SessionID)
	assert.True(t, refs[0].Live)
	assert.Equal(t, a.SessionID, refs[1].SessionID)
	assert.False(t, refs[1].Live)

	refs, total = f.svc.List(ctx, 7, model.PageQuery{Page: 2, PerPage: 1})
	assert.Equal(t, 2, total)
	require.Len(t, refs, 1)
	assert.Equal(t, a.SessionID, refs[0].SessionID)

	refs, _ = f.svc.List(ctx, 7, model.PageQuery{Page: 5, PerPage: 10})
	assert.Empty(t, refs)
}

func TestSessionService_Reap(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, 0)

	done, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse(), Start: true})
	require.NoError(t, err)
	eng, err := f.svc.Get(done.SessionID, 7)
	require.NoError(t, err)
	_, err = eng.Complete(ctx)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse(), Start: true})
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.Reap(ctx, 2*time.Hour))
	assert.Equal(t, 1, f.svc.Len())
	assert.Contains(t, f.recorder.statuses(), model.SessionStatusCompleted)

	f.clock.Advance(3 * time.Hour)
	assert.Equal(t, 1, f.svc.Reap(ctx, 2*time.Hour))
	assert.Zero(t, f.svc.Len())
}

func TestSessionService_Shutdown(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, 0)

	_, err := f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse(), Start: true})
	require.NoError(t, err)

	f.svc.Shutdown(ctx)
	assert.Zero(t, f.svc.Len())

	_, err = f.svc.Create(ctx, 7, model.CreateSessionRequest{Exercise: trueFalse()})
	assert.ErrorIs(t, err, ErrShuttingDown)
}
