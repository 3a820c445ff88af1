package engine

import (
	"context"

	"github.com/stemsi/exstem-drill/internal/event"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/scoring"
)

// Complete finishes the session and returns its result. Calling it again
// returns the same result without recomputing it.
func (e *Engine) Complete(ctx context.Context) (model.CompletionResult, error) {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.usableLocked(); err != nil {
		return model.CompletionResult{}, err
	}
	return e.completeLocked()
}

func (e *Engine) completeLocked() (model.CompletionResult, error) {
	if e.result != nil {
		return *e.result, nil
	}
	if !e.started {
		return model.CompletionResult{}, ErrNotStarted
	}
	if e.status.Current() == model.SessionStatusPaused {
		e.timers.Resume()
		if err := e.status.Transition(model.SessionStatusInProgress); err != nil {
			return model.CompletionResult{}, err
		}
	}

	e.timers.StopAll()
	total := e.timers.GlobalElapsed()

	answers := make([]model.AnswerRecord, 0, len(e.answers))
	for _, i := range sortedKeys(e.answers) {
		answers = append(answers, e.answers[i])
	}
	final := e.calc.CalculateFinalScore(scoring.FinalInput{
		Answers:        answers,
		TotalTime:      total,
		QuestionsCount: e.def.QuestionCount(),
	})

	if err := e.status.Transition(model.SessionStatusCompleted); err != nil {
		return model.CompletionResult{}, err
	}
	res := model.CompletionResult{
		ExerciseID:  e.def.ID,
		SessionID:   e.sessionID,
		LearnerID:   e.learnerID,
		Score:       final,
		TotalTimeMs: total.Milliseconds(),
		Bookmarks:   e.bookmarkListLocked(),
		HintsUsed:   e.hintsTotalLocked(),
		CompletedAt: e.clock.Now(),
	}
	e.result = &res
	e.stopBackgroundLocked()

	e.fx.result = &res
	e.fx.persist(e.snapshotLocked(), true)
	e.fx.publish(event.ExerciseCompleted{Result: res})

	e.log.Info().
		Int("score", final.Total).
		Int("accuracy", final.Accuracy).
		Str("grade", final.Grade).
		Msg("Exercise completed")
	return res, nil
}
