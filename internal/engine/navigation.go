package engine

import (
	"context"

	"github.com/stemsi/exstem-drill/internal/event"
	"github.com/stemsi/exstem-drill/internal/model"
)

// NextQuestion advances to the next question. On the last question it
// completes the session instead.
func (e *Engine) NextQuestion(ctx context.Context) (model.NavigationResult, error) {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.navigableLocked(); err != nil {
		return model.NavigationResult{}, err
	}
	if !e.cfg.AllowIncorrectProgression {
		if a, ok := e.answers[e.current]; ok && !a.Validation.IsCorrect {
			return model.NavigationResult{}, ErrProgressionBlocked
		}
	}

	if e.current+1 >= e.def.QuestionCount() {
		res, err := e.completeLocked()
		if err != nil {
			return model.NavigationResult{}, err
		}
		return model.NavigationResult{Index: e.current, Completed: true, Result: &res}, nil
	}
	return e.moveLocked(e.current + 1), nil
}

// PreviousQuestion moves back one question, staying on the first.
func (e *Engine) PreviousQuestion(ctx context.Context) (model.NavigationResult, error) {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.navigableLocked(); err != nil {
		return model.NavigationResult{}, err
	}
	if e.current == 0 {
		q := e.def.PublicQuestion(0)
		return model.NavigationResult{Index: 0, Question: &q}, nil
	}
	return e.moveLocked(e.current - 1), nil
}

// GoToQuestion jumps to question i.
func (e *Engine) GoToQuestion(ctx context.Context, i int) (model.NavigationResult, error) {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.navigableLocked(); err != nil {
		return model.NavigationResult{}, err
	}
	if i < 0 || i >= e.def.QuestionCount() {
		return model.NavigationResult{}, ErrQuestionOutOfRange
	}
	return e.moveLocked(i), nil
}

func (e *Engine) navigableLocked() error {
	if err := e.usableLocked(); err != nil {
		return err
	}
	if e.result != nil {
		return ErrCompleted
	}
	return nil
}

func (e *Engine) moveLocked(i int) model.NavigationResult {
	q := e.def.PublicQuestion(i)
	res := model.NavigationResult{Index: i, Question: &q}
	if i == e.current {
		return res
	}
	prev := e.current
	e.current = i
	if e.started {
		e.timers.StartQuestion(i)
	}
	e.fx.publish(event.QuestionChanged{Index: i, Previous: prev, Question: q})
	e.fx.persist(e.snapshotLocked(), false)
	return res
}

// BookmarkQuestion toggles the bookmark on question i and returns whether
// it is now bookmarked.
func (e *Engine) BookmarkQuestion(ctx context.Context, i int) (bool, error) {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.usableLocked(); err != nil {
		return false, err
	}
	if i < 0 || i >= e.def.QuestionCount() {
		return false, ErrQuestionOutOfRange
	}
	return e.toggleBookmarkLocked(i), nil
}

// BookmarkCurrent toggles the bookmark on the current question.
func (e *Engine) BookmarkCurrent(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.usableLocked(); err != nil {
		return false, err
	}
	return e.toggleBookmarkLocked(e.current), nil
}

func (e *Engine) toggleBookmarkLocked(i int) bool {
	_, on := e.bookmarks[i]
	if on {
		delete(e.bookmarks, i)
		e.fx.publish(event.BookmarkRemoved{Index: i})
	} else {
		e.bookmarks[i] = struct{}{}
		e.fx.publish(event.BookmarkAdded{Index: i})
	}
	e.fx.persist(e.snapshotLocked(), false)
	return !on
}
