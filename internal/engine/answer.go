package engine

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-drill/internal/event"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/scoring"
)

// SubmitAnswer judges and prices an answer to the current question.
// Resubmitting a question replaces its earlier record and score.
func (e *Engine) SubmitAnswer(ctx context.Context, ans any) (res model.SubmitResult, err error) {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.activeLocked(); err != nil {
		return res, err
	}
	if e.current < 0 || e.current >= e.def.QuestionCount() {
		return res, ErrNoCurrentQuestion
	}

	defer func() {
		if r := recover(); r != nil {
			res = model.SubmitResult{}
			err = e.failLocked("submit_answer", r)
		}
	}()

	idx := e.current
	q := e.def.Questions[idx]
	verdict := e.validator.Validate(ans, q, e.def.TypeOf(idx))

	tta, _ := e.timers.QuestionTime(idx)
	prev, resubmitted := e.answers[idx]

	record := model.AnswerRecord{
		QuestionIndex:  idx,
		Answer:         ans,
		Validation:     verdict,
		Timestamp:      e.clock.Now(),
		TimeToAnswerMs: tta.Milliseconds(),
		HintsUsed:      len(e.hints[idx]),
		Difficulty:     q.Difficulty.Normalize(),
	}
	e.answers[idx] = record
	e.streak = e.streakEndingAtLocked(idx)

	breakdown := e.calc.CalculateScore(verdict, scoring.Context{
		TimeToAnswer: tta,
		Difficulty:   record.Difficulty,
		HintsUsed:    record.HintsUsed,
		StreakLength: e.streak,
	})
	record.Score = breakdown
	e.answers[idx] = record

	if resubmitted {
		e.score -= prev.Score.Points
	}
	e.score += breakdown.Points

	res = model.SubmitResult{
		Validation:  verdict,
		ScoreData:   breakdown,
		CanProceed:  verdict.IsCorrect || e.cfg.AllowIncorrectProgression,
		TotalScore:  e.score,
		StreakAfter: e.streak,
	}

	e.fx.publish(event.AnswerSubmitted{
		Index:      idx,
		Answer:     ans,
		Validation: verdict,
		ScoreData:  breakdown,
		TotalScore: e.score,
	})
	e.fx.persist(e.snapshotLocked(), false)

	e.log.Debug().
		Int("question", idx).
		Bool("correct", verdict.IsCorrect).
		Int("points", breakdown.Points).
		Bool("resubmitted", resubmitted).
		Msg("Answer submitted")
	return res, nil
}

// streakEndingAtLocked counts consecutive correct answers ending at idx over
// the answered questions in question order. Unanswered questions neither
// extend nor break a streak, the same as the final score replay.
func (e *Engine) streakEndingAtLocked(idx int) int {
	keys := sortedKeys(e.answers)
	n := 0
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] > idx {
			continue
		}
		if !e.answers[keys[i]].Validation.IsCorrect {
			break
		}
		n++
	}
	return n
}

const (
	noHintText     = "Read the question again carefully."
	exhaustedHints = "No more hints available"
)

var hintPhrasings = [...]string{
	"Hint: %s",
	"Look closer: %s",
	"Final hint: %s",
}

// hintText renders a question's hint at level (1-based). An authored
// hints[level-1] is returned as is; otherwise stronger levels use stronger
// phrasings of the single hint.
func hintText(q model.Question, level int) string {
	if level < 1 {
		level = 1
	}
	if level <= len(q.Hints) && q.Hints[level-1] != "" {
		return q.Hints[level-1]
	}
	src := q.Hint
	if src == "" && len(q.Hints) > 0 {
		src = q.Hints[0]
	}
	if src == "" {
		return noHintText
	}
	if level > len(hintPhrasings) {
		level = len(hintPhrasings)
	}
	return fmt.Sprintf(hintPhrasings[level-1], src)
}

// GetHint returns the next hint for the current question. A non-positive
// level asks for the next level. Once maxHints is reached it returns the
// Exhausted sentinel without counting another use.
func (e *Engine) GetHint(ctx context.Context, level int) (model.HintResult, error) {
	e.mu.Lock()
	defer e.flush(ctx)
	if err := e.activeLocked(); err != nil {
		return model.HintResult{}, err
	}
	if e.current < 0 || e.current >= e.def.QuestionCount() {
		return model.HintResult{}, ErrNoCurrentQuestion
	}

	idx := e.current
	used := len(e.hints[idx])
	limit := e.cfg.MaxHints
	if used >= limit {
		return model.HintResult{
			Text:      exhaustedHints,
			Level:     used,
			Used:      used,
			Remaining: 0,
			Exhausted: true,
		}, nil
	}

	if level <= used {
		level = used + 1
	}
	text := hintText(e.def.Questions[idx], level)
	e.hints[idx] = append(e.hints[idx], model.HintUse{Level: level, Text: text, Timestamp: e.clock.Now()})
	used++

	e.fx.publish(event.HintUsed{Index: idx, Level: level, Text: text, Remaining: limit - used})
	e.fx.persist(e.snapshotLocked(), false)
	return model.HintResult{
		Text:      text,
		Level:     level,
		Used:      used,
		Remaining: limit - used,
	}, nil
}
