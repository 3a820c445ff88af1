package answer

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-drill/internal/model"
)

const (
	feedbackCorrect   = "Correct!"
	feedbackIncorrect = "Incorrect"
)

func partialFeedback(hit, total int) string {
	return fmt.Sprintf("Partially correct (%d/%d)", hit, total)
}

func verdict(hit, total int, correctAnswer any, exact bool) model.ValidationResult {
	res := model.ValidationResult{IsCorrect: exact, CorrectAnswer: correctAnswer}
	credit := 0.0
	if total > 0 {
		credit = float64(hit) / float64(total)
	}
	res.PartialCredit = &credit
	switch {
	case exact:
		res.Feedback = feedbackCorrect
	case hit > 0:
		res.Feedback = partialFeedback(hit, total)
	default:
		res.Feedback = feedbackIncorrect
	}
	return res
}

// exactMatch is a case-sensitive identity check against correct_answer.
type exactMatch struct{}

func (exactMatch) Validate(answer any, q model.Question) model.ValidationResult {
	resp, ok := toString(answer)
	res := model.ValidationResult{CorrectAnswer: q.CorrectAnswer, Feedback: feedbackIncorrect}
	if ok && resp == q.CorrectAnswer {
		res.IsCorrect = true
		res.Feedback = feedbackCorrect
	}
	return res
}

// setMatch is correct iff the submitted set equals correct_answers exactly.
type setMatch struct{}

func (setMatch) Validate(answer any, q model.Question) model.ValidationResult {
	resp, _ := toStringSlice(answer)
	want := toSet(q.CorrectAnswers)
	got := toSet(resp)

	hit := 0
	for k := range got {
		if _, ok := want[k]; ok {
			hit++
		}
	}
	return verdict(hit, len(want), q.CorrectAnswers, setEqual(want, got))
}

// positionalMatch compares each blank case-insensitively after trimming.
type positionalMatch struct{}

func (positionalMatch) Validate(answer any, q model.Question) model.ValidationResult {
	resp, _ := toStringSlice(answer)
	hit := 0
	for i, want := range q.CorrectAnswers {
		if i < len(resp) && normalizeBlank(resp[i]) == normalizeBlank(want) {
			hit++
		}
	}
	total := len(q.CorrectAnswers)
	return verdict(hit, total, q.CorrectAnswers, total > 0 && hit == total)
}

// mapMatch compares each expected key's assigned value.
type mapMatch struct {
	expected func(model.Question) map[string]string
}

func (s mapMatch) Validate(answer any, q model.Question) model.ValidationResult {
	want := s.expected(q)
	got, _ := toStringMap(answer)
	hit := 0
	for k, v := range want {
		if gv, ok := got[k]; ok && gv == v {
			hit++
		}
	}
	return verdict(hit, len(want), want, len(want) > 0 && hit == len(want))
}

// sequenceMatch requires the exact order; credit counts elements that sit at
// their expected index.
type sequenceMatch struct{}

func (sequenceMatch) Validate(answer any, q model.Question) model.ValidationResult {
	resp, _ := toStringSlice(answer)
	want := q.CorrectSequence
	hit := 0
	for i := range want {
		if i < len(resp) && resp[i] == want[i] {
			hit++
		}
	}
	exact := len(want) > 0 && len(resp) == len(want) && hit == len(want)
	return verdict(hit, len(want), want, exact)
}

func normalizeBlank(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
