package answer

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/model"
)

// UnknownTypeFeedback is returned for exercise types without a strategy.
const UnknownTypeFeedback = "Unable to validate this answer type"

// Strategy judges one answer against one question.
type Strategy interface {
	Validate(answer any, q model.Question) model.ValidationResult
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(answer any, q model.Question) model.ValidationResult

func (f StrategyFunc) Validate(answer any, q model.Question) model.ValidationResult {
	return f(answer, q)
}

// Validator routes by exercise type to the registered Strategy.
type Validator struct {
	mu         sync.RWMutex
	strategies map[model.ExerciseType]Strategy
	log        zerolog.Logger
}

// NewValidator installs the built-in strategies.
func NewValidator(log zerolog.Logger) *Validator {
	v := &Validator{
		strategies: make(map[model.ExerciseType]Strategy, len(model.ExerciseTypes)),
		log:        log.With().Str("component", "answer_validator").Logger(),
	}
	for _, t := range model.ExerciseTypes {
		v.strategies[t] = builtin(t)
	}
	return v
}

// builtin is exhaustive over model.ExerciseTypes.
func builtin(t model.ExerciseType) Strategy {
	switch t {
	case model.ExerciseTypeMultipleChoice, model.ExerciseTypeTrueFalse:
		return exactMatch{}
	case model.ExerciseTypeMultiSelect, model.ExerciseTypeHighlight:
		return setMatch{}
	case model.ExerciseTypeFillBlank, model.ExerciseTypeGapFill:
		return positionalMatch{}
	case model.ExerciseTypeDragDrop:
		return mapMatch{expected: func(q model.Question) map[string]string { return q.CorrectPositions }}
	case model.ExerciseTypeTableCompletion:
		return mapMatch{expected: func(q model.Question) map[string]string { return q.CorrectTable }}
	case model.ExerciseTypeSequencing:
		return sequenceMatch{}
	}
	return nil
}

// Register adds or replaces the strategy for t.
func (v *Validator) Register(t model.ExerciseType, s Strategy) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.strategies[t] = s
}

// KnownTypes returns the types that currently have a strategy.
func (v *Validator) KnownTypes() []model.ExerciseType {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]model.ExerciseType, 0, len(v.strategies))
	for t, s := range v.strategies {
		if s != nil {
			out = append(out, t)
		}
	}
	return out
}

// Supports reports whether a strategy exists for t.
func (v *Validator) Supports(t model.ExerciseType) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.strategies[t]
	return ok && s != nil
}

// Validate judges answer. Unknown types never fail: they yield an incorrect
// verdict and a warning in the log.
func (v *Validator) Validate(answer any, q model.Question, t model.ExerciseType) model.ValidationResult {
	v.mu.RLock()
	s, ok := v.strategies[t]
	v.mu.RUnlock()

	if !ok || s == nil {
		v.log.Warn().Str("exercise_type", string(t)).Msg("No validator registered for exercise type")
		return model.ValidationResult{
			IsCorrect:     false,
			Feedback:      UnknownTypeFeedback,
			CorrectAnswer: nil,
		}
	}
	return s.Validate(answer, q)
}
