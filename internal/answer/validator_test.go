package answer

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-drill/internal/model"
)

func newTestValidator() *Validator {
	return NewValidator(zerolog.Nop())
}

func TestValidator_KnownTypesCoverEnum(t *testing.T) {
	v := newTestValidator()
	assert.ElementsMatch(t, model.ExerciseTypes, v.KnownTypes())
	for _, et := range model.ExerciseTypes {
		assert.True(t, v.Supports(et), "missing strategy for %s", et)
	}
}

func TestValidator_ExactMatch(t *testing.T) {
	v := newTestValidator()
	q := model.Question{CorrectAnswer: "Paris"}

	res := v.Validate("Paris", q, model.ExerciseTypeMultipleChoice)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, "Correct!", res.Feedback)
	assert.Equal(t, "Paris", res.CorrectAnswer)

	res = v.Validate("paris", q, model.ExerciseTypeMultipleChoice)
	assert.False(t, res.IsCorrect, "exact match is case sensitive")
	assert.Nil(t, res.PartialCredit)

	tf := model.Question{CorrectAnswer: "true"}
	assert.True(t, v.Validate(true, tf, model.ExerciseTypeTrueFalse).IsCorrect)
	assert.False(t, v.Validate(false, tf, model.ExerciseTypeTrueFalse).IsCorrect)
}

func TestValidator_SetComparison(t *testing.T) {
	v := newTestValidator()
	q := model.Question{CorrectAnswers: []string{"a", "b", "c", "d"}}

	res := v.Validate([]string{"d", "c", "b", "a"}, q, model.ExerciseTypeMultiSelect)
	assert.True(t, res.IsCorrect)
	require.NotNil(t, res.PartialCredit)
	assert.Equal(t, 1.0, *res.PartialCredit)

	res = v.Validate([]any{"a", "b"}, q, model.ExerciseTypeMultiSelect)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0.5, res.Credit())
	assert.Equal(t, "Partially correct (2/4)", res.Feedback)

	// a superset is not an exact match
	res = v.Validate([]string{"a", "b", "c", "d", "e"}, q, model.ExerciseTypeHighlight)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 1.0, res.Credit())
}

func TestValidator_PositionalFill(t *testing.T) {
	v := newTestValidator()
	q := model.Question{CorrectAnswers: []string{"cat", "Dog", "bird"}}

	res := v.Validate([]string{"  CAT ", "dog", "Bird"}, q, model.ExerciseTypeFillBlank)
	assert.True(t, res.IsCorrect)

	res = v.Validate([]any{"cat", "wolf"}, q, model.ExerciseTypeGapFill)
	assert.False(t, res.IsCorrect)
	assert.InDelta(t, 1.0/3.0, res.Credit(), 1e-9)
	assert.Equal(t, "Partially correct (1/3)", res.Feedback)
}

func TestValidator_MapComparison(t *testing.T) {
	v := newTestValidator()
	q := model.Question{
		CorrectPositions: map[string]string{"apple": "fruit", "carrot": "vegetable"},
		CorrectTable:     map[string]string{"r1c1": "1", "r1c2": "2", "r2c1": "3", "r2c2": "4"},
	}

	res := v.Validate(map[string]any{"apple": "fruit", "carrot": "vegetable"}, q, model.ExerciseTypeDragDrop)
	assert.True(t, res.IsCorrect)

	res = v.Validate(map[string]string{"apple": "vegetable", "carrot": "vegetable"}, q, model.ExerciseTypeDragDrop)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0.5, res.Credit())

	res = v.Validate(map[string]any{"r1c1": "1", "r1c2": 2.0, "r2c1": "x"}, q, model.ExerciseTypeTableCompletion)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0.5, res.Credit())
}

func TestValidator_Sequence(t *testing.T) {
	v := newTestValidator()
	q := model.Question{CorrectSequence: []string{"1", "2", "3", "4"}}

	assert.True(t, v.Validate([]string{"1", "2", "3", "4"}, q, model.ExerciseTypeSequencing).IsCorrect)

	// shifted by one: a subsequence score would be 0.75, positional is 0
	res := v.Validate([]string{"4", "1", "2", "3"}, q, model.ExerciseTypeSequencing)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0.0, res.Credit())
	assert.Equal(t, "Incorrect", res.Feedback)

	res = v.Validate([]string{"1", "3", "2", "4"}, q, model.ExerciseTypeSequencing)
	assert.Equal(t, 0.5, res.Credit())

	res = v.Validate([]string{"1", "2", "3", "4", "5"}, q, model.ExerciseTypeSequencing)
	assert.False(t, res.IsCorrect, "extra elements break the exact order")
}

func TestValidator_UnknownTypeNeverFails(t *testing.T) {
	v := newTestValidator()
	res := v.Validate("x", model.Question{CorrectAnswer: "x"}, model.ExerciseType("essay"))
	assert.False(t, res.IsCorrect)
	assert.Equal(t, UnknownTypeFeedback, res.Feedback)
	assert.Nil(t, res.CorrectAnswer)
}

func TestValidator_Register(t *testing.T) {
	v := newTestValidator()
	essay := model.ExerciseType("essay")
	v.Register(essay, StrategyFunc(func(answer any, q model.Question) model.ValidationResult {
		s, _ := answer.(string)
		return model.ValidationResult{IsCorrect: len(s) > 3, Feedback: "graded"}
	}))

	assert.True(t, v.Supports(essay))
	res := v.Validate("long enough", model.Question{}, essay)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, "graded", res.Feedback)
}
