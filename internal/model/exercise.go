package model

import "errors"

// ExerciseType tags the comparison family used to judge a question.
type ExerciseType string

const (
	ExerciseTypeMultipleChoice  ExerciseType = "multiple_choice"
	ExerciseTypeTrueFalse       ExerciseType = "true_false"
	ExerciseTypeMultiSelect     ExerciseType = "multi_select"
	ExerciseTypeHighlight       ExerciseType = "highlight"
	ExerciseTypeFillBlank       ExerciseType = "fill_blank"
	ExerciseTypeGapFill         ExerciseType = "gap_fill"
	ExerciseTypeDragDrop        ExerciseType = "drag_drop"
	ExerciseTypeTableCompletion ExerciseType = "table_completion"
	ExerciseTypeSequencing      ExerciseType = "sequencing"
)

// ExerciseTypes lists every built-in exercise type.
var ExerciseTypes = []ExerciseType{
	ExerciseTypeMultipleChoice,
	ExerciseTypeTrueFalse,
	ExerciseTypeMultiSelect,
	ExerciseTypeHighlight,
	ExerciseTypeFillBlank,
	ExerciseTypeGapFill,
	ExerciseTypeDragDrop,
	ExerciseTypeTableCompletion,
	ExerciseTypeSequencing,
}

// IsKnown reports whether t is one of the built-in types.
func (t ExerciseType) IsKnown() bool {
	for _, k := range ExerciseTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Difficulty of a single question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Normalize returns the difficulty, defaulting unknown or empty values to medium.
func (d Difficulty) Normalize() Difficulty {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	default:
		return DifficultyMedium
	}
}

// ExerciseDefinition is the immutable content of one exercise.
type ExerciseDefinition struct {
	ID        string       `json:"id" binding:"required,max=128"`
	Title     string       `json:"title,omitempty" binding:"omitempty,max=255"`
	Type      ExerciseType `json:"type" binding:"required,exercise_type"`
	Questions []Question   `json:"questions" binding:"required,min=1,dive"`
}

// Question is a single item of an exercise. Which correct_* field is read
// depends on the exercise type.
type Question struct {
	ID     string `json:"id,omitempty"`
	Prompt string `json:"prompt,omitempty"`

	// Type overrides the exercise type for mixed exercises.
	Type ExerciseType `json:"type,omitempty" binding:"omitempty,exercise_type"`

	// Options are shown to the learner as-is, e.g. the choices of a
	// multiple choice question.
	Options []string `json:"options,omitempty"`

	CorrectAnswer    string            `json:"correct_answer,omitempty"`
	CorrectAnswers   []string          `json:"correct_answers,omitempty"`
	CorrectPositions map[string]string `json:"correct_positions,omitempty"`
	CorrectSequence  []string          `json:"correct_sequence,omitempty"`
	CorrectTable     map[string]string `json:"correct_table,omitempty"`

	Hint  string   `json:"hint,omitempty"`
	Hints []string `json:"hints,omitempty"`

	Difficulty Difficulty `json:"difficulty,omitempty" binding:"omitempty,oneof=easy medium hard"`
}

// ErrEmptyExercise is returned when a definition has no questions.
var ErrEmptyExercise = errors.New("exercise has no questions")

// QuestionCount returns the number of questions in the exercise.
func (d *ExerciseDefinition) QuestionCount() int {
	if d == nil {
		return 0
	}
	return len(d.Questions)
}

// TypeOf returns the effective type of question i.
func (d *ExerciseDefinition) TypeOf(i int) ExerciseType {
	if i >= 0 && i < len(d.Questions) && d.Questions[i].Type != "" {
		return d.Questions[i].Type
	}
	return d.Type
}

// Validate checks structural invariants the engine relies on.
func (d *ExerciseDefinition) Validate() error {
	if len(d.Questions) == 0 {
		return ErrEmptyExercise
	}
	return nil
}

// PublicQuestion is a question without its answer key.
type PublicQuestion struct {
	Index      int          `json:"index"`
	ID         string       `json:"id,omitempty"`
	Prompt     string       `json:"prompt,omitempty"`
	Options    []string     `json:"options,omitempty"`
	Type       ExerciseType `json:"type"`
	Difficulty Difficulty   `json:"difficulty"`
	HasHint    bool         `json:"has_hint"`
}

// PublicQuestion returns question i stripped of its answer key.
func (d *ExerciseDefinition) PublicQuestion(i int) PublicQuestion {
	q := d.Questions[i]
	return PublicQuestion{
		Index:      i,
		ID:         q.ID,
		Prompt:     q.Prompt,
		Options:    q.Options,
		Type:       d.TypeOf(i),
		Difficulty: q.Difficulty.Normalize(),
		HasHint:    q.Hint != "" || len(q.Hints) > 0,
	}
}
