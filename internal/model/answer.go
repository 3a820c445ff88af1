package model

import "time"

// ValidationResult is the verdict for one submitted answer. It is produced
// fresh per submission and never mutated afterwards.
type ValidationResult struct {
	IsCorrect     bool     `json:"is_correct"`
	Feedback      string   `json:"feedback"`
	CorrectAnswer any      `json:"correct_answer"`
	PartialCredit *float64 `json:"partial_credit,omitempty"`
}

// Credit returns the partial credit or zero when none was computed.
func (v ValidationResult) Credit() float64 {
	if v.PartialCredit == nil {
		return 0
	}
	return *v.PartialCredit
}

// ScoreComponents itemizes how a score was built.
type ScoreComponents struct {
	Base            float64  `json:"base"`
	DifficultyBonus float64  `json:"difficulty_bonus"`
	TimeBonus       *float64 `json:"time_bonus,omitempty"`
	HintPenalty     *float64 `json:"hint_penalty,omitempty"`
	StreakBonus     *float64 `json:"streak_bonus,omitempty"`
	PartialCredit   *float64 `json:"partial_credit,omitempty"`
}

// ScoreMetadata records the context a score was computed in.
type ScoreMetadata struct {
	TimeToAnswerMs int64      `json:"time_to_answer_ms"`
	Difficulty     Difficulty `json:"difficulty"`
	HintsUsed      int        `json:"hints_used"`
	StreakLength   int        `json:"streak_length"`
	IsCorrect      bool       `json:"is_correct"`
}

// ScoreBreakdown is the priced result of one answer.
type ScoreBreakdown struct {
	Points    int             `json:"points"`
	Breakdown ScoreComponents `json:"breakdown"`
	Metadata  ScoreMetadata   `json:"metadata"`
}

// AnswerRecord is the live record for one question index. Resubmitting the
// same index overwrites it.
type AnswerRecord struct {
	QuestionIndex  int              `json:"question_index"`
	Answer         any              `json:"answer"`
	Validation     ValidationResult `json:"validation"`
	Score          ScoreBreakdown   `json:"score"`
	Timestamp      time.Time        `json:"timestamp"`
	TimeToAnswerMs int64            `json:"time_to_answer_ms"`
	HintsUsed      int              `json:"hints_used"`
	Difficulty     Difficulty       `json:"difficulty"`
}

// HintUse records a single hint request.
type HintUse struct {
	Level     int       `json:"level"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// HintResult is returned by a hint request. Exhausted marks the
// "no more hints" result.
type HintResult struct {
	Text      string `json:"text,omitempty"`
	Level     int    `json:"level"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Exhausted bool   `json:"exhausted"`
}

// SubmitResult is returned from a successful answer submission.
type SubmitResult struct {
	Validation  ValidationResult `json:"validation"`
	ScoreData   ScoreBreakdown   `json:"score_data"`
	CanProceed  bool             `json:"can_proceed"`
	TotalScore  int              `json:"total_score"`
	StreakAfter int              `json:"streak_after"`
}
