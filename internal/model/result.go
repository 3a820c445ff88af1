package model

import "time"

// FinalScore aggregates a completed session.
type FinalScore struct {
	Total                  int              `json:"total"`
	RawTotal               int              `json:"raw_total"`
	CompletionBonus        int              `json:"completion_bonus"`
	CorrectAnswers         int              `json:"correct_answers"`
	AnsweredQuestions      int              `json:"answered_questions"`
	TotalQuestions         int              `json:"total_questions"`
	Accuracy               int              `json:"accuracy"`
	AverageTimePerQuestion int64            `json:"average_time_per_question_ms"`
	Efficiency             float64          `json:"efficiency"`
	LongestStreak          int              `json:"longest_streak"`
	Grade                  string           `json:"grade"`
	Performance            string           `json:"performance"`
	MaximumPossible        int              `json:"maximum_possible"`
	Percentage             float64          `json:"percentage"`
	Answers                []ScoreBreakdown `json:"answers"`
}

// CompletionResult is the payload emitted with exercise:completed.
type CompletionResult struct {
	ExerciseID  string     `json:"exercise_id"`
	SessionID   string     `json:"session_id"`
	LearnerID   int        `json:"learner_id,omitempty"`
	Score       FinalScore `json:"score"`
	TotalTimeMs int64      `json:"total_time_ms"`
	Bookmarks   []int      `json:"bookmarks"`
	HintsUsed   int        `json:"hints_used"`
	CompletedAt time.Time  `json:"completed_at"`
}
