package model

import "time"

// TimerState is the recorded state of one logical timer. Elapsed is only
// authoritative after being recomputed from the other fields.
type TimerState struct {
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	PauseStartTime *time.Time `json:"pause_start_time,omitempty"`
	PausedMs       int64      `json:"paused_ms"`
	IsPaused       bool       `json:"is_paused"`
	LimitMs        int64      `json:"limit_ms,omitempty"`
	ElapsedMs      int64      `json:"elapsed_ms"`
	WarningEmitted bool       `json:"warning_emitted"`
}

// QuestionTimerState pairs a question index with its timer.
type QuestionTimerState struct {
	QuestionIndex int        `json:"question_index"`
	Timer         TimerState `json:"timer"`
}

// TimerSnapshot captures the dual timer.
type TimerSnapshot struct {
	Global    *TimerState          `json:"global,omitempty"`
	Question  *QuestionTimerState  `json:"question,omitempty"`
	Completed []QuestionTimerState `json:"completed,omitempty"`
	IsPaused  bool                 `json:"is_paused"`
}
