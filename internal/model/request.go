package model

import "time"

// ExerciseConfigOverrides carries the per-session settings a client may
// override. Nil fields keep the server defaults.
type ExerciseConfigOverrides struct {
	TimeLimitSec              *int     `json:"time_limit_sec" binding:"omitempty,min=0,max=86400"`
	QuestionTimeLimitSec      *int     `json:"question_time_limit_sec" binding:"omitempty,min=0,max=86400"`
	TimeWarningFraction       *float64 `json:"time_warning_fraction" binding:"omitempty,min=0,lt=1"`
	AutoSaveFrequencyMs       *int     `json:"auto_save_frequency_ms" binding:"omitempty,min=0"`
	MaxHints                  *int     `json:"max_hints" binding:"omitempty,min=0,max=10"`
	AllowPartialCredit        *bool    `json:"allow_partial_credit"`
	AllowIncorrectProgression *bool    `json:"allow_incorrect_progression"`
	AutoCompleteOnTimeout     *bool    `json:"auto_complete_on_timeout"`
	BaseScore                 *int     `json:"base_score" binding:"omitempty,min=1,max=10000"`
}

// CreateSessionRequest loads an exercise into a new session. Either an
// inline definition or the id of a stored exercise is required.
type CreateSessionRequest struct {
	ExerciseID string                   `json:"exercise_id" binding:"required_without=Exercise,omitempty,max=128"`
	Exercise   *ExerciseDefinition      `json:"exercise" binding:"omitempty"`
	Config     *ExerciseConfigOverrides `json:"config" binding:"omitempty"`
	// ResumeSessionID restores a previously saved session instead of
	// starting a fresh one.
	ResumeSessionID string `json:"resume_session_id" binding:"omitempty,uuid"`
	// Start starts the session right after loading.
	Start bool `json:"start"`
}

// SubmitAnswerRequest is the payload for answering the current question.
// Answer shape depends on the question type.
type SubmitAnswerRequest struct {
	Answer any `json:"answer"`
}

// HintRequest asks for a hint. Level zero requests the next level.
type HintRequest struct {
	Level int `json:"level" binding:"omitempty,min=0,max=10"`
}

// GoToQuestionRequest jumps to a question.
type GoToQuestionRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// BookmarkRequest toggles a bookmark. A nil index bookmarks the current question.
type BookmarkRequest struct {
	Index *int `json:"index" binding:"omitempty,min=0"`
}

// TokenRequest is the payload a trusted client uses to obtain a token for
// an already identified learner or author.
type TokenRequest struct {
	ClientKey string `json:"client_key" binding:"required,min=8,max=128"`
	SubjectID int    `json:"subject_id" binding:"required,min=1"`
	Role      string `json:"role" binding:"required,oneof=learner author"`
}

// PageQuery is the common pagination query.
type PageQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// Normalize fills in the defaults.
func (q *PageQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
}

// Offset is the zero-based index of the first item on the page.
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// SessionRef is one entry of a learner's session index.
type SessionRef struct {
	SessionID  string        `json:"session_id"`
	ExerciseID string        `json:"exercise_id"`
	LearnerID  int           `json:"learner_id,omitempty"`
	Title      string        `json:"title,omitempty"`
	Status     SessionStatus `json:"status"`
	Live       bool          `json:"live"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SessionView is returned when a session is created or restored.
type SessionView struct {
	SessionID string          `json:"session_id"`
	Restored  bool            `json:"restored"`
	Question  *PublicQuestion `json:"question,omitempty"`
	State     SessionSnapshot `json:"state"`
}

// ExerciseSummary is the list view of a stored exercise.
type ExerciseSummary struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Type          ExerciseType `json:"type"`
	QuestionCount int          `json:"question_count"`
	AuthorID      int          `json:"author_id"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// StoredResult is a completion result as persisted for reporting.
type StoredResult struct {
	SessionID   string    `json:"session_id"`
	ExerciseID  string    `json:"exercise_id"`
	LearnerID   int       `json:"learner_id"`
	TotalScore  int       `json:"total_score"`
	Accuracy    int       `json:"accuracy"`
	Grade       string    `json:"grade"`
	TotalTimeMs int64     `json:"total_time_ms"`
	CompletedAt time.Time `json:"completed_at"`
}
