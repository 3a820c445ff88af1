package event

import (
	"time"

	"github.com/stemsi/exstem-drill/internal/model"
)

// Name identifies an event on the wire.
type Name string

const (
	NameExerciseLoaded    Name = "exercise:loaded"
	NameExerciseStarted   Name = "exercise:started"
	NameExercisePaused    Name = "exercise:paused"
	NameExerciseResumed   Name = "exercise:resumed"
	NameExerciseReset     Name = "exercise:reset"
	NameExerciseCompleted Name = "exercise:completed"
	NameQuestionChanged   Name = "question:changed"
	NameAnswerSubmitted   Name = "answer:submitted"
	NameHintUsed          Name = "hint:used"
	NameBookmarkAdded     Name = "bookmark:added"
	NameBookmarkRemoved   Name = "bookmark:removed"
	NameTimerUpdate       Name = "timerUpdate"
	NameTimeWarning       Name = "timeWarning"
	NameTimeLimitExceeded Name = "timeLimitExceeded"
	NameAutoSaved         Name = "auto:saved"
	NameEngineInitialized Name = "engine:initialized"
	NameEngineDestroyed   Name = "engine:destroyed"
	NameEngineError       Name = "engine:error"
)

// Event is anything published on a Bus.
type Event interface {
	Name() Name
}

type ExerciseLoaded struct {
	ExerciseID    string             `json:"exercise_id"`
	SessionID     string             `json:"session_id"`
	Title         string             `json:"title,omitempty"`
	Type          model.ExerciseType `json:"type"`
	QuestionCount int                `json:"question_count"`
}

type ExerciseStarted struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}

type ExercisePaused struct {
	SessionID string `json:"session_id"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type ExerciseResumed struct {
	SessionID string `json:"session_id"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type ExerciseReset struct {
	SessionID string `json:"session_id"`
}

type ExerciseCompleted struct {
	Result model.CompletionResult `json:"result"`
}

type QuestionChanged struct {
	Index    int                  `json:"index"`
	Previous int                  `json:"previous"`
	Question model.PublicQuestion `json:"question"`
}

type AnswerSubmitted struct {
	Index      int                    `json:"index"`
	Answer     any                    `json:"answer"`
	Validation model.ValidationResult `json:"validation"`
	ScoreData  model.ScoreBreakdown   `json:"score_data"`
	TotalScore int                    `json:"total_score"`
}

type HintUsed struct {
	Index     int    `json:"index"`
	Level     int    `json:"level"`
	Text      string `json:"text"`
	Remaining int    `json:"remaining"`
}

type BookmarkAdded struct {
	Index int `json:"index"`
}

type BookmarkRemoved struct {
	Index int `json:"index"`
}

// TimerUpdate is emitted on every tick for each running timer.
type TimerUpdate struct {
	Timer         string `json:"timer"`
	QuestionIndex int    `json:"question_index"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	RemainingMs   int64  `json:"remaining_ms,omitempty"`
	Formatted     string `json:"formatted"`
}

type TimeWarning struct {
	Timer         string `json:"timer"`
	QuestionIndex int    `json:"question_index"`
	RemainingMs   int64  `json:"remaining_ms"`
}

type TimeLimitExceeded struct {
	Timer         string `json:"timer"`
	QuestionIndex int    `json:"question_index"`
	ElapsedMs     int64  `json:"elapsed_ms"`
}

type AutoSaved struct {
	Key     string    `json:"key"`
	SavedAt time.Time `json:"saved_at"`
}

type EngineInitialized struct {
	SessionID string `json:"session_id"`
}

type EngineDestroyed struct {
	SessionID string `json:"session_id"`
}

type EngineError struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

func (ExerciseLoaded) Name() Name    { return NameExerciseLoaded }
func (ExerciseStarted) Name() Name   { return NameExerciseStarted }
func (ExercisePaused) Name() Name    { return NameExercisePaused }
func (ExerciseResumed) Name() Name   { return NameExerciseResumed }
func (ExerciseReset) Name() Name     { return NameExerciseReset }
func (ExerciseCompleted) Name() Name { return NameExerciseCompleted }
func (QuestionChanged) Name() Name   { return NameQuestionChanged }
func (AnswerSubmitted) Name() Name   { return NameAnswerSubmitted }
func (HintUsed) Name() Name          { return NameHintUsed }
func (BookmarkAdded) Name() Name     { return NameBookmarkAdded }
func (BookmarkRemoved) Name() Name   { return NameBookmarkRemoved }
func (TimerUpdate) Name() Name       { return NameTimerUpdate }
func (TimeWarning) Name() Name       { return NameTimeWarning }
func (TimeLimitExceeded) Name() Name { return NameTimeLimitExceeded }
func (AutoSaved) Name() Name         { return NameAutoSaved }
func (EngineInitialized) Name() Name { return NameEngineInitialized }
func (EngineDestroyed) Name() Name   { return NameEngineDestroyed }
func (EngineError) Name() Name       { return NameEngineError }
