package engine

import "errors"

// Operations called out of sequence return one of these. They are never
// retried internally.
var (
	ErrMissingExerciseData = errors.New("engine: missing exercise data")
	ErrInvalidConfig       = errors.New("engine: invalid exercise config")
	ErrAlreadyStarted      = errors.New("engine: exercise already started")
	ErrNotStarted          = errors.New("engine: exercise not started")
	ErrPaused              = errors.New("engine: exercise is paused")
	ErrNotPaused           = errors.New("engine: exercise is not paused")
	ErrCompleted           = errors.New("engine: exercise already completed")
	ErrNoCurrentQuestion   = errors.New("engine: no current question")
	ErrQuestionOutOfRange  = errors.New("engine: question index out of range")
	ErrProgressionBlocked  = errors.New("engine: incorrect answer blocks progression")
	ErrSnapshotMismatch    = errors.New("engine: snapshot does not belong to this session")
	ErrDestroyed           = errors.New("engine: destroyed")
	ErrFailed              = errors.New("engine: failed, reload the exercise")
)
