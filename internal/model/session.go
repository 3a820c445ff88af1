package model

import "time"

// AnswerEntry is one (index, record) pair of a snapshot.
type AnswerEntry struct {
	Index  int          `json:"index"`
	Record AnswerRecord `json:"record"`
}

// HintEntry is one (index, uses) pair of a snapshot.
type HintEntry struct {
	Index int       `json:"index"`
	Uses  []HintUse `json:"uses"`
}

// SessionSnapshot is the JSON-serializable state of a session, sufficient to
// resume it. It is the interchange format with the session store and clients.
type SessionSnapshot struct {
	ExerciseID           string            `json:"exercise_id"`
	SessionID            string            `json:"session_id"`
	LearnerID            int               `json:"learner_id,omitempty"`
	Status               SessionStatus     `json:"status"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	QuestionCount        int               `json:"question_count"`
	Score                int               `json:"score"`
	Streak               int               `json:"streak"`
	Answers              []AnswerEntry     `json:"answers"`
	Hints                []HintEntry       `json:"hints"`
	Bookmarks            []int             `json:"bookmarks"`
	IsStarted            bool              `json:"is_started"`
	IsCompleted          bool              `json:"is_completed"`
	IsPaused             bool              `json:"is_paused"`
	StartedAt            *time.Time        `json:"started_at,omitempty"`
	Timer                TimerSnapshot     `json:"timer"`
	Result               *CompletionResult `json:"result,omitempty"`
	SavedAt              time.Time         `json:"saved_at"`
}

// NavigationResult is returned by question navigation. Moving past the last
// question completes the session instead.
type NavigationResult struct {
	Index     int               `json:"index"`
	Question  *PublicQuestion   `json:"question,omitempty"`
	Completed bool              `json:"completed"`
	Result    *CompletionResult `json:"result,omitempty"`
}
