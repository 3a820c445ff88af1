package config

import (
	"fmt"
)

type StoreKeyStruct struct{}

func NewStoreKeyStruct() *StoreKeyStruct {
	return &StoreKeyStruct{}
}

// SessionState returns the logical key of a session snapshot
func (r *StoreKeyStruct) SessionState(exerciseID, sessionID string) string {
	return fmt.Sprintf("exercise:%s:session:%s:state", exerciseID, sessionID)
}

// ExerciseResult returns the logical key of a completed session's result
func (r *StoreKeyStruct) ExerciseResult(exerciseID, sessionID string) string {
	return fmt.Sprintf("exercise:%s:session:%s:result", exerciseID, sessionID)
}

// ExerciseDefinition returns the logical key of a cached exercise definition
func (r *StoreKeyStruct) ExerciseDefinition(exerciseID string) string {
	return fmt.Sprintf("exercise:%s:definition", exerciseID)
}

// LearnerSessions returns the logical key of a learner's session index
func (r *StoreKeyStruct) LearnerSessions(learnerID int) string {
	return fmt.Sprintf("learner:%d:sessions", learnerID)
}

var StoreKey = NewStoreKeyStruct()
