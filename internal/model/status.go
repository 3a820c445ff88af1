package model

import (
	"errors"
	"fmt"
)

// SessionStatus enumerates the lifecycle states of an exercise session.
type SessionStatus string

const (
	SessionStatusReady      SessionStatus = "ready"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusPaused     SessionStatus = "paused"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

var (
	ErrInvalidStatus     = errors.New("invalid session status")
	ErrInvalidTransition = errors.New("invalid session status transition")
)

// ParseSessionStatus converts a raw value into a SessionStatus.
func ParseSessionStatus(s string) (SessionStatus, error) {
	switch st := SessionStatus(s); st {
	case SessionStatusReady, SessionStatusInProgress, SessionStatusPaused,
		SessionStatusCompleted, SessionStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// CanTransition reports whether moving from s to next is allowed.
// Any status may move to failed.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if next == SessionStatusFailed {
		return true
	}
	switch s {
	case SessionStatusReady:
		return next == SessionStatusInProgress
	case SessionStatusInProgress:
		return next == SessionStatusPaused || next == SessionStatusCompleted
	case SessionStatusPaused:
		return next == SessionStatusInProgress
	}
	return false
}

// StatusTracker guards the session status against bad transitions.
// The zero value starts in ready.
type StatusTracker struct {
	current SessionStatus
}

// Current returns the tracked status.
func (t *StatusTracker) Current() SessionStatus {
	if t.current == "" {
		return SessionStatusReady
	}
	return t.current
}

// Set assigns a status given as a raw string.
func (t *StatusTracker) Set(raw string) error {
	next, err := ParseSessionStatus(raw)
	if err != nil {
		return err
	}
	return t.Transition(next)
}

// Transition moves to next or returns ErrInvalidTransition.
func (t *StatusTracker) Transition(next SessionStatus) error {
	if _, err := ParseSessionStatus(string(next)); err != nil {
		return err
	}
	cur := t.Current()
	if !cur.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}
	t.current = next
	return nil
}

// Reset puts the tracker back to ready.
func (t *StatusTracker) Reset() {
	t.current = SessionStatusReady
}

// Restore assigns a previously persisted status without transition checks.
func (t *StatusTracker) Restore(s SessionStatus) error {
	if _, err := ParseSessionStatus(string(s)); err != nil {
		return err
	}
	t.current = s
	return nil
}
