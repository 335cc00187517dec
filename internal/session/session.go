// Package session defines the session entity and its explicit state
// machine. Transitions are handled through one table rather than
// string comparisons scattered through the pipeline.
package session

import (
	"errors"
	"fmt"
	"time"
)

// Status is a session lifecycle state.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusClosed Status = "closed"
)

// ErrInvalidTransition is returned for a move the state machine does
// not allow.
var ErrInvalidTransition = errors.New("invalid session transition")

// transitions is the full table. Closed is terminal; gates can only
// push toward paused, and paused returns to active only through an
// explicit recovery action carrying a justification.
var transitions = map[Status]map[Status]bool{
	StatusActive: {StatusPaused: true, StatusClosed: true},
	StatusPaused: {StatusActive: true, StatusClosed: true},
	StatusClosed: {},
}

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusPaused, StatusClosed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown session status %q", s)
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Transition validates a move and returns ErrInvalidTransition with
// both states named when it is not allowed.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Session is one peer session row.
type Session struct {
	ID                 string     `json:"id"`
	OrgID              string     `json:"org_id,omitempty"`
	UserID             string     `json:"user_id,omitempty"`
	Status             Status     `json:"status"`
	IntegrityResonance float64    `json:"integrity_resonance"`
	StartedAt          time.Time  `json:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
}
