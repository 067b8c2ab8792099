package domain

import (
	"errors"
	"time"
)

// Sentinel errors returned by the orchestrator commands.
var (
	ErrNotFound          = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid session transition")
)

// SessionError is one entry in a session's append-only error log.
type SessionError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the aggregate root of one analysis workflow. It is mutated
// only through the orchestrator's transition function.
type Session struct {
	ID       string        `json:"id"`
	Input    string        `json:"user_input"`
	Status   SessionStatus `json:"status"`
	Stage    Stage         `json:"current_step"`
	Progress float64       `json:"progress_percentage"`

	// ResultRefs maps a completed stage to the ID of its artifact.
	// Set once per stage, never overwritten.
	ResultRefs map[Stage]string `json:"result_refs"`

	// Confirmations records the user's decision per step.
	Confirmations map[string]bool `json:"user_confirmations"`

	Errors     []SessionError `json:"errors"`
	RetryCount int            `json:"retry_count"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSession returns a pending session for the given user input.
func NewSession(id, input string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            id,
		Input:         input,
		Status:        SessionStatusPending,
		Stage:         StageIntent,
		ResultRefs:    make(map[Stage]string),
		Confirmations: make(map[string]bool),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddError appends an entry to the session's error log.
func (s *Session) AddError(message string) {
	now := time.Now().UTC()
	s.Errors = append(s.Errors, SessionError{Message: message, Timestamp: now})
	s.UpdatedAt = now
}

// Clone returns a deep copy of the session. The orchestrator hands out
// clones so callers can never mutate the stored record.
func (s *Session) Clone() *Session {
	c := *s
	c.ResultRefs = make(map[Stage]string, len(s.ResultRefs))
	for k, v := range s.ResultRefs {
		c.ResultRefs[k] = v
	}
	c.Confirmations = make(map[string]bool, len(s.Confirmations))
	for k, v := range s.Confirmations {
		c.Confirmations[k] = v
	}
	c.Errors = append([]SessionError(nil), s.Errors...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
