package domain

import (
	"encoding/json"
	"time"
)

// Event is the envelope pushed to session observers. Unused fields are
// omitted from the wire form; Timestamp serializes as RFC 3339.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`

	Step     string   `json:"step,omitempty"`
	Progress *float64 `json:"progress,omitempty"`
	Message  string   `json:"message,omitempty"`

	ErrorType string `json:"error_type,omitempty"`

	Pattern      json.RawMessage `json:"pattern,omitempty"`
	Lead         json.RawMessage `json:"lead,omitempty"`
	AnalysisType string          `json:"analysis_type,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`

	// Events echoes the requested event filter on subscription_confirmed.
	Events []string `json:"events,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

func newEvent(t EventType, sessionID string) Event {
	return Event{Type: t, SessionID: sessionID, Timestamp: time.Now().UTC()}
}

// NewConnectionEstablished is the synthetic event delivered on subscribe.
func NewConnectionEstablished(sessionID string) Event {
	return newEvent(EventTypeConnectionEstablished, sessionID)
}

// NewProgressUpdate reports a progress checkpoint for a step.
func NewProgressUpdate(sessionID string, step Stage, progress float64, message string) Event {
	e := newEvent(EventTypeProgressUpdate, sessionID)
	e.Step = string(step)
	e.Progress = &progress
	e.Message = message
	return e
}

// NewPatternDiscovered announces a single discovered pattern.
func NewPatternDiscovered(sessionID string, pattern json.RawMessage) Event {
	e := newEvent(EventTypePatternDiscovered, sessionID)
	e.Pattern = pattern
	return e
}

// NewLeadFound announces a single generated lead.
func NewLeadFound(sessionID string, lead json.RawMessage) Event {
	e := newEvent(EventTypeLeadFound, sessionID)
	e.Lead = lead
	return e
}

// NewAnalysisComplete announces the completion of a stage analysis.
func NewAnalysisComplete(sessionID string, analysisType Stage, results json.RawMessage) Event {
	e := newEvent(EventTypeAnalysisComplete, sessionID)
	e.AnalysisType = string(analysisType)
	e.Results = results
	return e
}

// NewError reports a classified failure to observers.
func NewError(sessionID, errorType, message string) Event {
	e := newEvent(EventTypeError, sessionID)
	e.ErrorType = errorType
	e.Message = message
	return e
}

// NewPong answers a client ping.
func NewPong(sessionID string) Event {
	return newEvent(EventTypePong, sessionID)
}

// NewSubscriptionConfirmed answers a client subscribe control message.
func NewSubscriptionConfirmed(sessionID string, events []string) Event {
	e := newEvent(EventTypeSubscriptionConfirmed, sessionID)
	e.Events = events
	return e
}
