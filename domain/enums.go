// Package domain defines the core domain models for the pipeline orchestrator.
package domain

// SessionStatus represents the workflow status of a session.
type SessionStatus string

const (
	SessionStatusPending              SessionStatus = "PENDING"
	SessionStatusRunning              SessionStatus = "RUNNING"
	SessionStatusAwaitingConfirmation SessionStatus = "AWAITING_CONFIRMATION"
	SessionStatusCompleted            SessionStatus = "COMPLETED"
	SessionStatusFailed               SessionStatus = "FAILED"
)

// Terminal reports whether no further transitions leave the status.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// Stage identifies one of the sequential pipeline stages.
type Stage string

const (
	StageIntent  Stage = "intent"
	StagePattern Stage = "pattern"
	StageLead    Stage = "lead"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageIntent, StagePattern, StageLead}

// Next returns the stage following s. ok is false when s is the last
// stage or not a known stage.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageIntent:
		return StagePattern, true
	case StagePattern:
		return StageLead, true
	default:
		return "", false
	}
}

// Prev returns the stage preceding s. ok is false for the first stage
// or an unknown stage.
func (s Stage) Prev() (Stage, bool) {
	switch s {
	case StagePattern:
		return StageIntent, true
	case StageLead:
		return StagePattern, true
	default:
		return "", false
	}
}

// Valid reports whether s names a known pipeline stage.
func (s Stage) Valid() bool {
	switch s {
	case StageIntent, StagePattern, StageLead:
		return true
	}
	return false
}

// EventType represents the type of a progress event.
type EventType string

const (
	EventTypeConnectionEstablished EventType = "connection_established"
	EventTypeProgressUpdate        EventType = "progress_update"
	EventTypePatternDiscovered     EventType = "pattern_discovered"
	EventTypeLeadFound             EventType = "lead_found"
	EventTypeAnalysisComplete      EventType = "analysis_complete"
	EventTypeError                 EventType = "error"
	EventTypePong                  EventType = "pong"
	EventTypeSubscriptionConfirmed EventType = "subscription_confirmed"
)

// Error subtypes carried in the error event envelope.
const (
	ErrorTypeRetry      = "retry_error"
	ErrorTypeProcessing = "processing_error"
	ErrorTypeRejected   = "user_rejected"
	ErrorTypeAborted    = "aborted"
)
