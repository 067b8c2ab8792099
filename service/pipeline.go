package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/policy"
	"github.com/PranavReddyGaddam/Signal/stage"
)

// The scheduler reports outcomes through the Sink methods below. Each
// mutation is committed to the store before its event is published, so
// observers never see a notification for unrecorded state.

// StageProgress forwards a mid-execution checkpoint from a stage
// function to the session's observers.
func (s *Service) StageProgress(sessionID string, st domain.Stage, progress float64, message string) {
	ctx := context.Background()
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("WARN: progress for unknown session %s: %v", sessionID, err)
		return
	}
	if session.Status != domain.SessionStatusRunning || session.Stage != st {
		// Stale checkpoint from a cancelled or superseded invocation.
		return
	}

	if progress > session.Progress {
		session.Progress = progress
	}
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, session); err != nil {
		log.Printf("ERROR: failed to persist progress for session %s: %v", sessionID, err)
		return
	}

	s.broadcaster.Publish(sessionID, domain.NewProgressUpdate(sessionID, st, progress, message))
}

// StageRetrying records a transient stage failure and the scheduled
// retry.
func (s *Service) StageRetrying(sessionID string, st domain.Stage, retryCount int, delay time.Duration, cause error) {
	ctx := context.Background()
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("WARN: retry for unknown session %s: %v", sessionID, err)
		return
	}
	if session.Status != domain.SessionStatusRunning || session.Stage != st {
		return
	}

	session.RetryCount = retryCount
	session.AddError(fmt.Sprintf("%s stage failed (retry %d): %v", st, retryCount, cause))
	if err := s.store.UpdateSession(ctx, session); err != nil {
		log.Printf("ERROR: failed to persist retry for session %s: %v", sessionID, err)
		return
	}

	s.broadcaster.Publish(sessionID, domain.NewError(sessionID, domain.ErrorTypeRetry,
		fmt.Sprintf("%s stage failed, retrying in %s (attempt %d)", st, delay, retryCount)))
}

// StageSucceeded persists the stage artifact, applies the
// AWAITING_CONFIRMATION transition, and publishes the completion
// events. When the confirmation policy allows it, the next stage starts
// immediately.
func (s *Service) StageSucceeded(sessionID string, st domain.Stage, result *stage.Result) {
	ctx := context.Background()
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("WARN: success for unknown session %s: %v", sessionID, err)
		return
	}
	if session.Status != domain.SessionStatusRunning || session.Stage != st {
		return
	}

	artifact := &domain.Artifact{
		ID:        "art_" + uuid.New().String()[:8],
		SessionID: sessionID,
		Stage:     st,
		Payload:   result.Payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateArtifact(ctx, artifact); err != nil {
		log.Printf("ERROR: failed to persist %s artifact for session %s: %v", st, sessionID, err)
		s.failLocked(ctx, session, st, fmt.Errorf("failed to store result: %w", err))
		return
	}

	session.ResultRefs[st] = artifact.ID
	session.Status = domain.SessionStatusAwaitingConfirmation
	session.Progress = 100
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, session); err != nil {
		log.Printf("ERROR: failed to persist %s completion for session %s: %v", st, sessionID, err)
		return
	}

	s.broadcaster.Publish(sessionID, domain.NewProgressUpdate(sessionID, st, 100,
		fmt.Sprintf("%s stage completed successfully", st)))
	s.publishStageResults(sessionID, st, result.Payload)
	s.broadcaster.Publish(sessionID, domain.NewAnalysisComplete(sessionID, st, result.Payload))

	s.maybeAutoConfirm(ctx, session, st, result.Payload)
}

// StageFailed applies the FAILED transition after a fatal error or
// retry exhaustion.
func (s *Service) StageFailed(sessionID string, st domain.Stage, cause error) {
	ctx := context.Background()
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("WARN: failure for unknown session %s: %v", sessionID, err)
		return
	}
	if session.Status != domain.SessionStatusRunning || session.Stage != st {
		return
	}

	s.failLocked(ctx, session, st, cause)
}

func (s *Service) failLocked(ctx context.Context, session *domain.Session, st domain.Stage, cause error) {
	session.Status = domain.SessionStatusFailed
	session.AddError(fmt.Sprintf("%s stage failed: %v", st, cause))
	if err := s.store.UpdateSession(ctx, session); err != nil {
		log.Printf("ERROR: failed to persist failure for session %s: %v", session.ID, err)
		return
	}
	s.broadcaster.Publish(session.ID, domain.NewError(session.ID, domain.ErrorTypeProcessing,
		fmt.Sprintf("%s stage failed: %v", st, cause)))
}

// publishStageResults emits the per-item discovery events for pattern
// and lead artifacts.
func (s *Service) publishStageResults(sessionID string, st domain.Stage, payload json.RawMessage) {
	switch st {
	case domain.StagePattern:
		var report domain.PatternReport
		if err := json.Unmarshal(payload, &report); err != nil {
			log.Printf("WARN: unreadable pattern report for session %s: %v", sessionID, err)
			return
		}
		for _, p := range report.Patterns {
			data, err := json.Marshal(p)
			if err != nil {
				continue
			}
			s.broadcaster.Publish(sessionID, domain.NewPatternDiscovered(sessionID, data))
		}
	case domain.StageLead:
		var report domain.LeadReport
		if err := json.Unmarshal(payload, &report); err != nil {
			log.Printf("WARN: unreadable lead report for session %s: %v", sessionID, err)
			return
		}
		for _, l := range report.Leads {
			data, err := json.Marshal(l)
			if err != nil {
				continue
			}
			s.broadcaster.Publish(sessionID, domain.NewLeadFound(sessionID, data))
		}
	}
}

// maybeAutoConfirm consults the confirmation policy and advances the
// pipeline without waiting for the user when the policy allows it.
func (s *Service) maybeAutoConfirm(ctx context.Context, session *domain.Session, st domain.Stage, payload json.RawMessage) {
	if s.policyEngine == nil {
		return
	}

	var probe struct {
		Confidence        float64 `json:"confidence"`
		AverageConfidence float64 `json:"average_confidence"`
	}
	_ = json.Unmarshal(payload, &probe)
	confidence := probe.Confidence
	if confidence == 0 {
		confidence = probe.AverageConfidence
	}

	decision, err := s.policyEngine.Evaluate(ctx, policy.Input{
		Stage:       string(st),
		AutoConfirm: s.autoConfirm,
		Confidence:  confidence,
	})
	if err != nil {
		log.Printf("WARN: confirmation policy evaluation failed for session %s: %v", session.ID, err)
		return
	}
	if decision != policy.DecisionAutoConfirm {
		return
	}

	log.Printf("auto-confirming %s stage for session %s", st, session.ID)
	if err := s.confirmStepLocked(ctx, session, string(st), true); err != nil {
		log.Printf("ERROR: auto-confirm failed for session %s: %v", session.ID, err)
	}
}
