package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/scheduler"
	"github.com/PranavReddyGaddam/Signal/stage"
)

// CreateSession creates a session and immediately starts the intent
// stage in the background.
func (s *Service) CreateSession(ctx context.Context, input string) (*domain.Session, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("user_input is required")
	}

	session := domain.NewSession("sess_"+uuid.New().String()[:8], input)
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	unlock := s.lockSession(session.ID)
	defer unlock()

	if err := s.startStage(ctx, session, domain.StageIntent); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// GetSession returns the session snapshot.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// ListSessions returns all sessions, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.store.ListSessions(ctx)
}

// GetArtifact returns a stage artifact by ID.
func (s *Service) GetArtifact(ctx context.Context, artifactID string) (*domain.Artifact, error) {
	return s.store.GetArtifact(ctx, artifactID)
}

// ConfirmStep records the user's decision for the step currently
// awaiting confirmation. Confirming any other step, a step without an
// artifact, or a terminal session returns domain.ErrInvalidTransition
// and leaves the session untouched.
func (s *Service) ConfirmStep(ctx context.Context, sessionID, step string, confirmed bool) (*domain.Session, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.confirmStepLocked(ctx, session, step, confirmed); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// confirmStepLocked applies the confirm transition. The caller must
// hold the session lock.
func (s *Service) confirmStepLocked(ctx context.Context, session *domain.Session, step string, confirmed bool) error {
	if session.Status != domain.SessionStatusAwaitingConfirmation {
		return fmt.Errorf("%w: session %s is %s", domain.ErrInvalidTransition, session.ID, session.Status)
	}
	if string(session.Stage) != step {
		return fmt.Errorf("%w: awaiting confirmation of %q, got %q", domain.ErrInvalidTransition, session.Stage, step)
	}
	if _, ok := session.ResultRefs[session.Stage]; !ok {
		return fmt.Errorf("%w: stage %q has no result yet", domain.ErrInvalidTransition, session.Stage)
	}

	session.Confirmations[step] = confirmed
	session.UpdatedAt = time.Now().UTC()

	if !confirmed {
		session.Status = domain.SessionStatusFailed
		session.AddError(fmt.Sprintf("user rejected step: %s", step))
		if err := s.store.UpdateSession(ctx, session); err != nil {
			return fmt.Errorf("failed to persist rejection: %w", err)
		}
		s.broadcaster.Publish(session.ID, domain.NewError(session.ID, domain.ErrorTypeRejected,
			fmt.Sprintf("step %s rejected by user", step)))
		return nil
	}

	next, ok := session.Stage.Next()
	if !ok {
		// Confirming the last stage completes the session.
		now := time.Now().UTC()
		session.Status = domain.SessionStatusCompleted
		session.Progress = 100
		session.CompletedAt = &now
		session.UpdatedAt = now
		if err := s.store.UpdateSession(ctx, session); err != nil {
			return fmt.Errorf("failed to persist completion: %w", err)
		}
		s.broadcaster.Publish(session.ID, domain.NewProgressUpdate(session.ID, session.Stage, 100, "Analysis workflow completed"))
		return nil
	}

	return s.startStage(ctx, session, next)
}

// startStage applies the RUNNING transition for the given stage,
// persists it, announces it, and enqueues the invocation. The caller
// must hold the session lock.
func (s *Service) startStage(ctx context.Context, session *domain.Session, st domain.Stage) error {
	in := stage.Input{SessionID: session.ID}
	if st == domain.StageIntent {
		in.UserInput = session.Input
	} else {
		prev, _ := st.Prev()
		ref, ok := session.ResultRefs[prev]
		if !ok {
			return fmt.Errorf("%w: stage %q has no %q result to consume", domain.ErrInvalidTransition, st, prev)
		}
		artifact, err := s.store.GetArtifact(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to load %q artifact: %w", prev, err)
		}
		in.Prior = artifact.Payload
	}

	session.Status = domain.SessionStatusRunning
	session.Stage = st
	session.Progress = 0
	session.RetryCount = 0
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to persist stage start: %w", err)
	}

	s.broadcaster.Publish(session.ID, domain.NewProgressUpdate(session.ID, st, 0, fmt.Sprintf("Starting %s stage", st)))

	if err := s.scheduler.Enqueue(scheduler.Invocation{
		SessionID: session.ID,
		Stage:     st,
		Input:     in,
	}); err != nil {
		return fmt.Errorf("failed to enqueue %q invocation: %w", st, err)
	}
	return nil
}

// AbortSession forces a non-terminal session to FAILED, cancelling any
// in-flight stage work.
func (s *Service) AbortSession(ctx context.Context, sessionID, reason string) (*domain.Session, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrInvalidTransition, sessionID, session.Status)
	}

	s.scheduler.Cancel(sessionID)

	if reason == "" {
		reason = "session aborted"
	}
	session.Status = domain.SessionStatusFailed
	session.AddError(reason)
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist abort: %w", err)
	}
	s.broadcaster.Publish(sessionID, domain.NewError(sessionID, domain.ErrorTypeAborted, reason))
	return session.Clone(), nil
}

// DeleteSession removes a session, cancelling in-flight work first.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	unlock := s.lockSession(sessionID)

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		unlock()
		return err
	}

	if !session.Status.Terminal() {
		s.scheduler.Cancel(sessionID)
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		unlock()
		return err
	}

	s.broadcaster.Publish(sessionID, domain.NewError(sessionID, domain.ErrorTypeAborted, "session deleted"))
	unlock()
	s.dropSessionLock(sessionID)
	return nil
}
