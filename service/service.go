// Package service implements the session pipeline orchestrator: the
// state machine transitions, stage scheduling, and event publication.
package service

import (
	"sync"

	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/policy"
	"github.com/PranavReddyGaddam/Signal/scheduler"
	"github.com/PranavReddyGaddam/Signal/store"
)

// Broadcaster delivers progress events to a session's observers. The
// in-process hub and the HTTP relay both implement it.
type Broadcaster interface {
	Publish(sessionID string, event domain.Event)
}

// StageScheduler runs stage invocations in the background.
type StageScheduler interface {
	Enqueue(inv scheduler.Invocation) error
	Cancel(sessionID string)
}

// Service is the orchestrator composition root.
type Service struct {
	store        store.Store
	broadcaster  Broadcaster
	scheduler    StageScheduler
	policyEngine *policy.Engine
	autoConfirm  bool

	// Per-session mutexes serialize transitions on the same session
	// while leaving unrelated sessions fully parallel.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the orchestrator service. The scheduler is attached
// separately because it needs the service as its outcome sink.
func New(st store.Store, broadcaster Broadcaster, policyEngine *policy.Engine, autoConfirm bool) *Service {
	return &Service{
		store:        st,
		broadcaster:  broadcaster,
		policyEngine: policyEngine,
		autoConfirm:  autoConfirm,
		locks:        make(map[string]*sync.Mutex),
	}
}

// AttachScheduler wires the stage scheduler. Must be called before any
// session command.
func (s *Service) AttachScheduler(sched StageScheduler) {
	s.scheduler = sched
}

// lockSession acquires the session's transition lock and returns the
// release function.
func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) dropSessionLock(sessionID string) {
	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()
}
