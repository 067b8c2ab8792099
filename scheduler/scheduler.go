// Package scheduler executes stage invocations on a fixed worker pool
// with bounded retry and backoff.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/stage"
)

// Invocation is one attempt to execute a stage for a session.
type Invocation struct {
	SessionID string
	Stage     domain.Stage
	Input     stage.Input
	Attempt   int
}

// Sink receives stage outcomes and checkpoints. The orchestrator
// implements it; callbacks run on worker goroutines.
type Sink interface {
	StageProgress(sessionID string, st domain.Stage, progress float64, message string)
	StageRetrying(sessionID string, st domain.Stage, retryCount int, delay time.Duration, err error)
	StageSucceeded(sessionID string, st domain.Stage, result *stage.Result)
	StageFailed(sessionID string, st domain.Stage, err error)
}

// Options configures a Scheduler.
type Options struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	BaseDelay  time.Duration
}

// Scheduler runs stage invocations with bounded retry. The session
// state machine guarantees at most one in-flight invocation per
// session, so in-flight bookkeeping is keyed by session ID.
type Scheduler struct {
	runners    map[domain.Stage]stage.Func
	sink       Sink
	workers    int
	maxRetries int
	baseDelay  time.Duration

	queue chan Invocation
	stop  chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	timers   map[string]*time.Timer
	stopped  bool
}

// New creates a Scheduler executing the given stage functions.
func New(runners map[domain.Stage]stage.Func, sink Sink, opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Minute
	}
	return &Scheduler{
		runners:    runners,
		sink:       sink,
		workers:    opts.Workers,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		queue:      make(chan Invocation, opts.QueueSize),
		stop:       make(chan struct{}),
		inflight:   make(map[string]context.CancelFunc),
		timers:     make(map[string]*time.Timer),
	}
}

// Start launches the worker pool.
func (s *Scheduler) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.stop:
					return
				case inv := <-s.queue:
					s.execute(inv)
				}
			}
		}()
	}
}

// Stop cancels all in-flight work and pending retries, then waits for
// the workers to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, cancel := range s.inflight {
		cancel()
	}
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
}

// Enqueue submits an invocation for execution.
func (s *Scheduler) Enqueue(inv Invocation) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("scheduler stopped")
	}
	s.mu.Unlock()

	select {
	case s.queue <- inv:
		return nil
	case <-s.stop:
		return fmt.Errorf("scheduler stopped")
	}
}

// Cancel aborts the session's in-flight invocation and any pending
// retry, and suppresses its outcome callbacks.
func (s *Scheduler) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.inflight[sessionID]; ok {
		cancel()
	}
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
}

func (s *Scheduler) execute(inv Invocation) {
	runner, ok := s.runners[inv.Stage]
	if !ok {
		s.sink.StageFailed(inv.SessionID, inv.Stage, fmt.Errorf("no runner registered for stage %s", inv.Stage))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return
	}
	s.inflight[inv.SessionID] = cancel
	s.mu.Unlock()

	result, err := runner(ctx, inv.Input, func(progress float64, message string) {
		if ctx.Err() == nil {
			s.sink.StageProgress(inv.SessionID, inv.Stage, progress, message)
		}
	})

	s.mu.Lock()
	delete(s.inflight, inv.SessionID)
	aborted := ctx.Err() != nil
	s.mu.Unlock()
	cancel()

	if aborted {
		// The session was cancelled; the orchestrator already recorded
		// the abort, so the outcome is discarded.
		return
	}

	if err == nil {
		s.sink.StageSucceeded(inv.SessionID, inv.Stage, result)
		return
	}

	if stage.IsRetryable(err) {
		retryCount := inv.Attempt + 1
		if retryCount < s.maxRetries {
			delay := s.baseDelay * (1 << inv.Attempt)
			s.sink.StageRetrying(inv.SessionID, inv.Stage, retryCount, delay, err)
			s.scheduleRetry(inv, retryCount, delay)
			return
		}
		log.Printf("scheduler: stage %s exhausted retries for session %s", inv.Stage, inv.SessionID)
	}

	s.sink.StageFailed(inv.SessionID, inv.Stage, err)
}

func (s *Scheduler) scheduleRetry(inv Invocation, retryCount int, delay time.Duration) {
	next := inv
	next.Attempt = retryCount

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.timers[inv.SessionID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, inv.SessionID)
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		select {
		case s.queue <- next:
		case <-s.stop:
		}
	})
}
