package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PranavReddyGaddam/Signal/domain"
	"github.com/PranavReddyGaddam/Signal/policy"
	"github.com/PranavReddyGaddam/Signal/scheduler"
	"github.com/PranavReddyGaddam/Signal/service"
	"github.com/PranavReddyGaddam/Signal/stage"
	"github.com/PranavReddyGaddam/Signal/tests/helpers"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingBroadcaster) Publish(sessionID string, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingBroadcaster) snapshot() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingBroadcaster) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range r.snapshot() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc       *service.Service
	sched     *scheduler.Scheduler
	broadcast *recordingBroadcaster
}

// newFixture wires the orchestrator against an in-memory store and the
// mock stage functions, with fast retry backoff.
func newFixture(t *testing.T, autoConfirm bool, runners map[domain.Stage]stage.Func) *fixture {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)
	broadcast := &recordingBroadcaster{}

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	if runners == nil {
		runners = map[domain.Stage]stage.Func{
			domain.StageIntent:  stage.MockIntent(),
			domain.StagePattern: stage.MockPatterns(),
			domain.StageLead:    stage.MockLeads(),
		}
	}

	svc := service.New(st, broadcast, engine, autoConfirm)
	sched := scheduler.New(runners, svc, scheduler.Options{
		Workers:    2,
		QueueSize:  16,
		MaxRetries: 3,
		BaseDelay:  5 * time.Millisecond,
	})
	svc.AttachScheduler(sched)
	sched.Start()
	t.Cleanup(sched.Stop)

	return &fixture{svc: svc, sched: sched, broadcast: broadcast}
}

func (f *fixture) waitForStatus(t *testing.T, sessionID string, want domain.SessionStatus) *domain.Session {
	t.Helper()
	var last *domain.Session
	require.Eventually(t, func() bool {
		s, err := f.svc.GetSession(context.Background(), sessionID)
		if err != nil {
			return false
		}
		last = s
		return s.Status == want
	}, 3*time.Second, 10*time.Millisecond, "session never reached %s", want)
	return last
}

func TestCreateSessionRunsIntentStage(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "Find SaaS companies in Germany")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	got := f.waitForStatus(t, session.ID, domain.SessionStatusAwaitingConfirmation)
	assert.Equal(t, domain.StageIntent, got.Stage)
	assert.Equal(t, 100.0, got.Progress)

	ref, ok := got.ResultRefs[domain.StageIntent]
	require.True(t, ok)

	artifact, err := f.svc.GetArtifact(ctx, ref)
	require.NoError(t, err)
	var intent domain.IntentResult
	require.NoError(t, json.Unmarshal(artifact.Payload, &intent))
	assert.Equal(t, "SaaS", intent.Industry)
	assert.Equal(t, "Germany", intent.Country)
}

func TestCreateSessionRejectsEmptyInput(t *testing.T) {
	f := newFixture(t, false, nil)

	_, err := f.svc.CreateSession(context.Background(), "   ")
	assert.Error(t, err)
}

func TestConfirmAdvancesToNextStage(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "Find SaaS companies in Germany")
	require.NoError(t, err)
	f.waitForStatus(t, session.ID, domain.SessionStatusAwaitingConfirmation)

	_, err = f.svc.ConfirmStep(ctx, session.ID, string(domain.StageIntent), true)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := f.svc.GetSession(ctx, session.ID)
		return err == nil && s.Status == domain.SessionStatusAwaitingConfirmation && s.Stage == domain.StagePattern
	}, 3*time.Second, 10*time.Millisecond)

	got, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Contains(t, got.ResultRefs, domain.StagePattern)
	assert.True(t, got.Confirmations[string(domain.StageIntent)])
}

func TestFullPipelineToCompleted(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "Find FinTech startups in UK")
	require.NoError(t, err)

	for _, step := range []domain.Stage{domain.StageIntent, domain.StagePattern, domain.StageLead} {
		require.Eventually(t, func() bool {
			s, err := f.svc.GetSession(ctx, session.ID)
			return err == nil && s.Status == domain.SessionStatusAwaitingConfirmation && s.Stage == step
		}, 3*time.Second, 10*time.Millisecond, "never awaited confirmation of %s", step)

		_, err = f.svc.ConfirmStep(ctx, session.ID, string(step), true)
		require.NoError(t, err)
	}

	got := f.waitForStatus(t, session.ID, domain.SessionStatusCompleted)
	assert.Equal(t, 100.0, got.Progress)
	require.NotNil(t, got.CompletedAt)
	assert.Len(t, got.ResultRefs, 3)

	// Discovery events were published for patterns and leads.
	assert.NotEmpty(t, f.broadcast.ofType(domain.EventTypePatternDiscovered))
	assert.NotEmpty(t, f.broadcast.ofType(domain.EventTypeLeadFound))
	assert.Len(t, f.broadcast.ofType(domain.EventTypeAnalysisComplete), 3)
}

func TestRejectStepFailsSession(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "Find SaaS companies in Germany")
	require.NoError(t, err)
	f.waitForStatus(t, session.ID, domain.SessionStatusAwaitingConfirmation)

	got, err := f.svc.ConfirmStep(ctx, session.ID, string(domain.StageIntent), false)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusFailed, got.Status)
	require.NotEmpty(t, got.Errors)
	assert.Contains(t, got.Errors[len(got.Errors)-1].Message, "intent")

	errs := f.broadcast.ofType(domain.EventTypeError)
	require.NotEmpty(t, errs)
	assert.Equal(t, domain.ErrorTypeRejected, errs[len(errs)-1].ErrorType)
}

func TestConfirmWrongStep(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "Find SaaS companies in Germany")
	require.NoError(t, err)
	f.waitForStatus(t, session.ID, domain.SessionStatusAwaitingConfirmation)

	_, err = f.svc.ConfirmStep(ctx, session.ID, string(domain.StageLead), true)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// The session is untouched.
	got, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusAwaitingConfirmation, got.Status)
	assert.Equal(t, domain.StageIntent, got.Stage)
}

func TestConfirmTerminalSession(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "Find SaaS companies in Germany")
	require.NoError(t, err)
	f.waitForStatus(t, session.ID, domain.SessionStatusAwaitingConfirmation)

	_, err = f.svc.ConfirmStep(ctx, session.ID, string(domain.StageIntent), false)
	require.NoError(t, err)

	_, err = f.svc.ConfirmStep(ctx, session.ID, string(domain.StageIntent), true)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestConfirmUnknownSession(t *testing.T) {
	f := newFixture(t, false, nil)

	_, err := f.svc.ConfirmStep(context.Background(), "sess_missing", string(domain.StageIntent), true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetryCountResetsOnNextStage(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	flaky := func(ctx context.Context, in stage.Input, report stage.ProgressFunc) (*stage.Result, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return nil, stage.Retryablef("transient failure")
		}
		return &stage.Result{Payload: json.RawMessage(`{"confidence":0.9}`)}, nil
	}
	f := newFixture(t, false, map[domain.Stage]stage.Func{
		domain.StageIntent:  flaky,
		domain.StagePattern: stage.MockPatterns(),
	})
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "anything")
	require.NoError(t, err)

	got := f.waitForStatus(t, session.ID, domain.SessionStatusAwaitingConfirmation)
	assert.Equal(t, 1, got.RetryCount)
	require.NotEmpty(t, got.Errors)

	_, err = f.svc.ConfirmStep(ctx, session.ID, string(domain.StageIntent), true)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := f.svc.GetSession(ctx, session.ID)
		return err == nil && s.Stage == domain.StagePattern
	}, 3*time.Second, 10*time.Millisecond)

	got, err = f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RetryCount)
}

func TestFatalStageFailureFailsSession(t *testing.T) {
	broken := func(ctx context.Context, in stage.Input, report stage.ProgressFunc) (*stage.Result, error) {
		return nil, stage.Fatalf("model returned garbage")
	}
	f := newFixture(t, false, map[domain.Stage]stage.Func{domain.StageIntent: broken})
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "anything")
	require.NoError(t, err)

	got := f.waitForStatus(t, session.ID, domain.SessionStatusFailed)
	require.NotEmpty(t, got.Errors)
	assert.Contains(t, got.Errors[len(got.Errors)-1].Message, "model returned garbage")

	errs := f.broadcast.ofType(domain.EventTypeError)
	require.NotEmpty(t, errs)
	assert.Equal(t, domain.ErrorTypeProcessing, errs[len(errs)-1].ErrorType)
}

func TestAutoConfirmRunsWholePipeline(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "Find HealthTech companies in Canada")
	require.NoError(t, err)

	got := f.waitForStatus(t, session.ID, domain.SessionStatusCompleted)
	assert.Len(t, got.ResultRefs, 3)
	for _, step := range []domain.Stage{domain.StageIntent, domain.StagePattern, domain.StageLead} {
		assert.True(t, got.Confirmations[string(step)], "stage %s not auto-confirmed", step)
	}
}

func TestAbortSession(t *testing.T) {
	started := make(chan struct{})
	blocking := func(ctx context.Context, in stage.Input, report stage.ProgressFunc) (*stage.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f := newFixture(t, false, map[domain.Stage]stage.Func{domain.StageIntent: blocking})
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "anything")
	require.NoError(t, err)
	<-started

	got, err := f.svc.AbortSession(ctx, session.ID, "operator abort")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusFailed, got.Status)
	assert.Equal(t, "operator abort", got.Errors[len(got.Errors)-1].Message)

	// Aborting a terminal session is rejected.
	_, err = f.svc.AbortSession(ctx, session.ID, "again")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// The cancelled invocation reports no late outcome.
	time.Sleep(50 * time.Millisecond)
	final, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusFailed, final.Status)
	assert.Len(t, final.Errors, 1)
}

func TestDeleteSessionCancelsInflightWork(t *testing.T) {
	started := make(chan struct{})
	blocking := func(ctx context.Context, in stage.Input, report stage.ProgressFunc) (*stage.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f := newFixture(t, false, map[domain.Stage]stage.Func{domain.StageIntent: blocking})
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "anything")
	require.NoError(t, err)
	<-started

	require.NoError(t, f.svc.DeleteSession(ctx, session.ID))

	_, err = f.svc.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Idempotence: deleting again reports not found.
	assert.ErrorIs(t, f.svc.DeleteSession(ctx, session.ID), domain.ErrNotFound)
}

func TestListSessionsReturnsSnapshots(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateSession(ctx, fmt.Sprintf("query %d", i))
		require.NoError(t, err)
	}

	sessions, err := f.svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}
