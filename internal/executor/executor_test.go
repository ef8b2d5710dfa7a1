package executor_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/nurbekov/engage-scheduler/internal/adspower"
	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/executor"
)

type fakeSessions struct {
	mu      sync.Mutex
	startFn func(userID string) (*adspower.Session, error)
	stopped []string
}

func (f *fakeSessions) Start(_ context.Context, userID string) (*adspower.Session, error) {
	return f.startFn(userID)
}

func (f *fakeSessions) Stop(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, userID)
	return nil
}

func (f *fakeSessions) stoppedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stopped...)
}

type statusCall struct {
	profileID string
	status    domain.Status
	errMsg    string
	result    *domain.ActionResult
}

type recordingRepo struct {
	mu      sync.Mutex
	window  *domain.Window
	updates []statusCall
}

func (r *recordingRepo) LoadOrCreate(_ context.Context) (*domain.Window, error) {
	return r.window, nil
}

func (r *recordingRepo) Current(_ context.Context) (*domain.Window, error) {
	if r.window == nil {
		return nil, domain.ErrWindowNotFound
	}
	return r.window, nil
}

func (r *recordingRepo) UpdateStatus(_ context.Context, profileID string, status domain.Status, errMsg string, result *domain.ActionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, statusCall{profileID, status, errMsg, result})
	return nil
}

func (r *recordingRepo) Ping(_ context.Context) error { return nil }

func (r *recordingRepo) calls() []statusCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]statusCall(nil), r.updates...)
}

type fixedComments struct{ text string }

func (f fixedComments) Generate(_ context.Context, _, _ string) string { return f.text }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecute_SessionStartFailure(t *testing.T) {
	sessions := &fakeSessions{startFn: func(string) (*adspower.Session, error) {
		return nil, errors.New("adspower unreachable")
	}}
	repo := &recordingRepo{}

	var gotErr error
	var gotAction domain.ActionType
	e := executor.New(sessions, fixedComments{"hi"}, repo, testLogger(), "https://x.com/home", executor.Policy{},
		func(_ domain.Profile, action domain.ActionType, _ *domain.ActionResult, err error) {
			gotAction = action
			gotErr = err
		})

	e.Execute(context.Background(), executor.Invocation{
		Profile: domain.Profile{ID: "p1", AdsPowerID: "acc-1"},
		Action:  domain.ActionLike,
	})

	if gotErr == nil {
		t.Fatal("onResult did not receive the failure")
	}
	if gotAction != domain.ActionLike {
		t.Fatalf("onResult action = %s, want like", gotAction)
	}

	calls := repo.calls()
	if len(calls) != 2 {
		t.Fatalf("got %d status updates, want running then failed: %+v", len(calls), calls)
	}
	if calls[0].status != domain.StatusRunning || calls[1].status != domain.StatusFailed {
		t.Fatalf("status sequence = %s, %s", calls[0].status, calls[1].status)
	}
	if calls[1].errMsg == "" {
		t.Fatal("failed update carries no error message")
	}

	// A session that never started has nothing to stop.
	if ids := sessions.stoppedIDs(); len(ids) != 0 {
		t.Fatalf("stop called for %v", ids)
	}
}

func TestExecute_StopsSessionWhenAttachFails(t *testing.T) {
	sessions := &fakeSessions{startFn: func(string) (*adspower.Session, error) {
		// Nothing listens on port 1, so attaching fails fast.
		return &adspower.Session{Puppeteer: "ws://127.0.0.1:1/devtools/browser/dead"}, nil
	}}
	repo := &recordingRepo{}

	var gotErr error
	e := executor.New(sessions, fixedComments{"hi"}, repo, testLogger(), "https://x.com/home", executor.Policy{},
		func(_ domain.Profile, _ domain.ActionType, _ *domain.ActionResult, err error) {
			gotErr = err
		})

	e.Execute(context.Background(), executor.Invocation{
		Profile: domain.Profile{ID: "p1", AdsPowerID: "acc-1"},
		Action:  domain.ActionLike,
	})

	if gotErr == nil {
		t.Fatal("expected attach failure")
	}
	ids := sessions.stoppedIDs()
	if len(ids) != 1 || ids[0] != "acc-1" {
		t.Fatalf("stop calls = %v, want exactly one for acc-1", ids)
	}
}

func TestExecute_SkipStore(t *testing.T) {
	sessions := &fakeSessions{startFn: func(string) (*adspower.Session, error) {
		return nil, errors.New("down")
	}}
	repo := &recordingRepo{}

	e := executor.New(sessions, fixedComments{"hi"}, repo, testLogger(), "https://x.com/home", executor.Policy{}, nil)
	e.Execute(context.Background(), executor.Invocation{
		Profile:   domain.Profile{ID: "p1", AdsPowerID: "acc-1"},
		Action:    domain.ActionRetweet,
		SkipStore: true,
	})

	if calls := repo.calls(); len(calls) != 0 {
		t.Fatalf("one-shot invocation touched the store: %+v", calls)
	}
}

func TestExecute_ResolvesActionFromWindow(t *testing.T) {
	repo := &recordingRepo{window: &domain.Window{
		ID: "w-1",
		Entries: []domain.Entry{
			{ProfileID: "p1", Action: domain.ActionRetweet, Status: domain.StatusScheduled},
		},
	}}
	sessions := &fakeSessions{startFn: func(string) (*adspower.Session, error) {
		return nil, errors.New("down")
	}}

	var gotAction domain.ActionType
	e := executor.New(sessions, fixedComments{"hi"}, repo, testLogger(), "https://x.com/home", executor.Policy{},
		func(_ domain.Profile, action domain.ActionType, _ *domain.ActionResult, _ error) {
			gotAction = action
		})

	e.Execute(context.Background(), executor.Invocation{
		Profile: domain.Profile{ID: "p1", AdsPowerID: "acc-1"},
	})

	if gotAction != domain.ActionRetweet {
		t.Fatalf("resolved action = %s, want retweet from the window entry", gotAction)
	}
}

func TestExecute_DefaultsToLikeWithoutWindow(t *testing.T) {
	repo := &recordingRepo{}
	sessions := &fakeSessions{startFn: func(string) (*adspower.Session, error) {
		return nil, errors.New("down")
	}}

	var gotAction domain.ActionType
	e := executor.New(sessions, fixedComments{"hi"}, repo, testLogger(), "https://x.com/home", executor.Policy{},
		func(_ domain.Profile, action domain.ActionType, _ *domain.ActionResult, _ error) {
			gotAction = action
		})

	e.Execute(context.Background(), executor.Invocation{
		Profile: domain.Profile{ID: "p1", AdsPowerID: "acc-1"},
	})

	if gotAction != domain.ActionLike {
		t.Fatalf("resolved action = %s, want like fallback", gotAction)
	}
}

func TestIsSoftFailure(t *testing.T) {
	if !executor.IsSoftFailure(fmt.Errorf("wrapped: %w", domain.ErrNoTweetsFound)) {
		t.Error("ErrNoTweetsFound not treated as soft")
	}
	if executor.IsSoftFailure(errors.New("browser crashed")) {
		t.Error("hard failure treated as soft")
	}
	if executor.IsSoftFailure(nil) {
		t.Error("nil error treated as soft")
	}
}
