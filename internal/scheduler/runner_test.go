package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/executor"
	"github.com/nurbekov/engage-scheduler/internal/scheduler"
)

type fakeRepo struct {
	mu      sync.Mutex
	windows []*domain.Window
	loads   int
}

func (f *fakeRepo) LoadOrCreate(_ context.Context) (*domain.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.loads
	if i >= len(f.windows) {
		i = len(f.windows) - 1
	}
	f.loads++
	return f.windows[i], nil
}

func (f *fakeRepo) Current(_ context.Context) (*domain.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows[len(f.windows)-1], nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, _ string, _ domain.Status, _ string, _ *domain.ActionResult) error {
	return nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }

func (f *fakeRepo) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type fakeDispatcher struct {
	mu    sync.Mutex
	fired []string
	ch    chan string
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{ch: make(chan string, 16)}
}

func (f *fakeDispatcher) Execute(_ context.Context, inv executor.Invocation) {
	f.mu.Lock()
	f.fired = append(f.fired, inv.Profile.ID)
	f.mu.Unlock()
	f.ch <- inv.Profile.ID
}

func (f *fakeDispatcher) firedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fired...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("fired for profile %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for profile %q to fire", want)
	}
}

func TestRunner_FiresOverdueEntryAfterImmediateDelay(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{windows: []*domain.Window{{
		ID:      "w-1",
		Created: now,
		Expires: now.Add(domain.WindowDuration),
		Entries: []domain.Entry{{
			ProfileID:   "p1",
			ScheduledAt: now.Add(-time.Hour),
			Action:      domain.ActionLike,
			Status:      domain.StatusScheduled,
		}},
	}}}
	disp := newFakeDispatcher()
	profiles := []domain.Profile{{ID: "p1", AdsPowerID: "acc-1", Active: true}}

	r := scheduler.NewRunner(repo, disp, discardLogger(), profiles, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Start(ctx) }()

	waitFor(t, disp.ch, "p1")
}

func TestRunner_SkipsCompletedEntries(t *testing.T) {
	now := time.Now()
	done := now.Add(-time.Minute)
	repo := &fakeRepo{windows: []*domain.Window{{
		ID:      "w-1",
		Created: now,
		Expires: now.Add(domain.WindowDuration),
		Entries: []domain.Entry{
			{
				ProfileID:   "done",
				ScheduledAt: now.Add(-time.Hour),
				Action:      domain.ActionLike,
				Status:      domain.StatusCompleted,
				Completed:   true,
				CompletedAt: &done,
			},
			{
				ProfileID:   "pending",
				ScheduledAt: now.Add(-time.Hour),
				Action:      domain.ActionRetweet,
				Status:      domain.StatusScheduled,
			},
		},
	}}}
	disp := newFakeDispatcher()
	profiles := []domain.Profile{
		{ID: "done", AdsPowerID: "acc-1", Active: true},
		{ID: "pending", AdsPowerID: "acc-2", Active: true},
	}

	r := scheduler.NewRunner(repo, disp, discardLogger(), profiles, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Start(ctx) }()

	waitFor(t, disp.ch, "pending")

	// Give a stray timer for the completed entry a chance to fire.
	time.Sleep(100 * time.Millisecond)
	for _, id := range disp.firedIDs() {
		if id == "done" {
			t.Fatal("completed entry was dispatched")
		}
	}
}

func TestRunner_IgnoresEntryForUnknownProfile(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{windows: []*domain.Window{{
		ID:      "w-1",
		Created: now,
		Expires: now.Add(domain.WindowDuration),
		Entries: []domain.Entry{
			{ProfileID: "gone", ScheduledAt: now.Add(-time.Hour), Status: domain.StatusScheduled},
			{ProfileID: "p1", ScheduledAt: now.Add(-time.Hour), Status: domain.StatusScheduled},
		},
	}}}
	disp := newFakeDispatcher()
	profiles := []domain.Profile{{ID: "p1", AdsPowerID: "acc-1", Active: true}}

	r := scheduler.NewRunner(repo, disp, discardLogger(), profiles, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Start(ctx) }()

	waitFor(t, disp.ch, "p1")

	time.Sleep(100 * time.Millisecond)
	for _, id := range disp.firedIDs() {
		if id == "gone" {
			t.Fatal("entry for unconfigured profile was dispatched")
		}
	}
}

func TestRunner_RegeneratesAtExpiry(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{windows: []*domain.Window{
		{
			ID:      "old",
			Created: now.Add(-domain.WindowDuration),
			Expires: now.Add(50 * time.Millisecond),
			Entries: []domain.Entry{},
		},
		{
			ID:      "new",
			Created: now,
			Expires: now.Add(domain.WindowDuration),
			Entries: []domain.Entry{{
				ProfileID:   "p1",
				ScheduledAt: now.Add(-time.Minute),
				Action:      domain.ActionComment,
				Status:      domain.StatusScheduled,
				Immediate:   true,
			}},
		},
	}}
	disp := newFakeDispatcher()
	profiles := []domain.Profile{{ID: "p1", AdsPowerID: "acc-1", Active: true}}

	r := scheduler.NewRunner(repo, disp, discardLogger(), profiles, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Start(ctx) }()

	// The entry only exists in the second window, so a dispatch proves
	// the rollover reloaded.
	waitFor(t, disp.ch, "p1")

	if got := repo.loadCount(); got < 2 {
		t.Fatalf("LoadOrCreate called %d times, want at least 2", got)
	}
}

func TestRunner_ReloadCancelsStaleTimers(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{windows: []*domain.Window{
		{
			ID:      "w-1",
			Created: now,
			Expires: now.Add(domain.WindowDuration),
			Entries: []domain.Entry{{
				ProfileID:   "slow",
				ScheduledAt: now.Add(time.Hour),
				Action:      domain.ActionLike,
				Status:      domain.StatusScheduled,
			}},
		},
		{
			ID:      "w-2",
			Created: now,
			Expires: now.Add(domain.WindowDuration),
			Entries: []domain.Entry{{
				ProfileID:   "fast",
				ScheduledAt: now.Add(-time.Minute),
				Action:      domain.ActionLike,
				Status:      domain.StatusScheduled,
			}},
		},
	}}
	disp := newFakeDispatcher()
	profiles := []domain.Profile{
		{ID: "slow", AdsPowerID: "acc-1", Active: true},
		{ID: "fast", AdsPowerID: "acc-2", Active: true},
	}

	r := scheduler.NewRunner(repo, disp, discardLogger(), profiles, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Start(ctx) }()

	// Let Start arm the first window, then swap to the second.
	time.Sleep(50 * time.Millisecond)
	if err := r.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	waitFor(t, disp.ch, "fast")
	if fired := disp.firedIDs(); len(fired) != 1 {
		t.Fatalf("dispatched %v, want only the reloaded entry", fired)
	}
}
