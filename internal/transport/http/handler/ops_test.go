package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/executor"
	"github.com/nurbekov/engage-scheduler/internal/transport/http/handler"
)

type fakeRepo struct {
	window *domain.Window
	err    error
}

func (f *fakeRepo) LoadOrCreate(_ context.Context) (*domain.Window, error) { return f.window, f.err }

func (f *fakeRepo) Current(_ context.Context) (*domain.Window, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.window, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, _ string, _ domain.Status, _ string, _ *domain.ActionResult) error {
	return nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return nil }

type fakeReloader struct {
	called bool
	err    error
}

func (f *fakeReloader) Reload(_ context.Context) error {
	f.called = true
	return f.err
}

type fakeDispatcher struct {
	mu   sync.Mutex
	invs []executor.Invocation
	ch   chan executor.Invocation
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{ch: make(chan executor.Invocation, 4)}
}

func (f *fakeDispatcher) Execute(_ context.Context, inv executor.Invocation) {
	f.mu.Lock()
	f.invs = append(f.invs, inv)
	f.mu.Unlock()
	f.ch <- inv
}

func opsRouter(repo *fakeRepo, reloader *fakeReloader, disp *fakeDispatcher, profiles []domain.Profile) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.NewOpsHandler(context.Background(), repo, reloader, disp, profiles, logger)

	r := gin.New()
	r.GET("/v1/window", h.Window)
	r.POST("/v1/profiles/:id/run", h.Run)
	r.POST("/v1/reload", h.Reload)
	return r
}

func TestWindow_OK(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{window: &domain.Window{
		ID:      "w-1",
		Created: now,
		Expires: now.Add(domain.WindowDuration),
		Entries: []domain.Entry{{
			ProfileID:   "p1",
			ScheduledAt: now.Add(time.Hour),
			Action:      domain.ActionComment,
			Status:      domain.StatusScheduled,
			Immediate:   true,
		}},
	}}
	router := opsRouter(repo, &fakeReloader{}, newFakeDispatcher(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/window", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		ID      string `json:"id"`
		Entries []struct {
			ProfileID string `json:"profile_id"`
			Action    string `json:"action"`
			Immediate bool   `json:"immediate"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "w-1" || len(resp.Entries) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Entries[0].ProfileID != "p1" || resp.Entries[0].Action != "comment" || !resp.Entries[0].Immediate {
		t.Fatalf("entry = %+v", resp.Entries[0])
	}
}

func TestWindow_NotFound(t *testing.T) {
	repo := &fakeRepo{err: domain.ErrWindowNotFound}
	router := opsRouter(repo, &fakeReloader{}, newFakeDispatcher(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/window", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRun_UnknownProfile(t *testing.T) {
	router := opsRouter(&fakeRepo{}, &fakeReloader{}, newFakeDispatcher(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/profiles/ghost/run", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestRun_InvalidAction(t *testing.T) {
	profiles := []domain.Profile{{ID: "p1", AdsPowerID: "acc-1", Active: true}}
	router := opsRouter(&fakeRepo{}, &fakeReloader{}, newFakeDispatcher(), profiles)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/profiles/p1/run", strings.NewReader(`{"action":"subscribe"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRun_Accepted(t *testing.T) {
	profiles := []domain.Profile{{ID: "p1", AdsPowerID: "acc-1", Persona: "tester", Active: true}}
	disp := newFakeDispatcher()
	router := opsRouter(&fakeRepo{}, &fakeReloader{}, disp, profiles)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/profiles/p1/run", strings.NewReader(`{"action":"like"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	select {
	case inv := <-disp.ch:
		if inv.Profile.ID != "p1" || inv.Action != domain.ActionLike {
			t.Fatalf("invocation = %+v", inv)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never invoked")
	}
}

func TestRun_EmptyBodyUsesScheduledAction(t *testing.T) {
	profiles := []domain.Profile{{ID: "p1", AdsPowerID: "acc-1", Active: true}}
	disp := newFakeDispatcher()
	router := opsRouter(&fakeRepo{}, &fakeReloader{}, disp, profiles)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/profiles/p1/run", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	select {
	case inv := <-disp.ch:
		if inv.Action != "" {
			t.Fatalf("invocation action = %q, want empty for scheduled lookup", inv.Action)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never invoked")
	}
}

func TestReload(t *testing.T) {
	reloader := &fakeReloader{}
	router := opsRouter(&fakeRepo{}, reloader, newFakeDispatcher(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/reload", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if !reloader.called {
		t.Fatal("runner reload never called")
	}
}
