package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/repository"
)

// WindowStore persists the schedule window as a single JSON document.
// Every mutation is a read-modify-rewrite of the whole file, so all
// operations hold mu; without it, two interleaved UpdateStatus calls
// would silently drop one of the two writes.
type WindowStore struct {
	path     string
	generate repository.GenerateFunc
	logger   *slog.Logger
	mu       sync.Mutex
}

func NewWindowStore(path string, generate repository.GenerateFunc, logger *slog.Logger) *WindowStore {
	return &WindowStore{
		path:     path,
		generate: generate,
		logger:   logger.With("component", "window_store"),
	}
}

func (s *WindowStore) LoadOrCreate(_ context.Context) (*domain.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.read()
	if err == nil && !w.ExpiredAt(time.Now()) {
		return w, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Corrupt file is treated the same as a missing one.
		s.logger.Warn("discarding unreadable schedule file", "path", s.path, "error", err)
	}

	fresh := s.generate()
	if err := s.write(fresh); err != nil {
		// Not retried; the caller proceeds with the in-memory window.
		s.logger.Error("persist schedule window", "path", s.path, "error", err)
	}
	return fresh, nil
}

func (s *WindowStore) Current(_ context.Context) (*domain.Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.read()
	if err != nil {
		return nil, domain.ErrWindowNotFound
	}
	if w.ExpiredAt(time.Now()) {
		return nil, domain.ErrWindowNotFound
	}
	return w, nil
}

func (s *WindowStore) UpdateStatus(_ context.Context, profileID string, status domain.Status, errMsg string, result *domain.ActionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.read()
	if err != nil {
		return fmt.Errorf("read schedule file: %w", err)
	}

	e := w.Entry(profileID)
	if e == nil {
		return domain.ErrEntryNotFound
	}
	if !e.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatus, e.Status, status)
	}

	e.Status = status
	if status.Terminal() {
		now := time.Now()
		e.Completed = true
		e.CompletedAt = &now
		e.Error = errMsg
		e.Result = result
	}

	return s.write(w)
}

func (s *WindowStore) Ping(_ context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("schedule dir: %w", err)
	}
	return nil
}

func (s *WindowStore) read() (*domain.Window, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	w := &domain.Window{}
	if err := json.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}
	return w, nil
}

func (s *WindowStore) write(w *domain.Window) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
