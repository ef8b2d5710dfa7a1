package repository

import (
	"context"

	"github.com/nurbekov/engage-scheduler/internal/domain"
)

// GenerateFunc produces a fresh window. Injected so stores stay ignorant
// of profile loading and randomization.
type GenerateFunc func() *domain.Window

// Runner and executor depend on this interface, not a concrete store.
// This way we can 1) swap the JSON file for Postgres without touching the
// scheduling code 2) pass a fake implementation in tests.
type WindowRepository interface {
	// LoadOrCreate returns the active window, generating and persisting a
	// fresh one when none is stored, the stored one has expired, or the
	// stored one cannot be parsed.
	LoadOrCreate(ctx context.Context) (*domain.Window, error)

	// Current returns the stored window without regenerating.
	// Returns domain.ErrWindowNotFound when nothing usable is stored.
	Current(ctx context.Context) (*domain.Window, error)

	// UpdateStatus advances one entry's status. Terminal statuses also set
	// completed/completedAt and attach the error message or result.
	// Returns domain.ErrEntryNotFound for unknown profiles and
	// domain.ErrInvalidStatus for non-monotonic transitions.
	UpdateStatus(ctx context.Context, profileID string, status domain.Status, errMsg string, result *domain.ActionResult) error

	// Ping reports whether the backing store is usable (readiness).
	Ping(ctx context.Context) error
}
