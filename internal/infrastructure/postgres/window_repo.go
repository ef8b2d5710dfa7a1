package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/repository"
)

// WindowRepository stores windows in Postgres with one row per entry, so
// a status update is a single row-level UPDATE instead of a whole-file
// rewrite. Chosen over the JSON file by setting DATABASE_URL.
type WindowRepository struct {
	pool     *pgxpool.Pool
	generate repository.GenerateFunc
	logger   *slog.Logger
}

func NewWindowRepository(pool *pgxpool.Pool, generate repository.GenerateFunc, logger *slog.Logger) *WindowRepository {
	return &WindowRepository{
		pool:     pool,
		generate: generate,
		logger:   logger.With("component", "window_repo"),
	}
}

// EnsureSchema creates the two tables if missing. This daemon owns its
// schema; there is no separate migration pipeline.
func (r *WindowRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS windows (
			id      UUID PRIMARY KEY,
			created TIMESTAMPTZ NOT NULL,
			expires TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS window_entries (
			window_id    UUID NOT NULL REFERENCES windows(id) ON DELETE CASCADE,
			profile_id   TEXT NOT NULL,
			adspower_id  TEXT NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			action       TEXT NOT NULL,
			status       TEXT NOT NULL,
			completed    BOOLEAN NOT NULL DEFAULT FALSE,
			immediate    BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ,
			error        TEXT,
			result       JSONB,
			PRIMARY KEY (window_id, profile_id)
		);`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *WindowRepository) LoadOrCreate(ctx context.Context) (*domain.Window, error) {
	w, err := r.Current(ctx)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, domain.ErrWindowNotFound) {
		return nil, err
	}

	fresh := r.generate()
	if err := r.insert(ctx, fresh); err != nil {
		// Same contract as the file store: persistence failure is logged,
		// the in-memory window is still used.
		r.logger.Error("persist schedule window", "error", err)
	}
	return fresh, nil
}

func (r *WindowRepository) Current(ctx context.Context) (*domain.Window, error) {
	w := &domain.Window{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, created, expires FROM windows
		WHERE expires > now()
		ORDER BY created DESC
		LIMIT 1`).Scan(&w.ID, &w.Created, &w.Expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWindowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT profile_id, adspower_id, scheduled_at, action, status,
		       completed, immediate, completed_at, error, result
		FROM window_entries
		WHERE window_id = $1
		ORDER BY scheduled_at, profile_id`, w.ID)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.Entry
		var errMsg *string
		if err := rows.Scan(
			&e.ProfileID, &e.AdsPowerID, &e.ScheduledAt, &e.Action, &e.Status,
			&e.Completed, &e.Immediate, &e.CompletedAt, &errMsg, &e.Result,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if errMsg != nil {
			e.Error = *errMsg
		}
		w.Entries = append(w.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	return w, nil
}

func (r *WindowRepository) UpdateStatus(ctx context.Context, profileID string, status domain.Status, errMsg string, result *domain.ActionResult) error {
	// The status guard in the WHERE clause makes the monotonicity check
	// atomic with the write; no read-modify-write cycle to clobber.
	allowed := []string{string(domain.StatusScheduled)}
	if status.Terminal() {
		allowed = append(allowed, string(domain.StatusRunning))
	}

	var errCol *string
	var resCol *domain.ActionResult
	if status.Terminal() {
		if errMsg != "" {
			errCol = &errMsg
		}
		resCol = result
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE window_entries SET
			status       = $2,
			completed    = ($2 IN ('completed', 'failed')),
			completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE completed_at END,
			error        = $3,
			result       = $4
		WHERE window_id = (SELECT id FROM windows WHERE expires > now() ORDER BY created DESC LIMIT 1)
		  AND profile_id = $1
		  AND status = ANY($5)`,
		profileID, string(status), errCol, resCol, allowed)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := r.pool.QueryRow(ctx, `
			SELECT status FROM window_entries
			WHERE window_id = (SELECT id FROM windows WHERE expires > now() ORDER BY created DESC LIMIT 1)
			  AND profile_id = $1`, profileID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("check entry status: %w", err)
		}
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatus, current, status)
	}
	return nil
}

func (r *WindowRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *WindowRepository) insert(ctx context.Context, w *domain.Window) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO windows (id, created, expires) VALUES ($1, $2, $3)`,
		w.ID, w.Created, w.Expires,
	); err != nil {
		return fmt.Errorf("insert window: %w", err)
	}

	for _, e := range w.Entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO window_entries
				(window_id, profile_id, adspower_id, scheduled_at, action, status, completed, immediate)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			w.ID, e.ProfileID, e.AdsPowerID, e.ScheduledAt, string(e.Action), string(e.Status), e.Completed, e.Immediate,
		); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ProfileID, err)
		}
	}

	return tx.Commit(ctx)
}

var _ repository.WindowRepository = (*WindowRepository)(nil)
