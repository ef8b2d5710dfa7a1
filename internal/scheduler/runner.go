package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/executor"
	"github.com/nurbekov/engage-scheduler/internal/metrics"
	"github.com/nurbekov/engage-scheduler/internal/repository"
)

// Dispatcher is the slice of the executor the runner needs.
type Dispatcher interface {
	Execute(ctx context.Context, inv executor.Invocation)
}

// Runner keeps exactly one pending timer armed per not-yet-completed
// window entry, plus one rollover timer that regenerates the window when
// it expires. It owns all scheduling state explicitly; nothing lives at
// package level, so re-initialization is just Reload on the same object.
//
// Timers are not persisted. A process restart loses them all and calls
// Reload again, which is safe: completed entries are skipped on reload
// and overdue ones are re-armed with a minimal delay.
type Runner struct {
	repo     repository.WindowRepository
	exec     Dispatcher
	logger   *slog.Logger
	profiles map[string]domain.Profile

	// immediateDelay is used for entries whose scheduled time already
	// passed; they run "immediately" rather than being dropped.
	immediateDelay time.Duration

	mu       sync.Mutex
	timers   map[string]*time.Timer
	rollover *time.Timer
	runCtx   context.Context
}

func NewRunner(
	repo repository.WindowRepository,
	exec Dispatcher,
	logger *slog.Logger,
	profiles []domain.Profile,
	immediateDelay time.Duration,
) *Runner {
	byID := make(map[string]domain.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return &Runner{
		repo:           repo,
		exec:           exec,
		logger:         logger.With("component", "runner"),
		profiles:       byID,
		immediateDelay: immediateDelay,
		timers:         make(map[string]*time.Timer),
	}
}

// Start arms the initial timers and blocks until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	metrics.RunnerStartTime.SetToCurrentTime()

	r.mu.Lock()
	r.runCtx = ctx
	r.mu.Unlock()

	if err := r.Reload(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	r.disarm()
	r.logger.Info("runner shut down")
	return nil
}

// Reload cancels every armed timer, loads or regenerates the window, and
// re-arms from scratch. This wholesale cancel-and-rearm is the only
// cancellation mechanism; there is no per-entry cancel.
func (r *Runner) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disarmLocked()

	w, err := r.repo.LoadOrCreate(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	pending := w.Pending()
	for _, e := range pending {
		delay := time.Until(e.ScheduledAt)
		if delay < 0 {
			delay = r.immediateDelay
		}
		profileID := e.ProfileID
		r.timers[profileID] = time.AfterFunc(delay, func() { r.fire(profileID) })
	}
	metrics.TimersArmed.Set(float64(len(pending)))

	rolloverIn := w.Expires.Sub(now)
	if rolloverIn < r.immediateDelay {
		rolloverIn = r.immediateDelay
	}
	r.rollover = time.AfterFunc(rolloverIn, r.regenerate)

	r.logger.Info("timers armed",
		"window_id", w.ID,
		"pending", len(pending),
		"total", len(w.Entries),
		"rollover_in", rolloverIn.Round(time.Second),
	)
	return nil
}

func (r *Runner) fire(profileID string) {
	r.mu.Lock()
	delete(r.timers, profileID)
	metrics.TimersArmed.Set(float64(len(r.timers)))
	ctx := r.runCtx
	p, ok := r.profiles[profileID]
	r.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}
	if !ok {
		// Entry for a profile that is no longer configured; the window
		// outlived a profiles-file edit.
		r.logger.Warn("no profile for scheduled entry", "profile_id", profileID)
		return
	}

	r.exec.Execute(ctx, executor.Invocation{Profile: p})
}

// regenerate runs at window expiry and is the sole rollover mechanism;
// there is no wallclock cron trigger.
func (r *Runner) regenerate() {
	r.mu.Lock()
	ctx := r.runCtx
	r.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	metrics.WindowRegenerationsTotal.Inc()
	r.logger.Info("window expired, regenerating")

	if err := r.Reload(ctx); err != nil {
		r.logger.Error("reload after expiry", "error", err)
		r.mu.Lock()
		r.rollover = time.AfterFunc(time.Minute, r.regenerate)
		r.mu.Unlock()
	}
}

func (r *Runner) disarm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disarmLocked()
}

func (r *Runner) disarmLocked() {
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	if r.rollover != nil {
		r.rollover.Stop()
		r.rollover = nil
	}
	metrics.TimersArmed.Set(0)
}
