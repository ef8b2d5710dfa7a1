package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/nurbekov/engage-scheduler/internal/adspower"
	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/metrics"
	"github.com/nurbekov/engage-scheduler/internal/repository"
	"github.com/nurbekov/engage-scheduler/internal/runid"
)

// SessionProvider starts and stops remote browser sessions by AdsPower
// account ID.
type SessionProvider interface {
	Start(ctx context.Context, userID string) (*adspower.Session, error)
	Stop(ctx context.Context, userID string) error
}

// CommentGenerator produces comment text; it must always return usable
// text (degrading internally on collaborator failure).
type CommentGenerator interface {
	Generate(ctx context.Context, tweetText, persona string) string
}

// Policy makes the two undocumented platform assumptions explicit.
type Policy struct {
	// RetweetAssumeDirect treats a missing confirmation dialog as a
	// successful direct repost instead of a failure.
	RetweetAssumeDirect bool
	// CommentPartialOnTypeFail reports a comment that was typed (or could
	// not be typed) but never posted as a partial success instead of a
	// failure.
	CommentPartialOnTypeFail bool
}

// Invocation describes one action to perform.
type Invocation struct {
	Profile domain.Profile

	// Action overrides the window lookup. Empty means "use whatever the
	// current window recorded for this profile", defaulting to like when
	// the lookup finds nothing.
	Action domain.ActionType

	// TargetURL points the browser at a specific tweet instead of the
	// feed. Used by the one-shot CLI path.
	TargetURL string

	// FixedComment skips text generation for comment actions.
	FixedComment string

	// SkipStore runs the invocation without touching the schedule window.
	SkipStore bool
}

// OnResultFunc observes terminal outcomes (reporting, notification).
type OnResultFunc func(profile domain.Profile, action domain.ActionType, result *domain.ActionResult, err error)

// Executor performs one scheduled action against a remote browser session
// and writes the outcome back into the window store. Every failure inside
// an invocation is caught here; nothing propagates to the scheduler.
type Executor struct {
	sessions SessionProvider
	comments CommentGenerator
	repo     repository.WindowRepository
	logger   *slog.Logger
	feedURL  string
	policy   Policy
	onResult OnResultFunc
}

func New(
	sessions SessionProvider,
	comments CommentGenerator,
	repo repository.WindowRepository,
	logger *slog.Logger,
	feedURL string,
	policy Policy,
	onResult OnResultFunc,
) *Executor {
	return &Executor{
		sessions: sessions,
		comments: comments,
		repo:     repo,
		logger:   logger.With("component", "executor"),
		feedURL:  feedURL,
		policy:   policy,
		onResult: onResult,
	}
}

// Execute runs one invocation end to end. It never returns an error to
// the caller; outcomes land in the window store, the log, and the
// onResult hook.
func (e *Executor) Execute(ctx context.Context, inv Invocation) {
	ctx = runid.WithRunID(ctx, runid.New())
	started := time.Now()

	action := e.resolveAction(ctx, inv)
	logger := e.logger.With("profile_id", inv.Profile.ID, "action", string(action))

	metrics.ActionsInFlight.Inc()
	defer metrics.ActionsInFlight.Dec()

	if !inv.SkipStore {
		if err := e.repo.UpdateStatus(ctx, inv.Profile.ID, domain.StatusRunning, "", nil); err != nil {
			logger.Warn("mark entry running", "error", err)
		}
	}

	logger.InfoContext(ctx, "executing action")
	result, err := e.perform(ctx, inv, action)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failure"
		logger.ErrorContext(ctx, "action failed", "error", err)
		if !inv.SkipStore {
			if uerr := e.repo.UpdateStatus(ctx, inv.Profile.ID, domain.StatusFailed, err.Error(), nil); uerr != nil {
				logger.Error("mark entry failed", "error", uerr)
			}
		}
	default:
		if result.Partial {
			outcome = "partial"
		}
		logger.InfoContext(ctx, "action completed", "message", result.Message, "duration", time.Since(started))
		if !inv.SkipStore {
			if uerr := e.repo.UpdateStatus(ctx, inv.Profile.ID, domain.StatusCompleted, "", result); uerr != nil {
				logger.Error("mark entry completed", "error", uerr)
			}
		}
	}

	metrics.ActionDuration.WithLabelValues(string(action), outcome).Observe(time.Since(started).Seconds())
	metrics.ActionsCompletedTotal.WithLabelValues(string(action), outcome).Inc()

	if e.onResult != nil {
		e.onResult(inv.Profile, action, result, err)
	}
}

// resolveAction looks the profile's planned action up in the current
// window. A missing window or entry falls back to like.
func (e *Executor) resolveAction(ctx context.Context, inv Invocation) domain.ActionType {
	if inv.Action != "" {
		return inv.Action
	}
	w, err := e.repo.Current(ctx)
	if err == nil {
		if entry := w.Entry(inv.Profile.ID); entry != nil {
			return entry.Action
		}
	}
	return domain.ActionLike
}

// perform is the linear step pipeline: session, attach, open, scroll,
// locate, filter, pick, dispatch. Each step's failure aborts the whole
// invocation; there are no per-step retries.
func (e *Executor) perform(ctx context.Context, inv Invocation, action domain.ActionType) (res *domain.ActionResult, err error) {
	sess, err := e.sessions.Start(ctx, inv.Profile.AdsPowerID)
	if err != nil {
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	// Stop is attempted on every path, including failures; its own
	// failure is only logged.
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if serr := e.sessions.Stop(stopCtx, inv.Profile.AdsPowerID); serr != nil {
			e.logger.WarnContext(ctx, "stop browser session", "profile_id", inv.Profile.ID, "error", serr)
		}
	}()

	b, err := attach(ctx, sess.Puppeteer)
	if err != nil {
		return nil, err
	}
	defer b.close()

	target := e.feedURL
	if inv.TargetURL != "" {
		target = inv.TargetURL
	}
	if err := b.open(target); err != nil {
		return nil, err
	}

	if inv.TargetURL == "" {
		if err := b.scrollFeed(); err != nil {
			return nil, err
		}
	}

	itemSel, err := b.locateTweets()
	if err != nil {
		return nil, err
	}
	if n, cerr := countMatches(b.ctx, itemSel); cerr == nil {
		e.logger.DebugContext(ctx, "tweets located", "selector", itemSel, "count", n)
	}

	candidates, err := b.extract(itemSel)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: selector %q matched nothing", domain.ErrNoTweetsFound, itemSel)
	}

	survivors := Filter(candidates, action)
	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: all %d candidates were ads or carried external links",
			domain.ErrNoTweetsFound, len(candidates))
	}

	pick := survivors[rand.Intn(len(survivors))]
	if err := b.scrollTo(itemSel, pick.Index); err != nil {
		return nil, err
	}

	switch action {
	case domain.ActionLike:
		return e.like(b, itemSel, pick.Index)
	case domain.ActionRetweet:
		return e.retweet(b, itemSel, pick.Index)
	case domain.ActionComment:
		text := inv.FixedComment
		if text == "" {
			text = e.comments.Generate(ctx, pick.Text, inv.Profile.Persona)
		}
		return e.comment(b, itemSel, pick.Index, text)
	default:
		return nil, fmt.Errorf("unknown action type %q", action)
	}
}

// IsSoftFailure reports whether err represents one of the outcomes the
// policies can downgrade; useful for callers deciding alert severity.
func IsSoftFailure(err error) bool {
	return errors.Is(err, domain.ErrNoTweetsFound)
}
