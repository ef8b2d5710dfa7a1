package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nurbekov/engage-scheduler/internal/adspower"
	"github.com/nurbekov/engage-scheduler/internal/comments"
	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/executor"
	"github.com/nurbekov/engage-scheduler/internal/health"
	"github.com/nurbekov/engage-scheduler/internal/infrastructure/file"
	"github.com/nurbekov/engage-scheduler/internal/infrastructure/postgres"
	"github.com/nurbekov/engage-scheduler/internal/metrics"
	"github.com/nurbekov/engage-scheduler/internal/notify"
	"github.com/nurbekov/engage-scheduler/internal/pidfile"
	"github.com/nurbekov/engage-scheduler/internal/profiles"
	"github.com/nurbekov/engage-scheduler/internal/report"
	"github.com/nurbekov/engage-scheduler/internal/repository"
	"github.com/nurbekov/engage-scheduler/internal/schedule"
	"github.com/nurbekov/engage-scheduler/internal/scheduler"
	"github.com/nurbekov/engage-scheduler/internal/telegram"
	httptransport "github.com/nurbekov/engage-scheduler/internal/transport/http"
	"github.com/nurbekov/engage-scheduler/internal/transport/http/handler"
)

// runDaemon is both the scheduler daemon and, when --action or --profile
// is given, a one-shot action runner. The start subcommand forwards its
// flags here, so the flag set matches in both modes.
func runDaemon(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	actionFlag := fs.String("action", "", "one-shot: action to perform (like|retweet|comment)")
	urlFlag := fs.String("url", "", "one-shot: tweet URL to act on instead of the feed")
	profileFlag := fs.String("profile", "", "one-shot: profile id to act as")
	delayFlag := fs.Int("delay", 0, "one-shot: seconds to wait before acting")
	commentFlag := fs.String("comment", "", "one-shot: fixed comment text (skips generation)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	active, err := profiles.Load(cfg.ProfilesPath)
	if err != nil {
		// No partial start: without profiles there is nothing to schedule.
		return fmt.Errorf("load profiles: %w", err)
	}
	logger.Info("profiles loaded", "count", len(active))

	generate := func() *domain.Window {
		return schedule.Generate(active, time.Now())
	}

	var repo repository.WindowRepository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()
		pgRepo := postgres.NewWindowRepository(pool, generate, logger)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			return err
		}
		repo = pgRepo
		logger.Info("using postgres window store")
	} else {
		repo = file.NewWindowStore(cfg.SchedulePath, generate, logger)
		logger.Info("using file window store", "path", cfg.SchedulePath)
	}

	metrics.Register()
	checker := health.NewChecker(repo, logger, prometheus.DefaultRegisterer)

	var reporter *telegram.Reporter
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		reporter, err = telegram.NewReporter(cfg.TelegramBotToken, cfg.TelegramChatID, logger)
		if err != nil {
			return err
		}
	}

	notifier := notify.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, cfg.NotifyTo, logger)

	onResult := func(p domain.Profile, action domain.ActionType, result *domain.ActionResult, err error) {
		if reporter != nil {
			reporter.ReportResult(p, action, result, err)
		}
		if err != nil && !executor.IsSoftFailure(err) {
			subject := fmt.Sprintf("engagebot: %s failed for %s", action, p.ID)
			if nerr := notifier.Send(ctx, subject, err.Error()); nerr != nil {
				logger.Warn("send failure notification", "error", nerr)
			}
		}
	}

	exec := executor.New(
		adspower.NewClient(cfg.AdsPowerBaseURL),
		comments.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIAPIBase, cfg.OpenAIModel, logger),
		repo,
		logger,
		cfg.FeedURL,
		executor.Policy{
			RetweetAssumeDirect:      cfg.RetweetAssumeDirect,
			CommentPartialOnTypeFail: cfg.CommentPartialOnTypeFail,
		},
		onResult,
	)

	if *actionFlag != "" || *profileFlag != "" {
		return runOnce(ctx, logger, exec, active, *actionFlag, *urlFlag, *profileFlag, *delayFlag, *commentFlag)
	}

	if cfg.PIDPath != "" {
		if err := pidfile.Write(cfg.PIDPath); err != nil {
			return err
		}
		defer pidfile.Remove(cfg.PIDPath)
	}

	runner := scheduler.NewRunner(repo, exec, logger, active,
		time.Duration(cfg.ImmediateRetryDelaySec)*time.Second)

	runnerErr := make(chan error, 1)
	go func() { runnerErr <- runner.Start(ctx) }()

	if cfg.SummaryCron != "" && reporter != nil {
		summarizer, err := report.NewSummarizer(cfg.SummaryCron, repo, reporter, logger)
		if err != nil {
			return err
		}
		go summarizer.Start(ctx)
	}

	ops := handler.NewOpsHandler(ctx, repo, runner, exec, active, logger)
	healthHandler := handler.NewHealthHandler(checker)
	srv := http.Server{
		Addr:    ":" + cfg.OpsPort,
		Handler: httptransport.NewRouter(logger, ops, healthHandler, []byte(cfg.OpsJWTSecret)),
	}

	go func() {
		logger.Info("ops server started", "port", cfg.OpsPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server", "error", err)
		}
	}()

	select {
	case err := <-runnerErr:
		if err != nil {
			stop()
			return fmt.Errorf("runner: %w", err)
		}
	case <-ctx.Done():
	}
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown", "error", err)
	}

	logger.Info("engagebot shut down")
	return nil
}

// runOnce performs a single action in the foreground, outside the window.
func runOnce(
	ctx context.Context,
	logger *slog.Logger,
	exec *executor.Executor,
	active []domain.Profile,
	action, url, profileID string,
	delaySec int,
	comment string,
) error {
	var profile *domain.Profile
	if profileID == "" {
		profile = &active[0]
	} else {
		for i := range active {
			if active[i].ID == profileID {
				profile = &active[i]
				break
			}
		}
	}
	if profile == nil {
		return fmt.Errorf("profile %q is not an active profile", profileID)
	}

	act := domain.ActionType(action)
	if action != "" && !act.Valid() {
		return fmt.Errorf("invalid action %q", action)
	}

	if delaySec > 0 {
		logger.Info("waiting before one-shot action", "delay_sec", delaySec)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(delaySec) * time.Second):
		}
	}

	exec.Execute(ctx, executor.Invocation{
		Profile:      *profile,
		Action:       act,
		TargetURL:    url,
		FixedComment: comment,
		SkipStore:    true,
	})
	return nil
}
