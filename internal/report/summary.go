package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/repository"
	"github.com/robfig/cron/v3"
)

// SummarySink receives the digest; in practice the Telegram reporter.
type SummarySink interface {
	ReportSummary(w *domain.Window)
}

// Summarizer posts a window digest on a cron schedule. Purely additive
// observability; it never touches the window.
type Summarizer struct {
	repo     repository.WindowRepository
	sink     SummarySink
	logger   *slog.Logger
	schedule cron.Schedule
}

func NewSummarizer(cronExpr string, repo repository.WindowRepository, sink SummarySink, logger *slog.Logger) (*Summarizer, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid summary cron expression %q: %w", cronExpr, err)
	}
	return &Summarizer{
		repo:     repo,
		sink:     sink,
		logger:   logger.With("component", "summary"),
		schedule: sched,
	}, nil
}

func (s *Summarizer) Start(ctx context.Context) {
	s.logger.Info("summary reporter started")
	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("summary reporter shut down")
			return
		case <-timer.C:
			s.post(ctx)
		}
	}
}

func (s *Summarizer) post(ctx context.Context) {
	w, err := s.repo.Current(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrWindowNotFound) {
			s.logger.Warn("load window for summary", "error", err)
		}
		return
	}
	s.sink.ReportSummary(w)
}
