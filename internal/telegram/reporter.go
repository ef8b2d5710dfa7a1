package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nurbekov/engage-scheduler/internal/domain"
)

// Reporter pushes action outcomes into a Telegram chat. It only sends;
// command handling lives with whoever owns the bot.
type Reporter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func NewReporter(token string, chatID int64, logger *slog.Logger) (*Reporter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	logger.Info("telegram reporter authorized", "account", bot.Self.UserName)
	return &Reporter{
		bot:    bot,
		chatID: chatID,
		logger: logger.With("component", "telegram"),
	}, nil
}

// ReportResult formats one invocation outcome. It reads Success and
// CommentURL off the result; those two fields are the contract.
func (r *Reporter) ReportResult(profile domain.Profile, action domain.ActionType, result *domain.ActionResult, err error) {
	var text string
	switch {
	case err != nil:
		text = fmt.Sprintf("❌ %s for %s failed: %s", action, profile.ID, err)
	case result != nil && result.Success:
		text = fmt.Sprintf("✅ %s for %s: %s", action, profile.ID, result.Message)
		if result.CommentURL != "" {
			text += "\n" + result.CommentURL
		}
	default:
		text = fmt.Sprintf("⚠️ %s for %s finished without a result", action, profile.ID)
	}
	r.send(text)
}

// ReportSummary posts the daily window digest.
func (r *Reporter) ReportSummary(w *domain.Window) {
	var completed, failed, pending int
	for _, e := range w.Entries {
		switch e.Status {
		case domain.StatusCompleted:
			completed++
		case domain.StatusFailed:
			failed++
		default:
			pending++
		}
	}
	r.send(fmt.Sprintf(
		"📊 Window %s\ncompleted: %d\nfailed: %d\npending: %d\nexpires: %s",
		w.ID, completed, failed, pending, w.Expires.Format("2006-01-02 15:04 MST"),
	))
}

func (r *Reporter) send(text string) {
	msg := tgbotapi.NewMessage(r.chatID, text)
	if _, err := r.bot.Send(msg); err != nil {
		r.logger.Warn("send telegram message", "error", err)
	}
}
