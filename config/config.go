package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	SchedulePath string `env:"SCHEDULE_PATH" envDefault:"data/schedule.json" validate:"required"`
	ProfilesPath string `env:"PROFILES_PATH" envDefault:"data/profiles.json" validate:"required"`
	PIDPath      string `env:"PID_PATH" envDefault:"data/engagebot.pid"`

	// DatabaseURL switches the window store from the JSON file to Postgres.
	DatabaseURL string `env:"DATABASE_URL"`

	AdsPowerBaseURL string `env:"ADSPOWER_BASE_URL" envDefault:"http://local.adspower.net:50325" validate:"required,url"`
	FeedURL         string `env:"FEED_URL" envDefault:"https://x.com/home" validate:"required,url"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIAPIBase string `env:"OPENAI_API_BASE" envDefault:"https://api.openai.com/v1"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	OpsPort      string `env:"OPS_PORT" envDefault:"8080" validate:"required"`
	OpsJWTSecret string `env:"OPS_JWT_SECRET,required" validate:"required,min=32"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`
	SummaryCron      string `env:"SUMMARY_CRON"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_with=NotifyTo"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_with=NotifyTo"`
	NotifyTo     string `env:"NOTIFY_TO"`

	// Soft-failure policies. Both default to the behavior the platform
	// exhibits in practice; turning them off converts the soft outcomes
	// into hard failures.
	RetweetAssumeDirect      bool `env:"RETWEET_ASSUME_DIRECT" envDefault:"true"`
	CommentPartialOnTypeFail bool `env:"COMMENT_PARTIAL_ON_TYPE_FAIL" envDefault:"true"`

	// ImmediateRetryDelaySec is the delay used for entries whose scheduled
	// time already passed when the runner (re)armed its timers.
	ImmediateRetryDelaySec int `env:"IMMEDIATE_RETRY_DELAY_SEC" envDefault:"5" validate:"min=0,max=3600"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
