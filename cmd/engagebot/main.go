package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/nurbekov/engage-scheduler/config"
	ctxlog "github.com/nurbekov/engage-scheduler/internal/log"
)

func main() {
	sub := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	var err error
	switch sub {
	case "run":
		err = runDaemon(args)
	case "start":
		err = startDetached(args)
	case "stop":
		err = stopDaemon()
	case "status":
		err = showStatus()
	case "token":
		err = mintToken(args)
	default:
		fmt.Fprintf(os.Stderr, "usage: engagebot [run|start|stop|status|token] [flags]\n")
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", sub, err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
