package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nurbekov/engage-scheduler/internal/domain"
	"github.com/nurbekov/engage-scheduler/internal/pidfile"
)

// startDetached spawns "engagebot run" as a detached child, forwarding
// any one-shot flags, and leaves the PID file to the child.
func startDetached(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if pid, err := pidfile.Read(cfg.PIDPath); err == nil && pidfile.Alive(pid) {
		return fmt.Errorf("already running (pid %d)", pid)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	logPath := filepath.Join(filepath.Dir(cfg.PIDPath), "engagebot.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(self, append([]string{"run"}, args...)...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("spawn daemon: %w", err)
	}

	fmt.Printf("started (pid %d), logging to %s\n", child.Process.Pid, logPath)
	return child.Process.Release()
}

func stopDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pid, err := pidfile.Read(cfg.PIDPath)
	if err != nil {
		return fmt.Errorf("not running: %w", err)
	}
	if !pidfile.Alive(pid) {
		pidfile.Remove(cfg.PIDPath)
		return fmt.Errorf("stale pid file (pid %d is gone), removed", pid)
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	fmt.Printf("sent SIGTERM to pid %d\n", pid)
	return nil
}

func showStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pid, err := pidfile.Read(cfg.PIDPath)
	switch {
	case err != nil:
		fmt.Println("daemon: not running (no pid file)")
	case pidfile.Alive(pid):
		fmt.Printf("daemon: running (pid %d)\n", pid)
	default:
		fmt.Printf("daemon: not running (stale pid %d)\n", pid)
	}

	// The window summary comes straight off the schedule file; with a
	// Postgres store the ops API is the place to look instead.
	if cfg.DatabaseURL != "" {
		fmt.Println("window: stored in postgres, query the ops API /v1/window")
		return nil
	}

	data, err := os.ReadFile(cfg.SchedulePath)
	if err != nil {
		fmt.Println("window: none")
		return nil
	}
	var w domain.Window
	if err := json.Unmarshal(data, &w); err != nil {
		fmt.Println("window: unreadable (will regenerate on next load)")
		return nil
	}

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
	state := "active"
	if w.ExpiredAt(time.Now()) {
		state = "expired"
	}
	fmt.Printf("window: %s (%s), expires %s\n", w.ID, state, w.Expires.Format(time.RFC3339))
	fmt.Printf("entries: %d completed, %d failed, %d pending\n", completed, failed, pending)
	return nil
}

// mintToken prints a Bearer token for the ops API.
func mintToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sub := fs.String("sub", "operator", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": *sub,
		"iat": now.Unix(),
		"exp": now.Add(*ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.OpsJWTSecret))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Println(signed)
	return nil
}
