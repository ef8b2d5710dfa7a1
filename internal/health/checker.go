package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger is anything whose availability gates readiness. Here it is the
// window store backend (schedule directory or Postgres pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

type CheckResult struct {
	Status string           `json:"status"`
	Checks map[string]Check `json:"checks,omitempty"`
}

type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Checker struct {
	store  Pinger
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

func NewChecker(store Pinger, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "engagebot",
		Name:      "health_check_up",
		Help:      "1 if the dependency is reachable, 0 otherwise.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		store:  store,
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
}

// Liveness reports whether the process itself is alive; it never checks
// dependencies.
func (c *Checker) Liveness(_ context.Context) CheckResult {
	return CheckResult{Status: "up"}
}

// Readiness checks the window store backend.
func (c *Checker) Readiness(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := CheckResult{Status: "up", Checks: map[string]Check{}}

	if err := c.store.Ping(ctx); err != nil {
		c.logger.Warn("store readiness check failed", "error", err)
		c.gauge.WithLabelValues("store").Set(0)
		result.Status = "down"
		result.Checks["store"] = Check{Status: "down", Error: err.Error()}
		return result
	}

	c.gauge.WithLabelValues("store").Set(1)
	result.Checks["store"] = Check{Status: "up"}
	return result
}
