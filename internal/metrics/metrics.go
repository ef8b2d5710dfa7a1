package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Executor metrics

	ActionsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagebot",
		Name:      "actions_in_flight",
		Help:      "Number of action invocations currently executing.",
	})

	ActionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "engagebot",
		Name:      "action_duration_seconds",
		Help:      "Duration of one action invocation, browser session included.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"action", "outcome"})

	ActionsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagebot",
		Name:      "actions_completed_total",
		Help:      "Total action invocations finished, by action and outcome.",
	}, []string{"action", "outcome"})

	SelectorWaitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "engagebot",
		Name:      "selector_wait_duration_seconds",
		Help:      "Time spent resolving a selector candidate list.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 15},
	}, []string{"step"})

	// Scheduler metrics

	WindowRegenerationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "engagebot",
		Name:      "window_regenerations_total",
		Help:      "Times a fresh 24h schedule window was generated.",
	})

	TimersArmed = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagebot",
		Name:      "timers_armed",
		Help:      "Entry timers currently armed by the runner.",
	})

	RunnerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "engagebot",
		Name:      "runner_start_time_seconds",
		Help:      "Unix timestamp when the runner started.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "engagebot",
		Name:      "http_request_duration_seconds",
		Help:      "Ops API request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "engagebot",
		Name:      "http_requests_total",
		Help:      "Total ops API requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ActionsInFlight,
		ActionDuration,
		ActionsCompletedTotal,
		SelectorWaitDuration,
		WindowRegenerationsTotal,
		TimersArmed,
		RunnerStartTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}
