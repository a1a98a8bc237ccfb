// Package metrics provides Prometheus instrumentation for shipcheck runs.
//
// A run is a short-lived process, so nothing is scraped: collectors live in a
// private registry that Push sends to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	enabled  bool
	registry *prometheus.Registry

	// Stage metrics
	stageDuration *prometheus.HistogramVec
	stageTotal    *prometheus.CounterVec

	// Run metrics
	runTotal        *prometheus.CounterVec
	identifierTotal *prometheus.CounterVec
)

// Init initializes the metrics system. Calling it again starts a fresh registry.
func Init(enabledFlag bool) {
	enabled = enabledFlag
	registry = nil

	if !enabled {
		return
	}

	registry = prometheus.NewRegistry()
	factory := promauto.With(registry)

	// Stage duration histogram
	stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shipcheck_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// Stage outcome counter
	stageTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipcheck_stage_total",
			Help: "Total number of pipeline stages run",
		},
		[]string{"stage", "status"},
	)

	// Run outcome counter
	runTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipcheck_run_total",
			Help: "Total number of runs",
		},
		[]string{"status"},
	)

	// Identifier extraction counter
	identifierTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shipcheck_identifier_total",
			Help: "Total number of identifier extractions",
		},
		[]string{"source", "found"},
	)
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// Gatherer returns the registry holding the collectors, or nil when disabled.
func Gatherer() prometheus.Gatherer {
	if registry == nil {
		return nil
	}
	return registry
}

// Push sends all collected metrics to the Pushgateway at url under job, grouped
// by network. It is a no-op when metrics are disabled or url is empty.
func Push(ctx context.Context, url, job, network string) error {
	if !enabled || url == "" {
		return nil
	}
	pusher := push.New(url, job).Gatherer(registry)
	if network != "" {
		pusher = pusher.Grouping("network", network)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
