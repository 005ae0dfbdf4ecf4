package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// This file defines the Prometheus collectors exposed on /metrics.

// FetchAttempts counts individual GET attempts per endpoint, retries included.
var FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "deskweather_fetch_attempts_total",
	Help: "Total number of HTTP GET attempts by endpoint.",
}, []string{"endpoint"})

// FetchFailures counts failed fetches by endpoint and error class
// (transport, http, decode, extract, parse).
var FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "deskweather_fetch_failures_total",
	Help: "Total number of failed fetches by endpoint and error class.",
}, []string{"endpoint", "class"})

// FetchDuration observes wall time of a whole fetch including retries.
var FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "deskweather_fetch_duration_seconds",
	Help:    "Duration of fetches including retries, by endpoint.",
	Buckets: prometheus.DefBuckets,
}, []string{"endpoint"})

// Generation mirrors the snapshot generation marker per data kind.
var Generation = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "deskweather_snapshot_generation",
	Help: "Current generation of the stored snapshot by data kind.",
}, []string{"kind"})

// WarningState is the numeric state of the warning takeover machine
// (0 idle, 1 armed, 2 takeover, 3 cooldown).
var WarningState = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "deskweather_warning_state",
	Help: "Current warning takeover state.",
})

// ForcedRefreshes counts accepted manual refresh requests.
var ForcedRefreshes = promauto.NewCounter(prometheus.CounterOpts{
	Name: "deskweather_forced_refresh_total",
	Help: "Total number of manual refresh requests accepted.",
})
