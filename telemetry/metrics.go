// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered at package init so they are usable from any point in
// the program without an init-ordering footgun.
var (
	// Counters
	SharesTotal        = promauto.NewCounter(prometheus.CounterOpts{Name: "banger_shares_total", Help: "Number of track shares recorded in the ledger"})
	ReactionsTotal     = promauto.NewCounter(prometheus.CounterOpts{Name: "banger_reactions_total", Help: "Number of reaction toggles applied"})
	ResolveFailures    = promauto.NewCounter(prometheus.CounterOpts{Name: "banger_resolve_failures_total", Help: "Number of music links that could not be resolved to title/artist"})
	SearchesTotal      = promauto.NewCounter(prometheus.CounterOpts{Name: "banger_searches_total", Help: "Number of YouTube searches performed"})
	SearchMisses       = promauto.NewCounter(prometheus.CounterOpts{Name: "banger_search_misses_total", Help: "Number of YouTube searches with no result"})
	DownloadsStarted   = promauto.NewCounter(prometheus.CounterOpts{Name: "banger_downloads_started_total", Help: "Number of audio downloads started"})
	DownloadsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "banger_downloads_succeeded_total", Help: "Number of audio downloads succeeded"})
	DownloadsFailed    = promauto.NewCounter(prometheus.CounterOpts{Name: "banger_downloads_failed_total", Help: "Number of audio downloads failed"})

	// Histograms (seconds)
	DownloadDuration prometheus.Observer = promauto.NewHistogram(prometheus.HistogramOpts{Name: "banger_download_duration_seconds", Help: "Audio download duration seconds", Buckets: prometheus.DefBuckets})

	// Gauges
	TrackedEntriesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "banger_tracked_entries", Help: "Current number of ledger entries across all chats"})
)

// SetTrackedEntries records the current ledger size.
func SetTrackedEntries(n int) {
	TrackedEntriesGauge.Set(float64(n))
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
