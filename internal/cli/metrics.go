package cli

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/vodcut/pkg/metrics"
)

const (
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// statsSource is the part of the orchestrator the metrics updater reads.
type statsSource interface {
	GetStats(ctx context.Context) map[string]interface{}
}

// startSystemMetricsUpdater updates runtime metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes queue and job gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, src statsSource) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, src)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics reads stats; GetStats itself refreshes the per-state job gauges.
func updateServiceMetrics(ctx context.Context, src statsSource) {
	stats := src.GetStats(ctx)

	if n, ok := stats["queue_length"].(int); ok {
		metrics.UpdateQueueSize(n)
	}
	if active, ok := stats["active_job"].(string); ok {
		metrics.UpdateActiveJob(active != "")
	}
}
