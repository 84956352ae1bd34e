package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"commerce-agent/internal/core/ports"
)

const (
	watchdogInterval   = 10 * time.Minute
	purgeDiskThreshold = 70.0
	purgeBatchSize     = 1000
	maxPurgeBatches    = 50
)

// Watchdog purges old execution logs when the disk fills up
type Watchdog struct {
	logs      ports.ExecutionLogRepository
	retention time.Duration
	path      string
	interval  time.Duration

	// diskUsage returns used percent for path; replaceable in tests
	diskUsage func(path string) (float64, error)
	now       func() time.Time
}

// NewWatchdog creates a watchdog watching the filesystem that holds path
func NewWatchdog(logs ports.ExecutionLogRepository, retention time.Duration, path string) *Watchdog {
	if path == "" {
		path = "/"
	}
	return &Watchdog{
		logs:      logs,
		retention: retention,
		path:      path,
		interval:  watchdogInterval,
		diskUsage: diskUsedPercent,
		now:       time.Now,
	}
}

// Run checks on every tick until ctx is cancelled
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("[WATCHDOG] Service started", "interval", w.interval, "retention", w.retention)
	for {
		select {
		case <-ctx.Done():
			slog.Info("[WATCHDOG] Service stopped")
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs a single resource check and returns the number of purged rows
func (w *Watchdog) Check(ctx context.Context) int64 {
	used, err := w.diskUsage(w.path)
	if err != nil {
		slog.Error("[WATCHDOG] Failed to read disk usage", "error", err, "path", w.path)
		return 0
	}
	if used < purgeDiskThreshold {
		slog.Debug("[WATCHDOG] Disk usage OK, no purge needed", "disk_percent", used)
		return 0
	}

	slog.Warn("[WATCHDOG] Disk usage above threshold, purging execution logs",
		"disk_percent", used,
		"threshold", purgeDiskThreshold,
	)

	cutoff := w.now().Add(-w.retention)
	var total int64
	for i := 0; i < maxPurgeBatches; i++ {
		n, err := w.logs.PurgeExecutionLogs(ctx, cutoff, purgeBatchSize)
		if err != nil {
			slog.Error("[WATCHDOG] Purge failed", "error", err)
			break
		}
		total += n
		if n < purgeBatchSize {
			break
		}
	}

	slog.Info("[WATCHDOG] Purge finished", "rows", total, "cutoff", cutoff)
	return total
}

func diskUsedPercent(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}
