package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"crm-whatsapp/internal/core/ports"
)

// WatchdogConfig controls the auto-purge of the webhook audit log
type WatchdogConfig struct {
	Interval      time.Duration
	DiskPath      string
	DiskThreshold float64 // percent
	Retention     time.Duration
}

// Watchdog purges old processed webhook logs when disk usage crosses the threshold.
// Business data (messages, conversations, handoff logs) is never purged.
type Watchdog struct {
	webhooks ports.WebhookRepository
	cfg      WatchdogConfig
	usage    func(ctx context.Context, path string) (float64, error)
	now      func() time.Time
}

// NewWatchdog creates a new watchdog backed by gopsutil disk usage
func NewWatchdog(webhooks ports.WebhookRepository, cfg WatchdogConfig) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	if cfg.DiskThreshold <= 0 {
		cfg.DiskThreshold = 70
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &Watchdog{
		webhooks: webhooks,
		cfg:      cfg,
		usage:    diskUsedPercent,
		now:      time.Now,
	}
}

// Run checks resources every interval until ctx is cancelled
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	slog.Info("Watchdog started",
		"interval", w.cfg.Interval,
		"disk_path", w.cfg.DiskPath,
		"threshold_percent", w.cfg.DiskThreshold,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watchdog stopped")
			return
		case <-ticker.C:
			w.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs a single resource check and returns the number of purged rows
func (w *Watchdog) CheckOnce(ctx context.Context) int64 {
	used, err := w.usage(ctx, w.cfg.DiskPath)
	if err != nil {
		slog.Error("Watchdog disk check failed", "error", err, "path", w.cfg.DiskPath)
		return 0
	}

	if used < w.cfg.DiskThreshold {
		slog.Debug("Watchdog disk usage OK", "used_percent", used)
		return 0
	}

	cutoff := w.now().Add(-w.cfg.Retention)
	slog.Warn("Watchdog disk usage above threshold, purging webhook logs",
		"used_percent", used,
		"threshold_percent", w.cfg.DiskThreshold,
		"cutoff", cutoff,
	)

	n, err := w.webhooks.PurgeProcessedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Watchdog purge failed", "error", err)
		return 0
	}
	slog.Info("Watchdog purged webhook logs", "rows", n)
	return n
}

func diskUsedPercent(ctx context.Context, path string) (float64, error) {
	stat, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}
