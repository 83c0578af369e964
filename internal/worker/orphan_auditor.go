package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/observability/metrics"
)

// OrphanAuditor periodically counts groups that have lost every member.
// Member-scoped reads make such groups invisible to all callers, so they can
// only be found by an out-of-band sweep. The auditor reports them through the
// orphaned-group gauge and the log; it never deletes anything itself.
type OrphanAuditor struct {
	groups   domain.GroupRepository
	logger   *slog.Logger
	interval time.Duration
}

func NewOrphanAuditor(groups domain.GroupRepository, logger *slog.Logger, interval time.Duration) *OrphanAuditor {
	return &OrphanAuditor{
		groups:   groups,
		logger:   logger,
		interval: interval,
	}
}

// Start runs the audit loop until the context is cancelled.
func (w *OrphanAuditor) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("orphan auditor started", slog.Duration("interval", w.interval))

	// One sweep up front so the gauge is populated before the first tick.
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("orphan auditor stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OrphanAuditor) sweep(ctx context.Context) {
	count, err := w.groups.CountOrphaned(ctx)
	if err != nil {
		w.logger.Error("orphan sweep failed", slog.String("error", err.Error()))
		return
	}

	metrics.SetOrphanedGroups(count)
	if count > 0 {
		w.logger.Warn("orphaned groups detected", slog.Int64("count", count))
	} else {
		w.logger.Debug("orphan sweep clean")
	}
}
