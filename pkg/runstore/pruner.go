package runstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PrunerConfig contains configuration for the retention pruner.
type PrunerConfig struct {
	// RetentionDays is how long reports are kept. Zero keeps them forever.
	RetentionDays int

	// MaxRecords is the maximum number of reports to keep. Zero means
	// unlimited.
	MaxRecords int64
}

// Pruner enforces retention on a Store.
type Pruner struct {
	store  Store
	config PrunerConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewPruner creates a pruner for store.
func NewPruner(store Store, config PrunerConfig, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:  store,
		config: config,
		logger: logger.With("component", "runstore.retention"),
		now:    time.Now,
	}
}

// Prune deletes reports older than the retention period, then the oldest
// reports beyond MaxRecords. It returns the total number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.store.Prune(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
		p.logger.Debug("pruned reports by age",
			"deleted_count", deleted,
			"cutoff_time", cutoff,
		)
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.store.Trim(ctx, p.config.MaxRecords)
		if err != nil {
			return total, fmt.Errorf("prune by count failed: %w", err)
		}
		total += deleted
		p.logger.Debug("pruned reports by count",
			"deleted_count", deleted,
			"max_records", p.config.MaxRecords,
		)
	}

	if total > 0 {
		p.logger.Info("run history pruned",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	}
	return total, nil
}
