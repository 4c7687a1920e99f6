package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredCleaner deletes rows that are past their expiry
type ExpiredCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// AuditPruner deletes audit entries older than a retention window
type AuditPruner interface {
	Cleanup(ctx context.Context, olderThanDays int) (int64, error)
}

// CleanupManager periodically removes expired access tokens, verification
// tokens, password reset tokens and old audit entries.
type CleanupManager struct {
	cleaners      map[string]ExpiredCleaner
	audit         AuditPruner
	retentionDays int
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
}

// NewCleanupManager creates a new cleanup manager. audit may be nil or
// retentionDays zero to keep audit entries forever.
func NewCleanupManager(
	cleaners map[string]ExpiredCleaner,
	audit AuditPruner,
	retentionDays int,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		cleaners:      cleaners,
		audit:         audit,
		retentionDays: retentionDays,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass. A failing cleaner does not stop
// the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for name, cleaner := range cm.cleaners {
		rowsDeleted, err := cleaner.CleanupExpired(cleanupCtx)
		if err != nil {
			cm.logger.Error("failed to cleanup expired rows", slog.String("table", name), slog.Any("error", err))
			continue
		}
		if rowsDeleted > 0 {
			cm.logger.Info("expired rows removed", slog.String("table", name), slog.Int64("rows_deleted", rowsDeleted))
		}
	}

	if cm.audit == nil || cm.retentionDays <= 0 {
		return
	}

	rowsDeleted, err := cm.audit.Cleanup(cleanupCtx, cm.retentionDays)
	if err != nil {
		cm.logger.Error("failed to prune audit logs", slog.Any("error", err))
		return
	}
	if rowsDeleted > 0 {
		cm.logger.Info("audit logs pruned", slog.Int64("rows_deleted", rowsDeleted), slog.Int("retention_days", cm.retentionDays))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
