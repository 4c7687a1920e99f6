package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/models"
)

// AuditLogRepository appends to audit_logs. Rows are never updated; the
// cleanup job prunes them by age.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

// Create inserts entry and returns it with its id and timestamp filled in.
func (r *AuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) (*models.AuditLog, error) {
	query, args, err := psql.Insert("audit_logs").
		SetMap(map[string]any{
			"event_type":     entry.EventType,
			"actor_id":       entry.ActorID,
			"target_id":      entry.TargetID,
			"action":         entry.Action,
			"success":        entry.Success,
			"failure_reason": entry.FailureReason,
			"ip_address":     entry.IPAddress,
			"user_agent":     entry.UserAgent,
			"metadata":       entry.Metadata,
		}).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit insert: %w", err)
	}

	saved := *entry
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&saved.ID, &saved.CreatedAt); err != nil {
		return nil, fmt.Errorf("write audit log: %w", database.MapPostgresError(err))
	}
	return &saved, nil
}

// Cleanup deletes entries older than olderThanDays days.
func (r *AuditLogRepository) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit logs: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}
