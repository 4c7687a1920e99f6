package services

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/roster/internal/models"
	pkglogger "github.com/BradenHooton/roster/pkg/logger"
)

// AuditLogRepository persists audit entries
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
}

// AuditService dual-writes audit events: immediately to the structured
// log, then to audit_logs. A failed insert is logged and swallowed so
// auditing never fails the request it describes.
type AuditService struct {
	repo   AuditLogRepository
	audit  *pkglogger.AuditLogger
	logger *slog.Logger
}

func NewAuditService(repo AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		audit:  pkglogger.NewAuditLogger(logger),
		logger: logger,
	}
}

// Record fills the client address from ctx and writes entry
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	client := ClientInfoFrom(ctx)
	if entry.IPAddress == nil && client.IP != "" {
		entry.IPAddress = &client.IP
	}
	if entry.UserAgent == nil && client.UserAgent != "" {
		entry.UserAgent = &client.UserAgent
	}

	event := pkglogger.AuditEvent{
		Type:     entry.EventType,
		Action:   entry.Action,
		ActorID:  entry.ActorID,
		TargetID: entry.TargetID,
		Success:  entry.Success,
		Metadata: entry.Metadata,
	}
	if entry.IPAddress != nil {
		event.IPAddress = *entry.IPAddress
	}
	if entry.UserAgent != nil {
		event.UserAgent = *entry.UserAgent
	}
	if entry.FailureReason != nil {
		event.FailureReason = *entry.FailureReason
	}
	s.audit.Log(ctx, event)

	if _, err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("event_type", entry.EventType),
			slog.Any("error", err))
	}
}

// Success records a successful action by actor on target
func (s *AuditService) Success(ctx context.Context, eventType, action string, actorID, targetID *int64, metadata models.AuditMetadata) {
	s.Record(ctx, models.AuditLog{
		EventType: eventType,
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		Success:   true,
		Metadata:  metadata,
	})
}

// Failure records a rejected action and its reason
func (s *AuditService) Failure(ctx context.Context, eventType, action string, actorID *int64, reason string, metadata models.AuditMetadata) {
	s.Record(ctx, models.AuditLog{
		EventType:     eventType,
		Action:        action,
		ActorID:       actorID,
		Success:       false,
		FailureReason: &reason,
		Metadata:      metadata,
	})
}
