package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Audit event types
const (
	AuditEventLogin          = "login"
	AuditEventLogout         = "logout"
	AuditEventRegister       = "register"
	AuditEventTokenRevoke    = "token_revoke"
	AuditEventPasswordChange = "password_change"
	AuditEventPasswordReset  = "password_reset"
	AuditEventEmailVerify    = "email_verify"
	AuditEventUserAction     = "user_action"
)

// Audit actions
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionAccess = "access"
)

type AuditLog struct {
	ID            int64
	EventType     string
	ActorID       *int64
	TargetID      *int64
	Action        string
	Success       bool
	FailureReason *string
	IPAddress     *string
	UserAgent     *string
	Metadata      AuditMetadata
	CreatedAt     time.Time
}

// AuditMetadata holds additional context for audit events, stored as JSONB.
type AuditMetadata map[string]any

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value any) error {
	if value == nil {
		*am = AuditMetadata{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("audit metadata: unsupported type %T", value)
	}

	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(am))
}
