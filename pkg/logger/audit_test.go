package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	actor := int64(3)
	al.Log(context.Background(), AuditEvent{
		Type:          "login",
		Action:        "access",
		ActorID:       &actor,
		IPAddress:     "203.0.113.1",
		Success:       false,
		FailureReason: "invalid_credentials",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "login", entry["audit_type"])
	assert.Equal(t, float64(3), entry["actor_id"])
	assert.Equal(t, "invalid_credentials", entry["failure_reason"])
	assert.NotContains(t, entry, "target_id")
}

func TestAuditLogger_SuccessIsInfo(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.Log(context.Background(), AuditEvent{Type: "logout", Action: "access", Success: true})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
}
