// Package events publishes user lifecycle events for downstream consumers.
package events

import (
	"context"
	"strconv"
	"time"
)

const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"
)

// UserEvent is the JSON payload written for every user lifecycle change
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Username   string    `json:"username,omitempty"`
	Changed    []string  `json:"changed,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PartitionKey keeps the events of one user in order
func (e UserEvent) PartitionKey() string {
	return strconv.FormatInt(e.UserID, 10)
}

type Publisher interface {
	Publish(ctx context.Context, event UserEvent) error
	Close() error
}

// NopPublisher drops events; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, UserEvent) error { return nil }
func (NopPublisher) Close() error                            { return nil }
