package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventKind names the realtime events consumers can subscribe to (§6.5).
type EventKind string

const (
	EventMessageReceived  EventKind = "message.received"
	EventMessageStatus    EventKind = "message.status"
	EventConversationNew  EventKind = "conversation.new"
	EventTemplateStatus   EventKind = "template.status"
)

// Event is the envelope published on a workspace-scoped channel.
type Event struct {
	Kind        EventKind `json:"kind"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
	Payload     any       `json:"payload"`
}

// Emitter publishes realtime events. It is a narrow interface so the
// ingestor, status applier, and template state machine can all depend on
// it without knowing whether the backing transport is Redis pub/sub or an
// in-process broker used in tests.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// RedisEmitter publishes to a per-workspace Redis pub/sub channel, reusing
// the same client the rest of the gateway uses for caching/rate-limit
// counters rather than standing up a separate broker dependency.
type RedisEmitter struct {
	client *redis.Client
}

func NewRedisEmitter(client *redis.Client) *RedisEmitter {
	return &RedisEmitter{client: client}
}

func (e *RedisEmitter) Emit(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("messaging: marshal event: %w", err)
	}
	channel := "ws:" + ev.WorkspaceID.String() + ":events"
	if err := e.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("messaging: publish event: %w", err)
	}
	return nil
}

// NoopEmitter discards events, for use where an Emitter is required but
// realtime delivery is not wanted.
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, Event) error { return nil }
