// Package replyengine implements the inbound reply cascade (spec §4.4
// step 9): auto-reply keyword matching, FAQ answer-bot overlap matching,
// and the workflow-engine notification, evaluated in order with
// first-success-stops semantics.
package replyengine

import (
	"context"

	"github.com/google/uuid"
)

// SessionSender sends a free-form text message within an open customer
// service window (the FAQ bot's reply) or a templated auto-reply.
// Implemented by a thin adapter over internal/outbound so the reply
// engine never depends on the full outbound pipeline surface.
type SessionSender interface {
	SendText(ctx context.Context, workspaceID, conversationID, contactID uuid.UUID, to, body string) error
	SendTemplate(ctx context.Context, workspaceID, contactID uuid.UUID, to string, templateID uuid.UUID, bodyVars []string) error
}
