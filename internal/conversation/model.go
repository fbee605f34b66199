// Package conversation owns the Conversation entity: the per-contact
// thread that messages attach to, its SLA deadline, and unread counters.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type Type string

const (
	TypeCustomerInitiated Type = "customer_initiated"
	TypeBusinessInitiated Type = "business_initiated"
)

type Conversation struct {
	ID                    uuid.UUID
	WorkspaceID           uuid.UUID
	ContactID             uuid.UUID
	Status                Status
	ConversationType      Type
	StartedAt             time.Time
	LastActivityAt        time.Time
	LastCustomerMessageAt *time.Time
	LastMessagePreview    string
	LastMessageType       string
	AssignedAgentID       *uuid.UUID
	SLADeadline           *time.Time
	UnreadCounts          map[string]int
}

// WithinServiceWindow reports whether a business-initiated free-form
// message (as opposed to a template) is still allowed: the 24-hour
// customer-service window opened by the contact's last inbound message.
func (c *Conversation) WithinServiceWindow(now time.Time) bool {
	if c.LastCustomerMessageAt == nil {
		return false
	}
	return now.Sub(*c.LastCustomerMessageAt) < 24*time.Hour
}
