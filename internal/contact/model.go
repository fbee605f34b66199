// Package contact owns the Contact entity: one row per (workspace, phone),
// with opt-in/opt-out state and the audit trail of status changes.
package contact

import (
	"time"

	"github.com/google/uuid"
)

// OptSource records why a contact's opt status last changed.
type OptSource string

const (
	OptSourceInboundMessage OptSource = "inbound_message"
	OptSourceKeyword        OptSource = "keyword"
	OptSourceAPI            OptSource = "api"
	OptSourceProvider       OptSource = "provider"
)

type Contact struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Phone       string
	DisplayName string
	OptedIn     bool
	OptAt       time.Time
	OptSource   OptSource
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
