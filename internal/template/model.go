// Package template owns the Template entity and the authoritative
// reconciliation state machine driven by provider webhooks (spec §4.6).
package template

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusPending  Status = "PENDING"
	StatusDeleted  Status = "DELETED"
	StatusDisabled Status = "DISABLED"
	StatusPaused   Status = "PAUSED"
)

type Category string

const (
	CategoryMarketing    Category = "MARKETING"
	CategoryUtility      Category = "UTILITY"
	CategoryAuthentication Category = "AUTHENTICATION"
)

// Component is one piece of a template's layout (header/body/button).
// ButtonSubType distinguishes a dynamic URL button from a copy-code
// button when Type is "button" (§4.7 step 8).
type Component struct {
	Type          string `json:"type"`
	Text          string `json:"text,omitempty"`
	ButtonSubType string `json:"buttonSubType,omitempty"` // "url" or "copy_code"
}

// ApprovalHistoryEntry records one status transition.
type ApprovalHistoryEntry struct {
	Status          Status    `json:"status"`
	Source          string    `json:"source"` // "WEBHOOK" or "SUBMISSION"
	ProviderEventID string    `json:"providerEventId,omitempty"`
	At              time.Time `json:"at"`
}

type Template struct {
	ID                   uuid.UUID
	WorkspaceID          uuid.UUID
	Name                 string
	Language             string
	Category             Category
	Components           []Component
	Status               Status
	ProviderTemplateID   string
	ProviderName         string
	OriginalTemplateID   *uuid.UUID
	Active               bool
	RejectionCategory    string
	RejectionReason      string
	ApprovalHistory      []ApprovalHistoryEntry
	LastWebhookEventID   string
	LastWebhookEventType string
	LastWebhookUpdate    *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OwnedBy enforces the ownership-match invariant required before any send.
func (t *Template) OwnedBy(workspaceID uuid.UUID) bool {
	return t.WorkspaceID == workspaceID
}
