// Package tenant owns the Workspace entity: identity, provider-reconciled
// attributes, usage counters, and the phone_number_id -> workspace router.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanBasic      PlanTier = "basic"
	PlanPremium    PlanTier = "premium"
	PlanEnterprise PlanTier = "enterprise"
)

type PhoneHealth string

const (
	PhoneHealthPending      PhoneHealth = "PENDING"
	PhoneHealthConnected    PhoneHealth = "CONNECTED"
	PhoneHealthDisconnected PhoneHealth = "DISCONNECTED"
	PhoneHealthBanned       PhoneHealth = "BANNED"
	PhoneHealthFlagged      PhoneHealth = "FLAGGED"
	PhoneHealthRestricted   PhoneHealth = "RESTRICTED"
	PhoneHealthRateLimited  PhoneHealth = "RATE_LIMITED"
)

type QualityRating string

const (
	QualityGreen   QualityRating = "GREEN"
	QualityYellow  QualityRating = "YELLOW"
	QualityRed     QualityRating = "RED"
	QualityUnknown QualityRating = "UNKNOWN"
)

// MessagingTier is an ordered enum; higher is better. Comparisons in the
// kill-switch reactor rely on the numeric ordering, not string equality.
type MessagingTier int

const (
	TierUnset MessagingTier = iota
	TierTier1
	TierTier2
	TierUnlimited
)

type AccountStatus string

const (
	AccountActive        AccountStatus = "ACTIVE"
	AccountDisabled      AccountStatus = "DISABLED"
	AccountPendingReview AccountStatus = "PENDING_REVIEW"
	AccountSuspended     AccountStatus = "SUSPENDED"
)

type BillingStatus string

const (
	BillingTrialing BillingStatus = "trialing"
	BillingActive   BillingStatus = "active"
	BillingPastDue  BillingStatus = "past_due"
	BillingSuspended BillingStatus = "suspended"
)

// Workspace is a tenant of the BSP. Every other entity in the system
// references a Workspace by id; no entity is ever queried without that
// reference.
type Workspace struct {
	ID                      uuid.UUID
	PlanTier                PlanTier
	PhoneNumberID           string // unique across all workspaces when non-empty
	DisplayPhoneNumber      string
	WABAID                  string
	BSPConnected            bool
	PhoneHealth             PhoneHealth
	QualityRating           QualityRating
	MessagingTier           MessagingTier
	AccountStatus           AccountStatus
	BillingStatus           BillingStatus
	TrialAllowsSending      bool
	CapabilityBlocked       bool
	MessagesToday           int
	MessagesMonth           int
	TemplateSubmissionsToday int
	UsageDay                time.Time
	UsageMonth              time.Time
	RateLimitOverrides      map[string]int
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Connected reports whether the workspace satisfies the CONNECTED invariant:
// both a phone id and a WABA id must be present.
func (w *Workspace) Connected() bool {
	return w.PhoneNumberID != "" && w.WABAID != ""
}

// CanSendOutbound reports whether the phone's health allows initiating a
// send at all. RESTRICTED and FLAGGED permit read (inbound processing) but
// never outbound sends, per the decided Open Question in DESIGN.md.
func (w *Workspace) CanSendOutbound() bool {
	return w.PhoneHealth == PhoneHealthConnected
}
