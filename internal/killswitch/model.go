// Package killswitch implements the campaign model, the health reactor
// that auto-pauses campaigns on account-health degradation, and the
// global admin kill-switch (spec §4.9, §3 "Kill-Switch State").
package killswitch

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignRunning CampaignStatus = "RUNNING"
	CampaignPaused  CampaignStatus = "PAUSED"
)

type BatchStatus string

const (
	BatchPending BatchStatus = "PENDING"
	BatchQueued  BatchStatus = "QUEUED"
	BatchPaused  BatchStatus = "PAUSED"
)

type CampaignMessageStatus string

const (
	CampaignMessagePending CampaignMessageStatus = "pending"
	CampaignMessageSent    CampaignMessageStatus = "sent"
	CampaignMessageFailed  CampaignMessageStatus = "failed"
)

// Campaign is a bulk outbound send run, owned by a single workspace.
type Campaign struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Status      CampaignStatus
	PauseReason string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CampaignMessage is the (campaign, contact) exactly-once send record
// (§3 "CampaignMessage"). The unique constraint on (campaign_id,
// contact_id) is the storage-layer guard §5 requires.
type CampaignMessage struct {
	ID                uuid.UUID
	CampaignID        uuid.UUID
	ContactID         uuid.UUID
	Status            CampaignMessageStatus
	Attempts          int
	MaxAttempts       int
	LastError         string
	ProviderMessageID string
}

// CanRetry implements the spec's retry predicate: status==failed AND
// attempts<maxAttempts.
func (m *CampaignMessage) CanRetry() bool {
	return m.Status == CampaignMessageFailed && m.Attempts < m.MaxAttempts
}

// Reason enumerates why a workspace's campaigns were auto-paused (§4.9).
type Reason string

const (
	ReasonQualityDegraded   Reason = "QUALITY_DEGRADED"
	ReasonTierDowngraded    Reason = "TIER_DOWNGRADED"
	ReasonAccountBlocked    Reason = "ACCOUNT_BLOCKED"
	ReasonCapabilityRevoked Reason = "CAPABILITY_REVOKED"
	ReasonEnforcementDetected Reason = "ENFORCEMENT_DETECTED"
	ReasonAdminTriggered    Reason = "ADMIN_TRIGGERED"
)

// Event is a persisted per-workspace kill-switch activation (§3, TTL≈7d).
type Event struct {
	ID                uuid.UUID
	WorkspaceID       uuid.UUID
	Reason            Reason
	PausedCampaignIDs []uuid.UUID
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// GlobalSwitch is the single admin-operable global kill-switch record
// (§3, TTL≈24h).
type GlobalSwitch struct {
	Active      bool
	Reason      string
	Actor       string
	ActivatedAt *time.Time
	ExpiresAt   *time.Time
}

// IsActive reports whether the switch is currently in effect, honoring
// its own TTL even if a cron hasn't swept an expired row yet.
func (g *GlobalSwitch) IsActive() bool {
	if !g.Active {
		return false
	}
	if g.ExpiresAt != nil && time.Now().UTC().After(*g.ExpiresAt) {
		return false
	}
	return true
}

// SafetyCheck is the explicit multi-check structure §4.9's
// isWorkspaceSafeForCampaigns returns, instead of a bare bool.
type SafetyCheck struct {
	Safe             bool
	GlobalSwitchOn   bool
	QualityUnsafe    bool
	AccountUnsafe    bool
	CapabilityUnsafe bool
	Warning          string
	Reason           string
}
