// Package accountreactor implements the §4.10 account_update and
// business_capability_update webhook handlers: it authoritatively
// reconciles workspace phone/account/quality state from the provider and
// triggers the kill-switch health reactor on every transition it detects.
package accountreactor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/killswitch"
	"github.com/relaywave/bsp-gateway/internal/tenant"
)

// WorkspaceUpdater is the subset of tenant.Repo the reactor drives.
type WorkspaceUpdater interface {
	ApplyAccountUpdate(ctx context.Context, id uuid.UUID, u tenant.WebhookAccountUpdate) (before, after *tenant.Workspace, err error)
	SetCapabilityBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Workspace, error)
}

// HealthReactor is the subset of killswitch.Reactor the account reactor
// drives after applying an authoritative update.
type HealthReactor interface {
	OnWorkspaceSync(ctx context.Context, before, after *tenant.Workspace) (killswitch.Reason, error)
}

// Reactor implements internal/dispatch.AccountReactor.
type Reactor struct {
	Workspaces WorkspaceUpdater
	Health     HealthReactor
}

func New(workspaces WorkspaceUpdater, health HealthReactor) *Reactor {
	return &Reactor{Workspaces: workspaces, Health: health}
}

var validAccountStatus = map[string]tenant.AccountStatus{
	"ACTIVE":         tenant.AccountActive,
	"DISABLED":       tenant.AccountDisabled,
	"PENDING_REVIEW": tenant.AccountPendingReview,
	"SUSPENDED":      tenant.AccountSuspended,
}

var validQualityRating = map[string]tenant.QualityRating{
	"GREEN":   tenant.QualityGreen,
	"YELLOW":  tenant.QualityYellow,
	"RED":     tenant.QualityRed,
	"UNKNOWN": tenant.QualityUnknown,
}

var validPhoneHealth = map[string]tenant.PhoneHealth{
	"PENDING":      tenant.PhoneHealthPending,
	"CONNECTED":    tenant.PhoneHealthConnected,
	"DISCONNECTED": tenant.PhoneHealthDisconnected,
	"BANNED":       tenant.PhoneHealthBanned,
	"FLAGGED":      tenant.PhoneHealthFlagged,
	"RESTRICTED":   tenant.PhoneHealthRestricted,
	"RATE_LIMITED": tenant.PhoneHealthRateLimited,
}

var validMessagingTier = map[string]tenant.MessagingTier{
	"TIER_0":    tenant.TierUnset,
	"TIER_1":    tenant.TierTier1,
	"TIER_2":    tenant.TierTier2,
	"UNLIMITED": tenant.TierUnlimited,
}

// HandleAccountUpdate applies an account_update change object (§4.2,
// §4.10): decision/account status and quality rating after
// enum-validation, optional phone health, and logs PARTNER_ADDED asset
// ids for audit (no dedicated entity is specified for them). Unknown
// enum values are dropped with a warning rather than failing the job —
// an account_update carrying one known-good field alongside one
// unrecognized one should still apply the field it understands.
func (rc *Reactor) HandleAccountUpdate(ctx context.Context, workspaceID uuid.UUID, value map[string]any) error {
	var update tenant.WebhookAccountUpdate

	if raw, ok := stringField(value, "decision"); ok {
		if status, known := validAccountStatus[strings.ToUpper(raw)]; known {
			update.AccountStatus = &status
		} else {
			log.Ctx(ctx).Warn().Str("decision", raw).Msg("accountreactor: unknown account decision, dropping field")
		}
	}
	if raw, ok := stringField(value, "quality_rating"); ok {
		if rating, known := validQualityRating[strings.ToUpper(raw)]; known {
			update.QualityRating = &rating
		} else {
			log.Ctx(ctx).Warn().Str("quality_rating", raw).Msg("accountreactor: unknown quality rating, dropping field")
		}
	}
	if raw, ok := stringField(value, "phone_health"); ok {
		if health, known := validPhoneHealth[strings.ToUpper(raw)]; known {
			update.PhoneHealth = &health
		} else {
			log.Ctx(ctx).Warn().Str("phone_health", raw).Msg("accountreactor: unknown phone health, dropping field")
		}
	}
	if raw, ok := stringField(value, "messaging_tier"); ok {
		if tier, known := validMessagingTier[strings.ToUpper(raw)]; known {
			update.MessagingTier = &tier
		} else {
			log.Ctx(ctx).Warn().Str("messaging_tier", raw).Msg("accountreactor: unknown messaging tier, dropping field")
		}
	}

	if ids, ok := value["partner_added_asset_ids"].([]any); ok && len(ids) > 0 {
		log.Ctx(ctx).Info().Interface("asset_ids", ids).Str("workspace_id", workspaceID.String()).Msg("accountreactor: PARTNER_ADDED customer asset ids recorded")
	}

	before, after, err := rc.Workspaces.ApplyAccountUpdate(ctx, workspaceID, update)
	if err != nil {
		return fmt.Errorf("accountreactor: apply account update: %w", err)
	}

	if rc.Health != nil {
		if reason, err := rc.Health.OnWorkspaceSync(ctx, before, after); err != nil {
			return fmt.Errorf("accountreactor: health reactor: %w", err)
		} else if reason != "" {
			log.Ctx(ctx).Warn().Str("workspace_id", workspaceID.String()).Str("reason", string(reason)).Msg("accountreactor: health trigger fired")
		}
	}
	return nil
}

const (
	capabilityMessaging       = "MESSAGING"
	capabilityPhoneManagement = "PHONE_NUMBER_MANAGEMENT"
)

// HandleCapabilityUpdate records a per-capability status change.
// Revocation of MESSAGING or PHONE_NUMBER_MANAGEMENT sets the
// workspace-wide capability-block flag the outbound sender observes
// (§4.10); the model carries one flag rather than per-capability state,
// so any other capability's status change is logged but does not affect
// the block flag.
func (rc *Reactor) HandleCapabilityUpdate(ctx context.Context, workspaceID uuid.UUID, value map[string]any) error {
	capability, _ := stringField(value, "capability_name")
	if capability == "" {
		capability, _ = stringField(value, "capability")
	}
	status, _ := stringField(value, "capability_status")
	if status == "" {
		status, _ = stringField(value, "status")
	}

	revoked := strings.EqualFold(status, "revoked") || strings.EqualFold(status, "disabled")

	if capability != capabilityMessaging && capability != capabilityPhoneManagement {
		log.Ctx(ctx).Info().Str("capability", capability).Str("status", status).Msg("accountreactor: capability update for non-gating capability")
		return nil
	}

	if err := rc.Workspaces.SetCapabilityBlocked(ctx, workspaceID, revoked); err != nil {
		return fmt.Errorf("accountreactor: set capability blocked: %w", err)
	}

	if revoked && rc.Health != nil {
		after, err := rc.Workspaces.GetByID(ctx, workspaceID)
		if err != nil {
			return fmt.Errorf("accountreactor: reload workspace after capability revoke: %w", err)
		}
		before := *after
		before.CapabilityBlocked = false
		if reason, err := rc.Health.OnWorkspaceSync(ctx, &before, after); err != nil {
			return fmt.Errorf("accountreactor: health reactor: %w", err)
		} else if reason != "" {
			log.Ctx(ctx).Warn().Str("workspace_id", workspaceID.String()).Str("reason", string(reason)).Msg("accountreactor: health trigger fired")
		}
	}
	return nil
}

func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}
