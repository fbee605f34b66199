package killswitch

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/tenant"
)

// CampaignRepo is the subset of Repo the reactor drives. Narrowed to an
// interface so tests can substitute an in-memory fake.
type CampaignRepo interface {
	RunningCampaigns(ctx context.Context, workspaceID uuid.UUID) ([]Campaign, error)
	AllRunningCampaigns(ctx context.Context) ([]Campaign, error)
	PauseCampaign(ctx context.Context, campaignID uuid.UUID, reason Reason) error
	RecordEvent(ctx context.Context, workspaceID uuid.UUID, reason Reason, pausedCampaignIDs []uuid.UUID) error
	LatestEventReason(ctx context.Context, workspaceID uuid.UUID) (Reason, error)
}

// GlobalStore is the subset of Repo backing the admin global switch.
type GlobalStore interface {
	GetGlobalSwitch(ctx context.Context) (*GlobalSwitch, error)
	ActivateGlobal(ctx context.Context, reason, actor string) error
	DeactivateGlobal(ctx context.Context, actor string) error
}

// Reactor watches account-health transitions discovered via webhooks or
// periodic sync and auto-pauses running campaigns for the affected
// workspace (§4.9). It also exposes the global admin kill-switch and the
// isWorkspaceSafeForCampaigns safety query.
type Reactor struct {
	Campaigns CampaignRepo
	Global    GlobalStore
}

func NewReactor(campaigns CampaignRepo, global GlobalStore) *Reactor {
	return &Reactor{Campaigns: campaigns, Global: global}
}

// detectTrigger implements §4.9's ordered trigger list for a single
// sync-completion transition. Returns "" if no trigger fired. Checked in
// spec order; the first match wins since a single sync can only report
// one canonical cause per evaluation.
func detectTrigger(before, after *tenant.Workspace) Reason {
	if before == nil || after == nil {
		return ""
	}
	if before.QualityRating != tenant.QualityRed && after.QualityRating == tenant.QualityRed {
		return ReasonQualityDegraded
	}
	if after.MessagingTier < before.MessagingTier {
		return ReasonTierDowngraded
	}
	if before.AccountStatus != tenant.AccountDisabled && after.AccountStatus == tenant.AccountDisabled {
		return ReasonAccountBlocked
	}
	if !before.CapabilityBlocked && after.CapabilityBlocked {
		return ReasonCapabilityRevoked
	}
	if isEnforcementStatus(after.AccountStatus) && !isEnforcementStatus(before.AccountStatus) {
		return ReasonEnforcementDetected
	}
	return ""
}

// isEnforcementStatus maps the provider decision statuses §4.9 names
// (DISABLED|PENDING_DELETION|UNDER_REVIEW) onto the locally-modeled
// AccountStatus enum. PENDING_REVIEW is this system's analog of
// UNDER_REVIEW; there is no local PENDING_DELETION state distinct from
// DISABLED, so DISABLED covers both.
func isEnforcementStatus(s tenant.AccountStatus) bool {
	return s == tenant.AccountDisabled || s == tenant.AccountPendingReview
}

// OnWorkspaceSync evaluates a workspace's before/after state following a
// webhook-driven or periodic sync and auto-pauses its running campaigns
// if a trigger fired. Returns the reason that fired, or "" if none did.
func (rc *Reactor) OnWorkspaceSync(ctx context.Context, before, after *tenant.Workspace) (Reason, error) {
	reason := detectTrigger(before, after)
	if reason == "" {
		return "", nil
	}
	if err := rc.pauseWorkspaceCampaigns(ctx, after.ID, reason); err != nil {
		return reason, err
	}
	return reason, nil
}

// pauseWorkspaceCampaigns implements §4.9's "Effect": enumerate running
// campaigns, pause each (and its batches), then persist one kill-switch
// event naming every paused campaign id. A single campaign's pause
// failure is logged and does not block the rest (§7).
func (rc *Reactor) pauseWorkspaceCampaigns(ctx context.Context, workspaceID uuid.UUID, reason Reason) error {
	campaigns, err := rc.Campaigns.RunningCampaigns(ctx, workspaceID)
	if err != nil {
		return err
	}

	var paused []uuid.UUID
	for _, c := range campaigns {
		if err := rc.Campaigns.PauseCampaign(ctx, c.ID, reason); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("campaign_id", c.ID.String()).Msg("killswitch: failed to pause campaign")
			continue
		}
		paused = append(paused, c.ID)
	}

	if err := rc.Campaigns.RecordEvent(ctx, workspaceID, reason, paused); err != nil {
		return err
	}
	log.Ctx(ctx).Warn().
		Str("workspace_id", workspaceID.String()).
		Str("reason", string(reason)).
		Int("paused_count", len(paused)).
		Msg("killswitch: auto-paused campaigns on health degradation")
	return nil
}

// ActivateGlobal turns on the admin global switch and pauses every
// running campaign across every workspace with reason ADMIN_TRIGGERED
// (§4.9 "Global switch"). Kill-switch-triggered pauses are idempotent and
// always succeed as a whole; per-campaign failures are logged (§7).
func (rc *Reactor) ActivateGlobal(ctx context.Context, reason, actor string) error {
	if err := rc.Global.ActivateGlobal(ctx, reason, actor); err != nil {
		return err
	}

	campaigns, err := rc.Campaigns.AllRunningCampaigns(ctx)
	if err != nil {
		return err
	}
	byWorkspace := map[uuid.UUID][]uuid.UUID{}
	for _, c := range campaigns {
		if err := rc.Campaigns.PauseCampaign(ctx, c.ID, ReasonAdminTriggered); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("campaign_id", c.ID.String()).Msg("killswitch: failed to pause campaign on global activation")
			continue
		}
		byWorkspace[c.WorkspaceID] = append(byWorkspace[c.WorkspaceID], c.ID)
	}
	for workspaceID, ids := range byWorkspace {
		if err := rc.Campaigns.RecordEvent(ctx, workspaceID, ReasonAdminTriggered, ids); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("workspace_id", workspaceID.String()).Msg("killswitch: failed to record global-activation event")
		}
	}
	return nil
}

// DeactivateGlobal turns off the admin global switch. It never re-resumes
// paused campaigns automatically — campaigns stay PAUSED until their
// owner explicitly resumes them, which is outside this package's scope.
func (rc *Reactor) DeactivateGlobal(ctx context.Context, actor string) error {
	return rc.Global.DeactivateGlobal(ctx, actor)
}

// IsWorkspaceSafeForCampaigns implements §4.9's safety query: an explicit
// multi-check structure, not a bare bool. YELLOW quality is a warning
// only, never terminal.
func (rc *Reactor) IsWorkspaceSafeForCampaigns(ctx context.Context, w *tenant.Workspace) (SafetyCheck, error) {
	check := SafetyCheck{Safe: true}

	global, err := rc.Global.GetGlobalSwitch(ctx)
	if err != nil {
		return check, err
	}
	if global.IsActive() {
		check.GlobalSwitchOn = true
		check.Safe = false
		check.Reason = "Global kill-switch is active"
		return check, nil
	}

	if w.QualityRating == tenant.QualityRed {
		check.QualityUnsafe = true
		check.Safe = false
		check.Reason = "Phone quality rating is RED"
	} else if w.QualityRating == tenant.QualityYellow {
		check.Warning = "Phone quality rating is YELLOW"
	}

	if w.AccountStatus == tenant.AccountDisabled || w.AccountStatus == tenant.AccountSuspended {
		check.AccountUnsafe = true
		check.Safe = false
		if check.Reason == "" {
			check.Reason = "Account status is " + string(w.AccountStatus)
		}
	}

	if w.CapabilityBlocked {
		check.CapabilityUnsafe = true
		check.Safe = false
		if check.Reason == "" {
			check.Reason = "Messaging capability has been revoked"
		}
	}

	return check, nil
}
