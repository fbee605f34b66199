package killswitch

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/relaywave/bsp-gateway/internal/tenant"
)

type fakeCampaignRepo struct {
	campaigns     map[uuid.UUID]*Campaign
	events        []Event
	pauseFailFor  uuid.UUID
	recordEventFn func(workspaceID uuid.UUID, reason Reason, ids []uuid.UUID) error
}

func newFakeCampaignRepo(campaigns ...Campaign) *fakeCampaignRepo {
	m := map[uuid.UUID]*Campaign{}
	for i := range campaigns {
		c := campaigns[i]
		m[c.ID] = &c
	}
	return &fakeCampaignRepo{campaigns: m}
}

func (f *fakeCampaignRepo) RunningCampaigns(ctx context.Context, workspaceID uuid.UUID) ([]Campaign, error) {
	var out []Campaign
	for _, c := range f.campaigns {
		if c.WorkspaceID == workspaceID && c.Status == CampaignRunning {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) AllRunningCampaigns(ctx context.Context) ([]Campaign, error) {
	var out []Campaign
	for _, c := range f.campaigns {
		if c.Status == CampaignRunning {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) PauseCampaign(ctx context.Context, campaignID uuid.UUID, reason Reason) error {
	if campaignID == f.pauseFailFor {
		return errTestPauseFailure
	}
	c := f.campaigns[campaignID]
	c.Status = CampaignPaused
	c.PauseReason = string(reason)
	return nil
}

func (f *fakeCampaignRepo) RecordEvent(ctx context.Context, workspaceID uuid.UUID, reason Reason, pausedCampaignIDs []uuid.UUID) error {
	if f.recordEventFn != nil {
		return f.recordEventFn(workspaceID, reason, pausedCampaignIDs)
	}
	f.events = append(f.events, Event{WorkspaceID: workspaceID, Reason: reason, PausedCampaignIDs: pausedCampaignIDs})
	return nil
}

func (f *fakeCampaignRepo) LatestEventReason(ctx context.Context, workspaceID uuid.UUID) (Reason, error) {
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].WorkspaceID == workspaceID {
			return f.events[i].Reason, nil
		}
	}
	return "", nil
}

type errString string

func (e errString) Error() string { return string(e) }

const errTestPauseFailure = errString("pause failed")

type fakeGlobalStore struct {
	sw GlobalSwitch
}

func (f *fakeGlobalStore) GetGlobalSwitch(ctx context.Context) (*GlobalSwitch, error) {
	cp := f.sw
	return &cp, nil
}

func (f *fakeGlobalStore) ActivateGlobal(ctx context.Context, reason, actor string) error {
	f.sw = GlobalSwitch{Active: true, Reason: reason, Actor: actor}
	return nil
}

func (f *fakeGlobalStore) DeactivateGlobal(ctx context.Context, actor string) error {
	f.sw = GlobalSwitch{Active: false, Actor: actor}
	return nil
}

func TestDetectTrigger(t *testing.T) {
	wsID := uuid.New()
	base := tenant.Workspace{ID: wsID, QualityRating: tenant.QualityGreen, MessagingTier: tenant.TierTier2, AccountStatus: tenant.AccountActive}

	tests := []struct {
		name   string
		before tenant.Workspace
		after  tenant.Workspace
		want   Reason
	}{
		{
			name:   "quality degrades to red",
			before: base,
			after:  func() tenant.Workspace { w := base; w.QualityRating = tenant.QualityRed; return w }(),
			want:   ReasonQualityDegraded,
		},
		{
			name:   "tier downgraded",
			before: base,
			after:  func() tenant.Workspace { w := base; w.MessagingTier = tenant.TierTier1; return w }(),
			want:   ReasonTierDowngraded,
		},
		{
			name:   "account disabled",
			before: base,
			after:  func() tenant.Workspace { w := base; w.AccountStatus = tenant.AccountDisabled; return w }(),
			want:   ReasonAccountBlocked,
		},
		{
			name:   "capability revoked",
			before: base,
			after:  func() tenant.Workspace { w := base; w.CapabilityBlocked = true; return w }(),
			want:   ReasonCapabilityRevoked,
		},
		{
			name:   "enforcement detected via pending review",
			before: base,
			after:  func() tenant.Workspace { w := base; w.AccountStatus = tenant.AccountPendingReview; return w }(),
			want:   ReasonEnforcementDetected,
		},
		{
			name:   "no change, no trigger",
			before: base,
			after:  base,
			want:   "",
		},
		{
			name:   "yellow quality alone does not trigger",
			before: base,
			after:  func() tenant.Workspace { w := base; w.QualityRating = tenant.QualityYellow; return w }(),
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectTrigger(&tt.before, &tt.after)
			if got != tt.want {
				t.Errorf("detectTrigger() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReactor_OnWorkspaceSync_PausesRunningCampaigns(t *testing.T) {
	wsID := uuid.New()
	campaignID := uuid.New()
	repo := newFakeCampaignRepo(Campaign{ID: campaignID, WorkspaceID: wsID, Status: CampaignRunning})
	rc := NewReactor(repo, &fakeGlobalStore{})

	before := tenant.Workspace{ID: wsID, QualityRating: tenant.QualityGreen}
	after := tenant.Workspace{ID: wsID, QualityRating: tenant.QualityRed}

	reason, err := rc.OnWorkspaceSync(context.Background(), &before, &after)
	if err != nil {
		t.Fatalf("OnWorkspaceSync: %v", err)
	}
	if reason != ReasonQualityDegraded {
		t.Errorf("expected reason %q, got %q", ReasonQualityDegraded, reason)
	}
	if repo.campaigns[campaignID].Status != CampaignPaused {
		t.Errorf("expected campaign to be paused, got %s", repo.campaigns[campaignID].Status)
	}
	if len(repo.events) != 1 || repo.events[0].Reason != ReasonQualityDegraded {
		t.Errorf("expected one recorded event with reason %q, got %+v", ReasonQualityDegraded, repo.events)
	}
}

func TestReactor_OnWorkspaceSync_NoTriggerNoOp(t *testing.T) {
	wsID := uuid.New()
	campaignID := uuid.New()
	repo := newFakeCampaignRepo(Campaign{ID: campaignID, WorkspaceID: wsID, Status: CampaignRunning})
	rc := NewReactor(repo, &fakeGlobalStore{})

	w := tenant.Workspace{ID: wsID, QualityRating: tenant.QualityGreen}

	reason, err := rc.OnWorkspaceSync(context.Background(), &w, &w)
	if err != nil {
		t.Fatalf("OnWorkspaceSync: %v", err)
	}
	if reason != "" {
		t.Errorf("expected no trigger, got %q", reason)
	}
	if repo.campaigns[campaignID].Status != CampaignRunning {
		t.Error("campaign should not have been paused")
	}
}

func TestReactor_PauseWorkspaceCampaigns_ContinuesPastFailure(t *testing.T) {
	wsID := uuid.New()
	okID, failID := uuid.New(), uuid.New()
	repo := newFakeCampaignRepo(
		Campaign{ID: okID, WorkspaceID: wsID, Status: CampaignRunning},
		Campaign{ID: failID, WorkspaceID: wsID, Status: CampaignRunning},
	)
	repo.pauseFailFor = failID
	rc := NewReactor(repo, &fakeGlobalStore{})

	if err := rc.pauseWorkspaceCampaigns(context.Background(), wsID, ReasonAccountBlocked); err != nil {
		t.Fatalf("pauseWorkspaceCampaigns: %v", err)
	}
	if repo.campaigns[okID].Status != CampaignPaused {
		t.Error("expected the non-failing campaign to be paused")
	}
	if repo.campaigns[failID].Status != CampaignRunning {
		t.Error("expected the failing campaign to remain running")
	}
	if len(repo.events) != 1 || len(repo.events[0].PausedCampaignIDs) != 1 || repo.events[0].PausedCampaignIDs[0] != okID {
		t.Errorf("expected event to name only the successfully paused campaign, got %+v", repo.events)
	}
}

func TestReactor_ActivateGlobal_PausesAcrossWorkspaces(t *testing.T) {
	ws1, ws2 := uuid.New(), uuid.New()
	c1, c2 := uuid.New(), uuid.New()
	repo := newFakeCampaignRepo(
		Campaign{ID: c1, WorkspaceID: ws1, Status: CampaignRunning},
		Campaign{ID: c2, WorkspaceID: ws2, Status: CampaignRunning},
	)
	global := &fakeGlobalStore{}
	rc := NewReactor(repo, global)

	if err := rc.ActivateGlobal(context.Background(), "incident", "operator@example.com"); err != nil {
		t.Fatalf("ActivateGlobal: %v", err)
	}
	if repo.campaigns[c1].Status != CampaignPaused || repo.campaigns[c2].Status != CampaignPaused {
		t.Error("expected both workspaces' campaigns to be paused")
	}
	if !global.sw.Active {
		t.Error("expected global switch to be active")
	}
	if len(repo.events) != 2 {
		t.Errorf("expected one event per workspace, got %d", len(repo.events))
	}
}

func TestReactor_DeactivateGlobal(t *testing.T) {
	global := &fakeGlobalStore{sw: GlobalSwitch{Active: true}}
	rc := NewReactor(newFakeCampaignRepo(), global)

	if err := rc.DeactivateGlobal(context.Background(), "operator@example.com"); err != nil {
		t.Fatalf("DeactivateGlobal: %v", err)
	}
	if global.sw.Active {
		t.Error("expected global switch to be inactive")
	}
}

func TestIsWorkspaceSafeForCampaigns(t *testing.T) {
	tests := []struct {
		name       string
		global     GlobalSwitch
		w          tenant.Workspace
		wantSafe   bool
		wantWarn   bool
		wantReason bool
	}{
		{
			name:     "fully healthy",
			w:        tenant.Workspace{QualityRating: tenant.QualityGreen, AccountStatus: tenant.AccountActive},
			wantSafe: true,
		},
		{
			name:       "global switch overrides everything",
			global:     GlobalSwitch{Active: true},
			w:          tenant.Workspace{QualityRating: tenant.QualityGreen, AccountStatus: tenant.AccountActive},
			wantSafe:   false,
			wantReason: true,
		},
		{
			name:       "red quality unsafe",
			w:          tenant.Workspace{QualityRating: tenant.QualityRed, AccountStatus: tenant.AccountActive},
			wantSafe:   false,
			wantReason: true,
		},
		{
			name:     "yellow quality is a warning only",
			w:        tenant.Workspace{QualityRating: tenant.QualityYellow, AccountStatus: tenant.AccountActive},
			wantSafe: true,
			wantWarn: true,
		},
		{
			name:       "disabled account unsafe",
			w:          tenant.Workspace{QualityRating: tenant.QualityGreen, AccountStatus: tenant.AccountDisabled},
			wantSafe:   false,
			wantReason: true,
		},
		{
			name:       "capability blocked unsafe",
			w:          tenant.Workspace{QualityRating: tenant.QualityGreen, AccountStatus: tenant.AccountActive, CapabilityBlocked: true},
			wantSafe:   false,
			wantReason: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := NewReactor(newFakeCampaignRepo(), &fakeGlobalStore{sw: tt.global})
			check, err := rc.IsWorkspaceSafeForCampaigns(context.Background(), &tt.w)
			if err != nil {
				t.Fatalf("IsWorkspaceSafeForCampaigns: %v", err)
			}
			if check.Safe != tt.wantSafe {
				t.Errorf("Safe = %v, want %v (check=%+v)", check.Safe, tt.wantSafe, check)
			}
			if tt.wantWarn && check.Warning == "" {
				t.Error("expected a warning to be set")
			}
			if tt.wantReason && check.Reason == "" {
				t.Error("expected a reason to be set")
			}
		})
	}
}

func TestCampaignMessage_CanRetry(t *testing.T) {
	tests := []struct {
		name string
		msg  CampaignMessage
		want bool
	}{
		{"failed with retries left", CampaignMessage{Status: CampaignMessageFailed, Attempts: 1, MaxAttempts: 3}, true},
		{"failed with no retries left", CampaignMessage{Status: CampaignMessageFailed, Attempts: 3, MaxAttempts: 3}, false},
		{"sent never retries", CampaignMessage{Status: CampaignMessageSent, Attempts: 0, MaxAttempts: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.CanRetry(); got != tt.want {
				t.Errorf("CanRetry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGlobalSwitch_IsActive(t *testing.T) {
	if (&GlobalSwitch{Active: false}).IsActive() {
		t.Error("inactive switch should report inactive")
	}
	if !(&GlobalSwitch{Active: true}).IsActive() {
		t.Error("active switch with no expiry should report active")
	}
}
