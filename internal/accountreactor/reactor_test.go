package accountreactor

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/relaywave/bsp-gateway/internal/killswitch"
	"github.com/relaywave/bsp-gateway/internal/tenant"
)

type fakeWorkspaces struct {
	workspace        tenant.Workspace
	applyCalls       []tenant.WebhookAccountUpdate
	capabilityBlocked *bool
}

func (f *fakeWorkspaces) ApplyAccountUpdate(ctx context.Context, id uuid.UUID, u tenant.WebhookAccountUpdate) (*tenant.Workspace, *tenant.Workspace, error) {
	f.applyCalls = append(f.applyCalls, u)
	before := f.workspace
	after := f.workspace
	if u.AccountStatus != nil {
		after.AccountStatus = *u.AccountStatus
	}
	if u.QualityRating != nil {
		after.QualityRating = *u.QualityRating
	}
	if u.PhoneHealth != nil {
		after.PhoneHealth = *u.PhoneHealth
	}
	if u.MessagingTier != nil {
		after.MessagingTier = *u.MessagingTier
	}
	f.workspace = after
	return &before, &after, nil
}

func (f *fakeWorkspaces) SetCapabilityBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	f.capabilityBlocked = &blocked
	f.workspace.CapabilityBlocked = blocked
	return nil
}

func (f *fakeWorkspaces) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Workspace, error) {
	w := f.workspace
	return &w, nil
}

type fakeHealth struct {
	calls []struct{ before, after tenant.Workspace }
}

func (f *fakeHealth) OnWorkspaceSync(ctx context.Context, before, after *tenant.Workspace) (killswitch.Reason, error) {
	f.calls = append(f.calls, struct{ before, after tenant.Workspace }{*before, *after})
	return "", nil
}

func TestHandleAccountUpdate_AppliesKnownFields(t *testing.T) {
	ws := &fakeWorkspaces{workspace: tenant.Workspace{AccountStatus: tenant.AccountActive, QualityRating: tenant.QualityGreen}}
	health := &fakeHealth{}
	rc := New(ws, health)

	err := rc.HandleAccountUpdate(context.Background(), uuid.New(), map[string]any{
		"decision":       "DISABLED",
		"quality_rating": "RED",
	})
	if err != nil {
		t.Fatalf("HandleAccountUpdate: %v", err)
	}
	if len(ws.applyCalls) != 1 {
		t.Fatalf("expected one apply call, got %d", len(ws.applyCalls))
	}
	got := ws.applyCalls[0]
	if got.AccountStatus == nil || *got.AccountStatus != tenant.AccountDisabled {
		t.Errorf("expected AccountStatus=DISABLED, got %+v", got.AccountStatus)
	}
	if got.QualityRating == nil || *got.QualityRating != tenant.QualityRed {
		t.Errorf("expected QualityRating=RED, got %+v", got.QualityRating)
	}
	if len(health.calls) != 1 {
		t.Errorf("expected health reactor to be invoked once, got %d", len(health.calls))
	}
}

func TestHandleAccountUpdate_DropsUnknownEnumValues(t *testing.T) {
	ws := &fakeWorkspaces{workspace: tenant.Workspace{AccountStatus: tenant.AccountActive}}
	rc := New(ws, &fakeHealth{})

	err := rc.HandleAccountUpdate(context.Background(), uuid.New(), map[string]any{
		"decision":       "NONSENSE_STATUS",
		"quality_rating": "GREEN",
	})
	if err != nil {
		t.Fatalf("HandleAccountUpdate: %v", err)
	}
	got := ws.applyCalls[0]
	if got.AccountStatus != nil {
		t.Errorf("expected unknown decision to be dropped, got %+v", got.AccountStatus)
	}
	if got.QualityRating == nil || *got.QualityRating != tenant.QualityGreen {
		t.Errorf("expected known quality_rating to still apply, got %+v", got.QualityRating)
	}
}

func TestHandleAccountUpdate_EmptyPayloadNoOp(t *testing.T) {
	ws := &fakeWorkspaces{}
	rc := New(ws, &fakeHealth{})

	if err := rc.HandleAccountUpdate(context.Background(), uuid.New(), map[string]any{}); err != nil {
		t.Fatalf("HandleAccountUpdate: %v", err)
	}
	got := ws.applyCalls[0]
	if got.AccountStatus != nil || got.QualityRating != nil || got.PhoneHealth != nil || got.MessagingTier != nil {
		t.Errorf("expected a fully nil update, got %+v", got)
	}
}

func TestHandleCapabilityUpdate_RevokesMessaging(t *testing.T) {
	ws := &fakeWorkspaces{workspace: tenant.Workspace{CapabilityBlocked: false}}
	health := &fakeHealth{}
	rc := New(ws, health)

	err := rc.HandleCapabilityUpdate(context.Background(), uuid.New(), map[string]any{
		"capability_name":   "MESSAGING",
		"capability_status": "revoked",
	})
	if err != nil {
		t.Fatalf("HandleCapabilityUpdate: %v", err)
	}
	if ws.capabilityBlocked == nil || !*ws.capabilityBlocked {
		t.Error("expected capability to be blocked")
	}
	if len(health.calls) != 1 {
		t.Errorf("expected health reactor invoked on revoke, got %d", len(health.calls))
	}
}

func TestHandleCapabilityUpdate_IgnoresNonGatingCapability(t *testing.T) {
	ws := &fakeWorkspaces{workspace: tenant.Workspace{CapabilityBlocked: false}}
	health := &fakeHealth{}
	rc := New(ws, health)

	err := rc.HandleCapabilityUpdate(context.Background(), uuid.New(), map[string]any{
		"capability_name":   "PAYMENTS",
		"capability_status": "revoked",
	})
	if err != nil {
		t.Fatalf("HandleCapabilityUpdate: %v", err)
	}
	if ws.capabilityBlocked != nil {
		t.Error("expected non-gating capability change to leave the block flag untouched")
	}
	if len(health.calls) != 0 {
		t.Errorf("expected no health reactor call, got %d", len(health.calls))
	}
}

func TestHandleCapabilityUpdate_RestorationUnblocks(t *testing.T) {
	ws := &fakeWorkspaces{workspace: tenant.Workspace{CapabilityBlocked: true}}
	rc := New(ws, &fakeHealth{})

	err := rc.HandleCapabilityUpdate(context.Background(), uuid.New(), map[string]any{
		"capability_name":   "MESSAGING",
		"capability_status": "active",
	})
	if err != nil {
		t.Fatalf("HandleCapabilityUpdate: %v", err)
	}
	if ws.capabilityBlocked == nil || *ws.capabilityBlocked {
		t.Error("expected capability block to be cleared on restoration")
	}
}
