package template

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/cache"
	"github.com/relaywave/bsp-gateway/internal/messaging"
	"github.com/relaywave/bsp-gateway/internal/provider"
	"github.com/relaywave/bsp-gateway/internal/tenant"
)

// eventStatusMap implements §4.6's event->status map.
var eventStatusMap = map[string]Status{
	"APPROVED":            StatusApproved,
	"REINSTATED":          StatusApproved,
	"REJECTED":            StatusRejected,
	"PENDING":             StatusPending,
	"PENDING_DELETION":    StatusPending,
	"IN_APPEAL":           StatusPending,
	"QUALITY_PENDING":     StatusPending,
	"DELETED":             StatusDeleted,
	"DISABLED":            StatusDisabled,
	"FLAGGED":             StatusDisabled,
	"FLAGGED_FOR_REVIEW":  StatusDisabled,
	"AUTO_DISABLED":       StatusDisabled,
	"BLOCKED":             StatusDisabled,
	"PAUSED":              StatusPaused,
}

// idempotencyWindow is the 5-second collapse window for repeated
// webhook deliveries of the same (templateID, eventType).
const idempotencyWindow = 5 * time.Second

// WebhookEvent is one message_template_status_update payload.
type WebhookEvent struct {
	ProviderTemplateID string
	ProviderName       string
	EventType          string // e.g. "APPROVED", "REJECTED"
	Reason             string
	ProviderEventID    string
}

// StateMachine reconciles local template status with provider webhooks.
type StateMachine struct {
	Repo      *Repo
	Workspace WorkspaceSuffixResolver
	Store     cache.Store
	Emitter   messaging.Emitter
}

// WorkspaceSuffixResolver routes an unrouted template event by the
// workspace-id suffix embedded in the provider template name (§6.2, §4.2).
// Implemented by internal/tenant.Repo.
type WorkspaceSuffixResolver interface {
	GetByIDSuffix(ctx context.Context, suffix string) (*tenant.Workspace, error)
}

func NewStateMachine(repo *Repo, store cache.Store, emitter messaging.Emitter) *StateMachine {
	return &StateMachine{Repo: repo, Store: store, Emitter: emitter}
}

// Apply resolves the target template (by provider id, then provider name,
// then workspace-prefix routing), checks the 5-second idempotency window,
// and applies the webhook's status transition authoritatively.
func (sm *StateMachine) Apply(ctx context.Context, ev WebhookEvent) error {
	tpl, err := sm.resolve(ctx, ev)
	if err != nil {
		return err
	}
	if tpl == nil {
		log.Ctx(ctx).Warn().Str("provider_template_id", ev.ProviderTemplateID).Msg("template status event for unknown template")
		return nil
	}

	if sm.Store != nil {
		key := fmt.Sprintf("tplidem:%s:%s", tpl.ID, ev.EventType)
		won, err := sm.Store.SetNX(ctx, key, []byte("1"), idempotencyWindow)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("template idempotency check failed open")
		} else if !won {
			return nil // collapsed duplicate within the window
		}
	}
	if tpl.LastWebhookEventID == ev.ProviderEventID && ev.ProviderEventID != "" {
		return nil // identical event id already applied
	}

	newStatus, ok := eventStatusMap[ev.EventType]
	if !ok {
		return fmt.Errorf("template: unknown event type %q", ev.EventType)
	}

	var category, helpText, rejectionReason string
	if newStatus == StatusRejected {
		category, helpText = ClassifyRejection(ev.Reason)
		rejectionReason = ev.Reason
	}

	var activateOver *uuid.UUID
	if newStatus == StatusApproved && tpl.OriginalTemplateID != nil {
		activateOver = tpl.OriginalTemplateID
	}

	at := time.Now().UTC()
	if err := sm.Repo.ApplyWebhookTransition(ctx, tpl.ID, newStatus, category, rejectionReason, ev.ProviderEventID, at, activateOver); err != nil {
		return err
	}

	if sm.Emitter != nil {
		previous := tpl.Status
		_ = sm.Emitter.Emit(ctx, messaging.Event{
			Kind:        messaging.EventTemplateStatus,
			WorkspaceID: tpl.WorkspaceID,
			Payload: map[string]any{
				"templateId":         tpl.ID,
				"providerTemplateId": tpl.ProviderTemplateID,
				"status":             newStatus,
				"previousStatus":     previous,
				"reason":             ev.Reason,
				"rejectionDetails":   map[string]string{"category": category, "helpText": helpText},
				"authoritative":      true,
			},
		})
	}
	return nil
}

func (sm *StateMachine) resolve(ctx context.Context, ev WebhookEvent) (*Template, error) {
	if ev.ProviderTemplateID != "" {
		if tpl, err := sm.Repo.GetByProviderTemplateID(ctx, ev.ProviderTemplateID); err != nil {
			return nil, err
		} else if tpl != nil {
			return tpl, nil
		}
	}
	if ev.ProviderName != "" {
		if tpl, err := sm.Repo.GetByProviderName(ctx, ev.ProviderName); err != nil {
			return nil, err
		} else if tpl != nil {
			return tpl, nil
		}
		if suffix, localName, ok := provider.SplitNamespace(ev.ProviderName); ok {
			ws, err := sm.Workspace.GetByIDSuffix(ctx, suffix)
			if err != nil {
				return nil, err
			}
			if ws != nil {
				return sm.Repo.GetByWorkspaceName(ctx, ws.ID, localName)
			}
		}
	}
	return nil, nil
}
