package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/workflow"
)

// CampaignRollup forwards a delivery-status transition to the campaign
// message it participates in, if any. Implemented by
// internal/killswitch's campaign message repo; kept as a narrow interface
// here so messaging never imports killswitch directly.
type CampaignRollup interface {
	ApplyMessageStatus(ctx context.Context, providerMessageID string, status string, failureReason string) error
}

// StatusApplier applies inbound delivery-status webhooks to persisted
// messages (spec §4.5).
type StatusApplier struct {
	Repo     *Repo
	Rollup   CampaignRollup
	Workflow workflow.Engine
	Emitter  Emitter
}

func NewStatusApplier(repo *Repo, rollup CampaignRollup, wf workflow.Engine, emitter Emitter) *StatusApplier {
	return &StatusApplier{Repo: repo, Rollup: rollup, Workflow: wf, Emitter: emitter}
}

// StatusUpdate is one entry from the provider's statuses[] array.
type StatusUpdate struct {
	ProviderMessageID string
	Status            Status
	Timestamp         *time.Time // event-reported time, preferred over ingestion time
	FailureReason     string
}

// Apply locates the message by provider id, scoped to workspaceID when it
// is known (routed case), advances its status idempotently, and forwards
// the transition downstream. workspaceID may be nil when the event arrived
// unrouted; callers must not assume it is always populated (open question
// #4, left as-is).
func (a *StatusApplier) Apply(ctx context.Context, workspaceID *uuid.UUID, u StatusUpdate) error {
	msg, err := a.Repo.GetByProviderMessageID(ctx, workspaceID, u.ProviderMessageID)
	if err != nil {
		return err
	}
	if msg == nil {
		log.Ctx(ctx).Warn().Str("provider_message_id", u.ProviderMessageID).Msg("status update for unknown message")
		return nil
	}

	at := time.Now().UTC()
	if u.Timestamp != nil {
		at = u.Timestamp.UTC()
	}

	changed, err := a.Repo.ApplyStatus(ctx, msg.ID, u.Status, at, u.FailureReason)
	if err != nil {
		return err
	}
	if !changed {
		// Same or lower-ranked status replayed; idempotent no-op per §8.
		return nil
	}

	if msg.CampaignID != nil && a.Rollup != nil {
		if err := a.Rollup.ApplyMessageStatus(ctx, u.ProviderMessageID, string(u.Status), u.FailureReason); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("campaign_id", msg.CampaignID.String()).Msg("campaign rollup failed")
		}
	}

	if a.Workflow != nil {
		_ = a.Workflow.Notify(ctx, "status_updated", map[string]any{
			"messageId": msg.ID,
			"status":    u.Status,
		})
	}

	if a.Emitter != nil {
		_ = a.Emitter.Emit(ctx, Event{
			Kind:        EventMessageStatus,
			WorkspaceID: msg.WorkspaceID,
			Payload: map[string]any{
				"messageId": msg.ID,
				"status":    u.Status,
			},
		})
	}
	return nil
}
