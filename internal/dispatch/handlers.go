package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/messaging"
	"github.com/relaywave/bsp-gateway/internal/template"
	"github.com/relaywave/bsp-gateway/internal/tenant"
)

// Handlers is the per-event-type dispatch surface invoked by Dispatcher
// once a change object is classified and its tenant (when applicable) is
// resolved.
type Handlers interface {
	HandleMessage(ctx context.Context, w *tenant.Workspace, change ChangeObject) error
	HandleStatus(ctx context.Context, w *tenant.Workspace, change ChangeObject) error
	HandleTemplateStatus(ctx context.Context, change ChangeObject) error
	HandleAccountUpdate(ctx context.Context, w *tenant.Workspace, change ChangeObject) error
	HandleBusinessCapabilityUpdate(ctx context.Context, w *tenant.Workspace, change ChangeObject) error
	HandleAdUpdate(ctx context.Context, w *tenant.Workspace, change ChangeObject) error
}

// AccountReactor applies account/capability webhook updates to a
// workspace and runs the health-reactor triggers those updates can cause.
// Implemented by internal/accountreactor.Reactor.
type AccountReactor interface {
	HandleAccountUpdate(ctx context.Context, workspaceID uuid.UUID, value map[string]any) error
	HandleCapabilityUpdate(ctx context.Context, workspaceID uuid.UUID, value map[string]any) error
}

// GatewayHandlers is the concrete Handlers implementation wiring dispatch
// to the rest of the gateway's domain packages.
type GatewayHandlers struct {
	Ingestor     *messaging.Ingestor
	StatusApply  *messaging.StatusApplier
	Templates    *template.StateMachine
	AccountReact AccountReactor
}

func (h *GatewayHandlers) HandleMessage(ctx context.Context, w *tenant.Workspace, change ChangeObject) error {
	if w == nil {
		log.Ctx(ctx).Warn().Msg("dispatch: message change with no resolved workspace, dropping")
		return nil
	}
	raw, _ := change.Value["messages"].([]any)
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		in := parseInboundMessage(m)
		if err := h.Ingestor.Ingest(ctx, w, in); err != nil {
			return Retryable(fmt.Errorf("dispatch: ingest message: %w", err))
		}
	}
	return nil
}

func (h *GatewayHandlers) HandleStatus(ctx context.Context, w *tenant.Workspace, change ChangeObject) error {
	var workspaceID *uuid.UUID
	if w != nil {
		workspaceID = &w.ID
	}
	raw, _ := change.Value["statuses"].([]any)
	for _, item := range raw {
		s, ok := item.(map[string]any)
		if !ok {
			continue
		}
		u := parseStatusUpdate(s)
		if err := h.StatusApply.Apply(ctx, workspaceID, u); err != nil {
			return Retryable(fmt.Errorf("dispatch: apply status: %w", err))
		}
	}
	return nil
}

func (h *GatewayHandlers) HandleTemplateStatus(ctx context.Context, change ChangeObject) error {
	ev := template.WebhookEvent{
		ProviderTemplateID: stringField(change.Value, "message_template_id"),
		ProviderName:       stringField(change.Value, "message_template_name"),
		EventType:          stringField(change.Value, "event"),
		Reason:             stringField(change.Value, "reason"),
		ProviderEventID:    stringField(change.Value, "event_id"),
	}
	if err := h.Templates.Apply(ctx, ev); err != nil {
		return Retryable(fmt.Errorf("dispatch: apply template status: %w", err))
	}
	return nil
}

func (h *GatewayHandlers) HandleAccountUpdate(ctx context.Context, w *tenant.Workspace, change ChangeObject) error {
	if w == nil {
		log.Ctx(ctx).Warn().Msg("dispatch: account_update with no resolved workspace, dropping")
		return nil
	}
	if err := h.AccountReact.HandleAccountUpdate(ctx, w.ID, change.Value); err != nil {
		return Retryable(fmt.Errorf("dispatch: account update: %w", err))
	}
	return nil
}

func (h *GatewayHandlers) HandleBusinessCapabilityUpdate(ctx context.Context, w *tenant.Workspace, change ChangeObject) error {
	if w == nil {
		log.Ctx(ctx).Warn().Msg("dispatch: business_capability_update with no resolved workspace, dropping")
		return nil
	}
	if err := h.AccountReact.HandleCapabilityUpdate(ctx, w.ID, change.Value); err != nil {
		return Retryable(fmt.Errorf("dispatch: capability update: %w", err))
	}
	return nil
}

// HandleAdUpdate is a logging no-op: spec.md classifies ad_review /
// ad_status_update / account_disabled but assigns them no state-mutating
// contract of their own (§4.2, §4.10 only cover account_update and
// business_capability_update). Recorded on the webhook log for audit,
// nothing else observes it.
func (h *GatewayHandlers) HandleAdUpdate(ctx context.Context, w *tenant.Workspace, change ChangeObject) error {
	log.Ctx(ctx).Info().Str("sub_kind", string(change.AdSubKind)).Msg("dispatch: ad update received")
	return nil
}

func parseInboundMessage(m map[string]any) messaging.InboundMessage {
	in := messaging.InboundMessage{
		ProviderMessageID: stringField(m, "id"),
		From:              stringField(m, "from"),
		Raw:               m,
	}
	if ts := stringField(m, "timestamp"); ts != "" {
		if sec, err := parseUnixSeconds(ts); err == nil {
			t := time.Unix(sec, 0).UTC()
			in.Timestamp = &t
		}
	}

	switch stringField(m, "type") {
	case "text":
		in.MsgType = messaging.MsgTypeText
		if body, ok := m["text"].(map[string]any); ok {
			in.Body = stringField(body, "body")
		}
	case "image", "video", "document", "audio", "voice", "sticker":
		in.MsgType = messaging.MsgTypeMedia
		if media, ok := m[stringField(m, "type")].(map[string]any); ok {
			in.MediaID = stringField(media, "id")
			in.MediaMIME = stringField(media, "mime_type")
			in.MediaSHA256 = stringField(media, "sha256")
			if caption := stringField(media, "caption"); caption != "" {
				in.Body = caption
			}
		}
	default:
		in.MsgType = messaging.MsgTypeUnknown
	}
	return in
}

func parseStatusUpdate(s map[string]any) messaging.StatusUpdate {
	u := messaging.StatusUpdate{
		ProviderMessageID: stringField(s, "id"),
		Status:            messaging.Status(stringField(s, "status")),
	}
	if ts := stringField(s, "timestamp"); ts != "" {
		if sec, err := parseUnixSeconds(ts); err == nil {
			t := time.Unix(sec, 0).UTC()
			u.Timestamp = &t
		}
	}
	if errs, ok := s["errors"].([]any); ok && len(errs) > 0 {
		if e, ok := errs[0].(map[string]any); ok {
			u.FailureReason = stringField(e, "title")
		}
	}
	return u
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func parseUnixSeconds(s string) (int64, error) {
	var sec int64
	_, err := fmt.Sscanf(s, "%d", &sec)
	return sec, err
}
