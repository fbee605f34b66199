package outbound

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaywave/bsp-gateway/internal/messaging"
)

// ReplyAdapter implements replyengine.SessionSender over Sender, so the
// auto-reply and FAQ-bot matchers can trigger a send without depending on
// outbound's full pipeline surface.
type ReplyAdapter struct {
	Sender *Sender
}

func NewReplyAdapter(sender *Sender) *ReplyAdapter {
	return &ReplyAdapter{Sender: sender}
}

func (a *ReplyAdapter) SendTemplate(ctx context.Context, workspaceID, contactID uuid.UUID, to string, templateID uuid.UUID, bodyVars []string) error {
	_, err := a.Sender.Send(ctx, SendTemplateRequest{
		WorkspaceID: workspaceID,
		TemplateID:  &templateID,
		To:          to,
		ContactID:   &contactID,
		Variables:   Variables{Body: bodyVars},
	})
	return err
}

// SendText sends a free-form session message (FAQ-bot answers). This
// bypasses the template pipeline entirely: no template lookup, no
// variable-arity validation, no rate-limit check beyond the provider call
// itself, since §4.4 step 9b treats it as a direct text reply within an
// already-open customer conversation.
func (a *ReplyAdapter) SendText(ctx context.Context, workspaceID, conversationID, contactID uuid.UUID, to, body string) error {
	w, err := a.Sender.Workspace.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	if w == nil || !w.Connected() {
		return newError(ErrWorkspaceNotConfigured, "workspace is not connected to a phone number")
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": body},
	}
	resp, err := a.Sender.Provider.SendMessage(ctx, w.PhoneNumberID, payload)
	if err != nil {
		return err
	}
	var providerMessageID string
	if len(resp.Messages) > 0 {
		providerMessageID = resp.Messages[0].ID
	}

	now := time.Now().UTC()
	if _, err := a.Sender.Messages.Insert(ctx, &messaging.Message{
		WorkspaceID:       workspaceID,
		ConversationID:    conversationID,
		ContactID:         contactID,
		ProviderMessageID: providerMessageID,
		Direction:         messaging.DirectionOutbound,
		MsgType:           messaging.MsgTypeText,
		Body:              body,
		Status:            messaging.StatusSent,
		SentAt:            &now,
	}); err != nil {
		return fmt.Errorf("outbound: persist text reply: %w", err)
	}

	if err := a.Sender.Conversations.RecordOutboundActivity(ctx, workspaceID, conversationID, body, string(messaging.MsgTypeText), now); err != nil {
		return fmt.Errorf("outbound: record reply activity: %w", err)
	}
	return nil
}
