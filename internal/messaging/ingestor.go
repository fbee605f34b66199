package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/contact"
	"github.com/relaywave/bsp-gateway/internal/conversation"
	"github.com/relaywave/bsp-gateway/internal/replyengine"
	"github.com/relaywave/bsp-gateway/internal/tenant"
	"github.com/relaywave/bsp-gateway/internal/workflow"
)

// InboundMessage is one entry from the provider's messages[] array,
// already stripped of its envelope.
type InboundMessage struct {
	ProviderMessageID string
	From              string // phone, not yet normalized
	MsgType           MsgType
	Body              string
	MediaID           string
	MediaMIME         string
	MediaSHA256       string
	Timestamp         *time.Time
	Raw               map[string]any
}

// MediaFetcher resolves and stores an inbound media attachment,
// implemented by internal/provider.MediaFetcher.
type MediaFetcher interface {
	Fetch(ctx context.Context, workspaceID, mediaID string) (storedPath, mimeType string, err error)
}

// ContactStore is the subset of contact.Repo the ingestor needs.
type ContactStore interface {
	FindOrCreate(ctx context.Context, workspaceID uuid.UUID, phone, displayName string) (*contact.Contact, error)
	SetOptStatus(ctx context.Context, workspaceID, id uuid.UUID, optedIn bool, source contact.OptSource) error
}

// ConversationStore is the subset of conversation.Repo the ingestor needs.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, workspaceID, contactID uuid.UUID, convType conversation.Type) (*conversation.Conversation, error)
	ReopenOnInbound(ctx context.Context, workspaceID, id uuid.UUID, preview, msgType string, at time.Time) error
	IncrementUnread(ctx context.Context, workspaceID, id uuid.UUID, bucket string) error
}

// Ingestor applies inbound messages atomically to tenant state and drives
// the reply-selection cascade (spec §4.4).
type Ingestor struct {
	Contacts      ContactStore
	Conversations ConversationStore
	Messages      *Repo
	Ledger        *LedgerRepo
	Media         MediaFetcher
	AutoReply     *replyengine.AutoReplyEngine
	FAQBot        *replyengine.FAQBot
	Workflow      workflow.Engine
	Emitter       Emitter
}

func NewIngestor(contacts ContactStore, conversations ConversationStore, messages *Repo, ledger *LedgerRepo, media MediaFetcher, autoReply *replyengine.AutoReplyEngine, faqBot *replyengine.FAQBot, wf workflow.Engine, emitter Emitter) *Ingestor {
	return &Ingestor{
		Contacts:      contacts,
		Conversations: conversations,
		Messages:      messages,
		Ledger:        ledger,
		Media:         media,
		AutoReply:     autoReply,
		FAQBot:        faqBot,
		Workflow:      wf,
		Emitter:       emitter,
	}
}

// bodyPreview computes the preview text by type (§4.4 step 2).
func bodyPreview(in InboundMessage) string {
	switch in.MsgType {
	case MsgTypeText:
		return in.Body
	case MsgTypeMedia:
		return "[media]"
	default:
		return "[" + string(in.MsgType) + "]"
	}
}

// Ingest runs the full per-message pipeline. w may be nil's counterpart
// never happens here: an unrouted message never reaches the ingestor
// (the dispatcher no-ops before calling in), so w is always non-nil.
func (ig *Ingestor) Ingest(ctx context.Context, w *tenant.Workspace, in InboundMessage) error {
	c, err := ig.Contacts.FindOrCreate(ctx, w.ID, in.From, "Unknown")
	if err != nil {
		return fmt.Errorf("messaging: ingest find contact: %w", err)
	}

	preview := bodyPreview(in)

	// Step 3: opt-out/opt-in keyword short-circuit.
	if in.MsgType == MsgTypeText {
		switch replyengine.DetectOptTransition(in.Body) {
		case replyengine.OptOutTransition:
			return ig.applyOptTransition(ctx, w, c, in, false, "Contact opted out")
		case replyengine.OptInTransition:
			return ig.applyOptTransition(ctx, w, c, in, true, "Contact opted in")
		}
	}

	conv, err := ig.Conversations.FindOrCreate(ctx, w.ID, c.ID, conversation.TypeCustomerInitiated)
	if err != nil {
		return fmt.Errorf("messaging: ingest find conversation: %w", err)
	}
	now := time.Now().UTC()
	if err := ig.Conversations.ReopenOnInbound(ctx, w.ID, conv.ID, preview, string(in.MsgType), now); err != nil {
		return fmt.Errorf("messaging: reopen conversation: %w", err)
	}
	if err := ig.Conversations.IncrementUnread(ctx, w.ID, conv.ID, "agent"); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to increment unread counter")
	}

	mediaID := in.MediaID
	if in.MediaID != "" && ig.Media != nil {
		storedPath, _, err := ig.Media.Fetch(ctx, w.ID.String(), in.MediaID)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("media_id", in.MediaID).Msg("media fetch failed, keeping provider-origin reference")
		} else {
			mediaID = storedPath
		}
	}

	receivedAt := now
	if in.Timestamp != nil {
		receivedAt = *in.Timestamp
	}
	msg, err := ig.Messages.Insert(ctx, &Message{
		WorkspaceID:       w.ID,
		ConversationID:    conv.ID,
		ContactID:         c.ID,
		ProviderMessageID: in.ProviderMessageID,
		Direction:         DirectionInbound,
		MsgType:           in.MsgType,
		Body:              in.Body,
		Status:            StatusReceived,
		MediaID:           mediaID,
		MediaMIME:         in.MediaMIME,
		MediaSHA256:       in.MediaSHA256,
		ReceivedAt:        &receivedAt,
		RawMeta:           map[string]any{"providerMessageId": in.ProviderMessageID, "timestamp": in.Timestamp, "raw": in.Raw},
	})
	if err != nil {
		return fmt.Errorf("messaging: persist inbound message: %w", err)
	}

	if err := ig.Ledger.Append(ctx, LedgerEntry{
		WorkspaceID:    w.ID,
		ConversationID: &conv.ID,
		ContactID:      &c.ID,
		Direction:      DirectionInbound,
		Billable:       true,
	}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to append usage ledger entry")
	}

	ig.runReplyCascade(ctx, w, c, conv, in)

	if ig.Emitter != nil {
		_ = ig.Emitter.Emit(ctx, Event{
			Kind:        EventMessageReceived,
			WorkspaceID: w.ID,
			Payload:     map[string]any{"messageId": msg.ID, "conversationId": conv.ID},
		})
	}
	return nil
}

func (ig *Ingestor) applyOptTransition(ctx context.Context, w *tenant.Workspace, c *contact.Contact, in InboundMessage, optedIn bool, systemBody string) error {
	source := contact.OptSourceKeyword
	if err := ig.Contacts.SetOptStatus(ctx, w.ID, c.ID, optedIn, source); err != nil {
		return fmt.Errorf("messaging: apply opt transition: %w", err)
	}
	conv, err := ig.Conversations.FindOrCreate(ctx, w.ID, c.ID, conversation.TypeCustomerInitiated)
	if err != nil {
		return fmt.Errorf("messaging: opt transition find conversation: %w", err)
	}
	now := time.Now().UTC()
	if _, err := ig.Messages.Insert(ctx, &Message{
		WorkspaceID:    w.ID,
		ConversationID: conv.ID,
		ContactID:      c.ID,
		Direction:      DirectionInbound,
		MsgType:        MsgTypeSystem,
		Body:           systemBody,
		Status:         StatusReceived,
		ReceivedAt:     &now,
	}); err != nil {
		return fmt.Errorf("messaging: persist opt transition message: %w", err)
	}
	// Per §4.4 step 3 and the testable property in §8: an opt transition
	// never continues into the reply cascade or workflow dispatch.
	return nil
}

func (ig *Ingestor) runReplyCascade(ctx context.Context, w *tenant.Workspace, c *contact.Contact, conv *conversation.Conversation, in InboundMessage) {
	if in.MsgType != MsgTypeText || in.Body == "" {
		return
	}

	if ig.AutoReply != nil {
		sent, err := ig.AutoReply.Try(ctx, w.ID, c.ID, c.Phone, in.Body)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("auto-reply match failed")
		} else if sent {
			return
		}
	}

	if ig.FAQBot != nil {
		sent, err := ig.FAQBot.Try(ctx, w.ID, conv.ID, c.ID, c.Phone, in.Body)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("faq bot match failed")
		} else if sent {
			return
		}
	}

	if ig.Workflow != nil {
		if err := ig.Workflow.Notify(ctx, "message_received", map[string]any{"contactId": c.ID, "conversationId": conv.ID}); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("workflow notify failed")
		}
	}
}
