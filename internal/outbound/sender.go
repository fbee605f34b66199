// Package outbound implements the tenant-safe template send pipeline
// (spec §4.7): normalize recipient, enforce tenant/billing/phone policy,
// validate the template and its variables, apply rate limits, build the
// provider payload, send, and persist the result.
package outbound

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/contact"
	"github.com/relaywave/bsp-gateway/internal/conversation"
	"github.com/relaywave/bsp-gateway/internal/messaging"
	"github.com/relaywave/bsp-gateway/internal/provider"
	"github.com/relaywave/bsp-gateway/internal/ratelimit"
	"github.com/relaywave/bsp-gateway/internal/template"
	"github.com/relaywave/bsp-gateway/internal/tenant"
)

var validate = validator.New()

// WorkspaceLoader resolves a workspace by id, implemented by
// internal/tenant.Repo.
type WorkspaceLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Workspace, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

// OptOutChecker reports whether a contact or phone number has opted out,
// implemented by internal/contact.Repo.
type OptOutChecker interface {
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*contact.Contact, error)
	GetByPhone(ctx context.Context, workspaceID uuid.UUID, phone string) (*contact.Contact, error)
	FindOrCreate(ctx context.Context, workspaceID uuid.UUID, phone, displayName string) (*contact.Contact, error)
}

// TemplateLoader resolves a template by id or (workspace, name),
// implemented by internal/template.Repo.
type TemplateLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*template.Template, error)
	GetByWorkspaceName(ctx context.Context, workspaceID uuid.UUID, name string) (*template.Template, error)
}

// ConversationUpserter opens or reuses the conversation for a contact,
// implemented by internal/conversation.Repo.
type ConversationUpserter interface {
	FindOrCreate(ctx context.Context, workspaceID, contactID uuid.UUID, convType conversation.Type) (*conversation.Conversation, error)
	RecordOutboundActivity(ctx context.Context, workspaceID, id uuid.UUID, preview, msgType string, at time.Time) error
}

// ProviderSender sends the built payload to the provider, implemented by
// internal/provider.Client.
type ProviderSender interface {
	SendMessage(ctx context.Context, phoneNumberID string, payload any) (*provider.SendMessagesResponse, error)
}

// Sender implements the §4.7 pipeline.
type Sender struct {
	Workspace     WorkspaceLoader
	Contacts      OptOutChecker
	Conversations ConversationUpserter
	Templates     TemplateLoader
	Limiter       *ratelimit.Limiter
	Provider      ProviderSender
	Messages      *messaging.Repo
	Ledger        *messaging.LedgerRepo
	Emitter       messaging.Emitter

	DefaultCountryCode string
}

// Send runs the full pipeline for a single recipient.
func (s *Sender) Send(ctx context.Context, req SendTemplateRequest) (*SendTemplateResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, newError(ErrInvalidRecipient, err.Error())
	}

	to, err := NormalizeRecipient(req.To, s.DefaultCountryCode)
	if err != nil {
		return nil, err
	}

	w, err := s.Workspace.GetByID(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if w == nil || !w.Connected() {
		return nil, newError(ErrWorkspaceNotConfigured, "workspace is not connected to a phone number")
	}
	if err := checkPhoneHealth(w); err != nil {
		return nil, err
	}
	if err := checkBilling(w); err != nil {
		return nil, err
	}

	if err := s.checkOptOut(ctx, req.WorkspaceID, req.ContactID, to); err != nil {
		return nil, err
	}

	tpl, err := s.loadTemplate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !tpl.OwnedBy(req.WorkspaceID) {
		return nil, newError(ErrTemplateOwnershipMismatch, "template belongs to a different workspace")
	}
	if tpl.Status != template.StatusApproved {
		return nil, newError(ErrTemplateNotApproved, "template status is "+string(tpl.Status))
	}

	if err := ValidateVariableArity(tpl, req.Variables); err != nil {
		return nil, err
	}

	budget, err := s.Limiter.CheckMessageSend(ctx, w)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().Interface("budget", budget).Msg("rate limit budget")

	providerName := provider.TemplateNamespace(req.WorkspaceID, tpl.Name)
	payload := BuildProviderPayload(providerName, tpl.Language, to, tpl, req.Variables)

	resp, err := s.Provider.SendMessage(ctx, w.PhoneNumberID, payload)
	if err != nil {
		return nil, err
	}
	var providerMessageID string
	if len(resp.Messages) > 0 {
		providerMessageID = resp.Messages[0].ID
	}

	c, err := s.Contacts.FindOrCreate(ctx, req.WorkspaceID, to, "Unknown")
	if err != nil {
		return nil, err
	}
	conv, err := s.Conversations.FindOrCreate(ctx, req.WorkspaceID, c.ID, conversation.TypeBusinessInitiated)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg, err := s.Messages.Insert(ctx, &messaging.Message{
		WorkspaceID:       req.WorkspaceID,
		ConversationID:    conv.ID,
		ContactID:         c.ID,
		ProviderMessageID: providerMessageID,
		Direction:         messaging.DirectionOutbound,
		MsgType:           messaging.MsgTypeTemplate,
		Status:            messaging.StatusSent,
		TemplateName:      tpl.Name,
		TemplateCategory:  string(tpl.Category),
		TemplateLanguage:  tpl.Language,
		CampaignID:        req.CampaignID,
		SentAt:            &now,
	})
	if err != nil {
		return nil, fmt.Errorf("outbound: persist message: %w", err)
	}

	if err := s.Conversations.RecordOutboundActivity(ctx, req.WorkspaceID, conv.ID, "[template] "+tpl.Name, string(messaging.MsgTypeTemplate), now); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to record outbound conversation activity")
	}

	if err := s.Ledger.Append(ctx, messaging.LedgerEntry{
		WorkspaceID:      req.WorkspaceID,
		ConversationID:   &conv.ID,
		ContactID:        &c.ID,
		Direction:        messaging.DirectionOutbound,
		TemplateCategory: string(tpl.Category),
		Billable:         true,
	}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to append usage ledger entry")
	}

	if err := s.Workspace.IncrementUsage(ctx, req.WorkspaceID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to increment workspace usage counters")
	}

	if s.Emitter != nil {
		_ = s.Emitter.Emit(ctx, messaging.Event{
			Kind:        messaging.EventMessageStatus,
			WorkspaceID: req.WorkspaceID,
			Payload:     map[string]any{"messageId": msg.ID, "status": messaging.StatusSent},
		})
	}

	return &SendTemplateResult{MessageID: msg.ID, ProviderMessageID: providerMessageID}, nil
}

// SendBulk runs the full Send pipeline for every recipient in turn, with a
// small inter-call pacing delay, collecting per-recipient outcomes (§4.7
// "Bulk send"). The template is not validated once up front: each Send
// call loads and validates it again.
func (s *Sender) SendBulk(ctx context.Context, base SendTemplateRequest, recipients []string, pace time.Duration) []BulkSendResult {
	results := make([]BulkSendResult, 0, len(recipients))
	for i, to := range recipients {
		req := base
		req.To = to
		res, err := s.Send(ctx, req)
		results = append(results, BulkSendResult{To: to, Result: res, Err: err})
		if i < len(recipients)-1 && pace > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(pace):
			}
		}
	}
	return results
}

func (s *Sender) loadTemplate(ctx context.Context, req SendTemplateRequest) (*template.Template, error) {
	if req.TemplateID != nil {
		tpl, err := s.Templates.GetByID(ctx, *req.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, newError(ErrTemplateNotFound, "template id not found")
		}
		return tpl, nil
	}
	tpl, err := s.Templates.GetByWorkspaceName(ctx, req.WorkspaceID, req.TemplateName)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, newError(ErrTemplateNotFound, "template name not found")
	}
	return tpl, nil
}

func (s *Sender) checkOptOut(ctx context.Context, workspaceID uuid.UUID, contactID *uuid.UUID, phone string) error {
	var c *contact.Contact
	var err error
	if contactID != nil {
		c, err = s.Contacts.GetByID(ctx, workspaceID, *contactID)
	} else {
		c, err = s.Contacts.GetByPhone(ctx, workspaceID, phone)
	}
	if err != nil {
		return err
	}
	if c != nil && !c.OptedIn {
		return newError(ErrOptedOut, "contact has opted out")
	}
	return nil
}

func checkPhoneHealth(w *tenant.Workspace) error {
	switch w.PhoneHealth {
	case tenant.PhoneHealthConnected:
		return nil
	case tenant.PhoneHealthRestricted, tenant.PhoneHealthFlagged:
		return newError(ErrPhoneDisconnected, "phone permits read only in its current health state")
	case tenant.PhoneHealthBanned:
		return newError(ErrPhoneBanned, "phone is banned")
	case tenant.PhoneHealthRateLimited:
		return newError(ErrPhoneRateLimited, "phone is rate limited")
	default: // PENDING, DISCONNECTED
		return newError(ErrPhoneDisconnected, "phone is not connected")
	}
}

func checkBilling(w *tenant.Workspace) error {
	switch w.BillingStatus {
	case tenant.BillingTrialing:
		if !w.TrialAllowsSending {
			return newError(ErrBillingTrialNoSend, "trial does not allow sending")
		}
	case tenant.BillingPastDue:
		return newError(ErrBillingPastDue, "billing is past due")
	case tenant.BillingSuspended:
		return newError(ErrBillingSuspended, "billing is suspended")
	}
	return nil
}
