package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/auth"
	"github.com/relaywave/bsp-gateway/internal/killswitch"
	"github.com/relaywave/bsp-gateway/internal/outbound"
	"github.com/relaywave/bsp-gateway/internal/pagex"
	"github.com/relaywave/bsp-gateway/internal/ratelimit"
	"github.com/relaywave/bsp-gateway/internal/template"
	"github.com/relaywave/bsp-gateway/internal/tenant"
	"github.com/relaywave/bsp-gateway/internal/webhook"
)

// WebhookLogLister is the subset of webhook.Repo the admin audit endpoint
// needs: a keyset-paginated, workspace-scoped view of admitted deliveries.
type WebhookLogLister interface {
	List(ctx context.Context, workspaceID uuid.UUID, after pagex.Cursor, limit int) ([]webhook.Log, pagex.Cursor, error)
}

// Workspaces is the subset of tenant.Repo the admin campaign-safety
// endpoint needs.
type Workspaces interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Workspace, error)
}

// HealthReactor is the subset of killswitch.Reactor the admin surface
// drives (kill-switch activate/deactivate, campaign safety query).
type HealthReactor interface {
	ActivateGlobal(ctx context.Context, reason, actor string) error
	DeactivateGlobal(ctx context.Context, actor string) error
	IsWorkspaceSafeForCampaigns(ctx context.Context, w *tenant.Workspace) (killswitch.SafetyCheck, error)
}

// TemplateSubmitter runs the §4.6 template-submission pipeline,
// implemented by internal/template.Submitter.
type TemplateSubmitter interface {
	Submit(ctx context.Context, req template.SubmitRequest) (*template.Template, error)
}

// PhoneReassigner moves a provider phone_number_id to a new workspace,
// implemented by internal/tenant.Repo.
type PhoneReassigner interface {
	ReassignPhoneNumber(ctx context.Context, phoneID string, newWorkspaceID uuid.UUID) error
}

// PhoneCacheInvalidator drops a phone_number_id from the router cache,
// implemented by internal/tenant.PhoneWorkspaceCache.
type PhoneCacheInvalidator interface {
	Invalidate(phoneID string)
}

// Server holds the dependencies for every HTTP handler the gateway
// exposes: provider webhook ingress, the tenant-scoped outbound send API,
// and the admin kill-switch surface (§1-2).
type Server struct {
	Webhook *webhook.Handler

	Sender *outbound.Sender

	Workspaces Workspaces
	KillSwitch HealthReactor
	WebhookLogs WebhookLogLister
	Templates  TemplateSubmitter
	Phones     PhoneReassigner
	PhoneCache PhoneCacheInvalidator

	JWTCfg        auth.JWTCfg
	SendRateLimit RateLimitInfo // perimeter limiter in front of the send API group
}

// DefaultSendRateLimit is the perimeter rate limit applied to the outbound
// send API group, ahead of internal/ratelimit's per-workspace domain
// limits (§4.8).
var DefaultSendRateLimit = RateLimitInfo{
	WindowSeconds: 60,
	MaxRequests:   600,
	Burst:         120,
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// errorResponse represents a standardized error response with correlation ID
type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

// writeError writes an error response with correlation ID from context
func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	correlationID := GetCorrelationID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{
		Error:         message,
		CorrelationID: correlationID,
	})
}

// parseLimit parses a limit query param with default and max
func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// Routes builds the gateway's full HTTP surface: an unauthenticated
// webhook ingress, a rate-limited tenant send API, and a JWT-protected
// admin kill-switch group.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Provider webhook ingress (§4.1): authenticated by HMAC signature and
	// the subscription verify token, not by this process's own auth layer.
	r.Get("/webhooks/provider", s.Webhook.Verify)
	r.Post("/webhooks/provider", s.Webhook.Handle)

	// Tenant-scoped outbound send API (§4.7). Authentication of the
	// calling user is an excluded external collaborator's responsibility
	// (§2 Non-goals); this group only applies a perimeter rate limit in
	// front of the domain limiter inside internal/ratelimit.
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.SendRateLimit))
		r.Use(APIRequestLimitMiddleware(s.Workspaces, s.Sender.Limiter))
		r.Post("/v1/workspaces/{workspaceId}/templates/send", s.SendTemplate)
		r.Post("/v1/workspaces/{workspaceId}/templates/send/bulk", s.SendTemplateBulk)
		r.Post("/v1/workspaces/{workspaceId}/templates", s.CreateTemplate)
	})

	// Admin kill-switch surface (§4.9) and tenant-management surface
	// (§4.3 phone reassignment). The only part of the gateway that
	// authenticates its own caller.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.JWTCfg))
		r.Post("/admin/kill-switch/global", s.ActivateGlobalKillSwitch)
		r.Delete("/admin/kill-switch/global", s.DeactivateGlobalKillSwitch)
		r.Get("/admin/workspaces/{workspaceId}/campaign-safety", s.CampaignSafety)
		r.Get("/admin/workspaces/{workspaceId}/webhook-logs", s.ListWebhookLogs)
		r.Post("/admin/workspaces/{workspaceId}/phone-number", s.ReassignPhoneNumber)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}

type sendTemplateReq struct {
	TemplateID   *uuid.UUID        `json:"templateId"`
	TemplateName string            `json:"templateName"`
	To           string            `json:"to"`
	Variables    outbound.Variables `json:"variables"`
	ContactID    *uuid.UUID        `json:"contactId"`
	CampaignID   *uuid.UUID        `json:"campaignId"`
}

func (s *Server) parseSendRequest(w http.ResponseWriter, r *http.Request) (outbound.SendTemplateRequest, bool) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid workspaceId")
		return outbound.SendTemplateRequest{}, false
	}
	var body sendTemplateReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return outbound.SendTemplateRequest{}, false
	}
	return outbound.SendTemplateRequest{
		WorkspaceID:  workspaceID,
		TemplateID:   body.TemplateID,
		TemplateName: body.TemplateName,
		To:           body.To,
		Variables:    body.Variables,
		ContactID:    body.ContactID,
		CampaignID:   body.CampaignID,
	}, true
}

// SendTemplate handles a single-recipient template send.
func (s *Server) SendTemplate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseSendRequest(w, r)
	if !ok {
		return
	}
	res, err := s.Sender.Send(r.Context(), req)
	if err != nil {
		writeSendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type sendTemplateBulkReq struct {
	sendTemplateReq
	Recipients []string `json:"recipients"`
	PaceMillis int      `json:"paceMillis"`
}

// SendTemplateBulk handles a multi-recipient template send, pacing calls
// per §4.7's bulk-send behavior.
func (s *Server) SendTemplateBulk(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid workspaceId")
		return
	}
	var body sendTemplateBulkReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Recipients) == 0 {
		writeError(w, r, http.StatusBadRequest, "recipients must not be empty")
		return
	}
	base := outbound.SendTemplateRequest{
		WorkspaceID:  workspaceID,
		TemplateID:   body.TemplateID,
		TemplateName: body.TemplateName,
		Variables:    body.Variables,
		ContactID:    body.ContactID,
		CampaignID:   body.CampaignID,
	}
	pace := time.Duration(body.PaceMillis) * time.Millisecond
	results := s.Sender.SendBulk(r.Context(), base, body.Recipients, pace)
	writeJSON(w, http.StatusOK, results)
}

func writeSendError(w http.ResponseWriter, r *http.Request, err error) {
	var rlErr *ratelimit.Error
	if errors.As(err, &rlErr) {
		if rlErr.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(rlErr.RetryAfterSeconds))
		}
		writeError(w, r, http.StatusTooManyRequests, rlErr.Error())
		return
	}

	var obErr *outbound.Error
	if errors.As(err, &obErr) {
		writeError(w, r, outboundErrorStatus(obErr.Kind), obErr.Error())
		return
	}

	log.Ctx(r.Context()).Error().Err(err).Msg("outbound send failed")
	writeError(w, r, http.StatusInternalServerError, "internal error")
}

func outboundErrorStatus(kind outbound.ErrorKind) int {
	switch kind {
	case outbound.ErrTemplateNotFound:
		return http.StatusNotFound
	case outbound.ErrInvalidRecipient, outbound.ErrVariableCountMismatch, outbound.ErrMissingRequiredVariables:
		return http.StatusBadRequest
	case outbound.ErrPhoneRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusUnprocessableEntity
	}
}

type killSwitchReq struct {
	Reason string `json:"reason"`
}

// ActivateGlobalKillSwitch implements the admin global kill-switch
// activation endpoint (§4.9 "Global switch").
func (s *Server) ActivateGlobalKillSwitch(w http.ResponseWriter, r *http.Request) {
	var body killSwitchReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	actor := auth.Subject(r.Context())
	if err := s.KillSwitch.ActivateGlobal(r.Context(), body.Reason, actor); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to activate global kill-switch")
		writeError(w, r, http.StatusInternalServerError, "failed to activate kill-switch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true})
}

// DeactivateGlobalKillSwitch turns the global kill-switch off. Paused
// campaigns are not auto-resumed (§4.9).
func (s *Server) DeactivateGlobalKillSwitch(w http.ResponseWriter, r *http.Request) {
	actor := auth.Subject(r.Context())
	if err := s.KillSwitch.DeactivateGlobal(r.Context(), actor); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to deactivate global kill-switch")
		writeError(w, r, http.StatusInternalServerError, "failed to deactivate kill-switch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": false})
}

// CampaignSafety implements the §4.9 isWorkspaceSafeForCampaigns query as
// an admin-facing endpoint.
func (s *Server) CampaignSafety(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid workspaceId")
		return
	}
	ws, err := s.Workspaces.GetByID(r.Context(), workspaceID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to load workspace")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if ws == nil {
		writeError(w, r, http.StatusNotFound, "workspace not found")
		return
	}
	check, err := s.KillSwitch.IsWorkspaceSafeForCampaigns(r.Context(), ws)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to evaluate campaign safety")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, check)
}

type webhookLogPage struct {
	Logs       []webhook.Log `json:"logs"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// ListWebhookLogs exposes the redacted webhook audit trail for a single
// workspace, keyset paginated via pagex.Cursor (§4.1, §6.4 retention).
func (s *Server) ListWebhookLogs(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid workspaceId")
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"), 50, 200)
	after, _ := pagex.Decode(r.URL.Query().Get("cursor"))

	logs, next, err := s.WebhookLogs.List(r.Context(), workspaceID, after, limit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to list webhook logs")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, webhookLogPage{Logs: logs, NextCursor: pagex.Encode(next)})
}

type createTemplateReq struct {
	Name               string              `json:"name"`
	Language           string              `json:"language"`
	Category           template.Category   `json:"category"`
	Components         []template.Component `json:"components"`
	OriginalTemplateID *uuid.UUID          `json:"originalTemplateId"`
}

// CreateTemplate implements the §4.6 template-submission endpoint: enforce
// the daily submission limit, persist the DRAFT row, and forward it to the
// provider under its namespaced name.
func (s *Server) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid workspaceId")
		return
	}
	var body createTemplateReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Name == "" || body.Language == "" {
		writeError(w, r, http.StatusBadRequest, "name and language are required")
		return
	}

	tpl, err := s.Templates.Submit(r.Context(), template.SubmitRequest{
		WorkspaceID:        workspaceID,
		Name:               body.Name,
		Language:           body.Language,
		Category:           body.Category,
		Components:         body.Components,
		OriginalTemplateID: body.OriginalTemplateID,
	})
	if err != nil {
		var rlErr *ratelimit.Error
		if errors.As(err, &rlErr) {
			if rlErr.RetryAfterSeconds > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(rlErr.RetryAfterSeconds))
			}
			writeError(w, r, http.StatusTooManyRequests, rlErr.Error())
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("template submission failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

type reassignPhoneReq struct {
	PhoneNumberID string `json:"phoneNumberId"`
}

// ReassignPhoneNumber implements the admin phone-porting endpoint (§4.3):
// it invalidates the router cache entry for the phone number before the
// reassignment commits, so that no in-flight request can resolve the old
// owner once the new owner is live in the database.
func (s *Server) ReassignPhoneNumber(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := uuid.Parse(chi.URLParam(r, "workspaceId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid workspaceId")
		return
	}
	var body reassignPhoneReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PhoneNumberID == "" {
		writeError(w, r, http.StatusBadRequest, "phoneNumberId is required")
		return
	}

	s.PhoneCache.Invalidate(body.PhoneNumberID)
	if err := s.Phones.ReassignPhoneNumber(r.Context(), body.PhoneNumberID, workspaceID); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to reassign phone number")
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaceId": workspaceID, "phoneNumberId": body.PhoneNumberID})
}
