package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Job is the unit of work handed to the queue after admission: the raw
// body plus its signature header, so the dispatcher can re-verify nothing
// (verification already happened) but retains everything a handler needs.
// Field names mirror §4.2's queue contract ({body, signatureHeader}).
type Job struct {
	Body            []byte
	SignatureHeader string
	DeliveryID      string
	EventType       string
	PhoneID         string
	WorkspaceID     *uuid.UUID
	LogID           uuid.UUID
}

// Queue is the producer-side contract the ingress handler enqueues onto.
// Defined here (not in internal/dispatch) so internal/dispatch can import
// internal/webhook for its Repo/Log types without creating an import
// cycle back the other way.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

const (
	deliveryIDHeader   = "X-BSP-Delivery-Id"
	signatureHeaderKey = "X-Hub-Signature-256"
)

// Handler serves the single provider webhook endpoint shared by every
// tenant.
type Handler struct {
	AppSecret                 string
	VerifyToken               string
	SkipSignatureVerification bool // must only be honored when !Production
	Production                bool

	Replay *ReplayGuard
	Logs   *Repo
	Queue  Queue
}

// Verify implements the provider's subscription handshake: GET with
// hub.mode/hub.verify_token/hub.challenge query params.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != h.VerifyToken {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// Handle runs the admission pipeline (§4.1.1-5) and always responds 200
// once admitted, so the provider never retries on a local bug downstream.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get(signatureHeaderKey)
	if err := h.verifySignature(body, sigHeader); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Str("kind", classifySigError(err)).Msg("webhook signature rejected")
		if _, isConfigErr := err.(*configError); isConfigErr {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	deliveryID := r.Header.Get(deliveryIDHeader)
	if !h.Replay.Admit(r.Context(), deliveryID) {
		log.Ctx(r.Context()).Warn().Str("delivery_id", deliveryID).Msg("webhook replay rejected")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	eventType, phoneID := peekEnvelope(body)

	// Acknowledge immediately; everything past this point is asynchronous
	// and must never hold the provider connection open.
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("EVENT_RECEIVED"))

	go h.processAsync(body, sigHeader, deliveryID, eventType, phoneID)
}

func (h *Handler) processAsync(body []byte, sigHeader, deliveryID, eventType, phoneID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logID, err := h.Logs.Insert(ctx, &Log{
		DeliveryID: deliveryID,
		EventType:  eventType,
		PhoneID:    phoneID,
		BSPRouted:  true,
		Verified:   true,
		Payload:    redactedJSON(body),
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to persist webhook log")
		return
	}

	job := Job{
		Body:            body,
		SignatureHeader: sigHeader,
		DeliveryID:      deliveryID,
		EventType:       eventType,
		PhoneID:         phoneID,
		LogID:           logID,
	}
	if err := h.Queue.Enqueue(ctx, job); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to enqueue webhook job")
		_ = h.Logs.MarkResult(ctx, logID, false, err)
	}
}

func (h *Handler) verifySignature(body []byte, header string) error {
	if h.AppSecret == "" {
		if h.Production {
			return errConfigError
		}
		log.Warn().Msg("APP_SECRET not configured; admitting webhook unverified (non-production only)")
		return nil
	}
	if h.SkipSignatureVerification && !h.Production {
		return nil
	}
	return VerifySignature(body, header, h.AppSecret)
}

var errConfigError = &configError{}

type configError struct{}

func (*configError) Error() string { return "webhook: app secret not configured" }

func classifySigError(err error) string {
	switch err {
	case ErrMissingSignature:
		return "MISSING_SIGNATURE"
	case ErrInvalidSignature:
		return "INVALID_SIGNATURE"
	default:
		return "CONFIG_ERROR"
	}
}

// peekEnvelope extracts just enough of the WhatsApp Cloud API envelope
// shape to label a log row; deep, typed classification of the change
// object happens in internal/dispatch/classify.go once the job is pulled
// off the queue, not here.
func peekEnvelope(body []byte) (eventType, phoneID string) {
	var env struct {
		Entry []struct {
			Changes []struct {
				Field string `json:"field"`
				Value struct {
					Metadata struct {
						PhoneNumberID string `json:"phone_number_id"`
					} `json:"metadata"`
				} `json:"value"`
			} `json:"changes"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "unknown", ""
	}
	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 {
		return "unknown", ""
	}
	c := env.Entry[0].Changes[0]
	return c.Field, c.Value.Metadata.PhoneNumberID
}

func redactedJSON(body []byte) json.RawMessage {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return json.RawMessage(`{"unparseable":true}`)
	}
	out, err := json.Marshal(RedactPayload(v))
	if err != nil {
		return json.RawMessage(`{"unparseable":true}`)
	}
	return out
}
