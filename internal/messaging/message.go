// Package messaging owns the Message entity: inbound/outbound records,
// status application, the usage ledger, and workspace-scoped realtime
// event emission.
package messaging

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MsgType string

const (
	MsgTypeText     MsgType = "text"
	MsgTypeTemplate MsgType = "template"
	MsgTypeMedia    MsgType = "media"
	MsgTypeSystem   MsgType = "system"
	MsgTypeUnknown  MsgType = "unknown"
)

type Status string

const (
	StatusReceived Status = "received"
	StatusQueued   Status = "queued"
	StatusSending  Status = "sending"
	StatusSent     Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead     Status = "read"
	StatusFailed   Status = "failed"
)

type Message struct {
	ID                uuid.UUID
	WorkspaceID       uuid.UUID
	ConversationID    uuid.UUID
	ContactID         uuid.UUID
	ProviderMessageID string
	Direction         Direction
	MsgType           MsgType
	Body              string
	Status            Status
	TemplateName      string
	TemplateCategory  string
	TemplateLanguage  string
	CampaignID        *uuid.UUID
	MediaID           string
	MediaMIME         string
	MediaSHA256       string
	FailureReason     string
	QueuedAt          *time.Time
	SendingAt         *time.Time
	SentAt            *time.Time
	DeliveredAt       *time.Time
	ReadAt            *time.Time
	FailedAt          *time.Time
	ReceivedAt        *time.Time
	RawMeta           map[string]any
	CreatedAt         time.Time
}
