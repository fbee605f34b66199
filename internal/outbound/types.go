package outbound

import "github.com/google/uuid"

// Variables carries the positional values the template's placeholders are
// filled with, grouped by the component they apply to.
type Variables struct {
	Header      []string `json:"header,omitempty"`
	Body        []string `json:"body,omitempty"`
	Buttons     []string `json:"buttons,omitempty"`
	HeaderMedia string   `json:"headerMedia,omitempty"`
	OTP         string   `json:"otp,omitempty"`
}

// SendTemplateRequest is the outer request shape validated with struct
// tags before the domain-specific pipeline (§4.7) runs.
type SendTemplateRequest struct {
	WorkspaceID  uuid.UUID  `validate:"required"`
	TemplateID   *uuid.UUID `validate:"required_without=TemplateName"`
	TemplateName string     `validate:"required_without=TemplateID"`
	To           string     `validate:"required"`
	Variables    Variables
	ContactID    *uuid.UUID
	CampaignID   *uuid.UUID
	Meta         map[string]any
}

// SendTemplateResult is returned on a successful send.
type SendTemplateResult struct {
	MessageID         uuid.UUID
	ProviderMessageID string
}

// BulkSendResult captures a single recipient's outcome within a bulk send.
type BulkSendResult struct {
	To      string
	Result  *SendTemplateResult
	Err     error
}
