package outbound

import "fmt"

// ErrorKind enumerates the typed validation/policy/limit error kinds from
// spec §7 that the outbound pipeline can fail with.
type ErrorKind string

const (
	ErrTemplateNotFound         ErrorKind = "TEMPLATE_NOT_FOUND"
	ErrTemplateNotApproved      ErrorKind = "TEMPLATE_NOT_APPROVED"
	ErrTemplateOwnershipMismatch ErrorKind = "TEMPLATE_OWNERSHIP_MISMATCH"
	ErrVariableCountMismatch    ErrorKind = "VARIABLE_COUNT_MISMATCH"
	ErrMissingRequiredVariables ErrorKind = "MISSING_REQUIRED_VARIABLES"
	ErrInvalidRecipient         ErrorKind = "INVALID_RECIPIENT"

	ErrOptedOut           ErrorKind = "OPTED_OUT"
	ErrBillingTrialNoSend ErrorKind = "BILLING_TRIAL_NO_SEND"
	ErrBillingPastDue     ErrorKind = "BILLING_PAST_DUE"
	ErrBillingSuspended   ErrorKind = "BILLING_SUSPENDED"
	ErrPhoneBanned        ErrorKind = "PHONE_BANNED"
	ErrPhoneDisconnected  ErrorKind = "PHONE_DISCONNECTED"
	ErrPhoneRateLimited   ErrorKind = "PHONE_RATE_LIMITED"

	ErrWorkspaceNotConfigured ErrorKind = "WORKSPACE_NOT_CONFIGURED"
	ErrPhoneNotConfigured     ErrorKind = "PHONE_NOT_CONFIGURED"
)

// Error is the structured send error surfaced to API callers (§7). Unlike
// a plain sentinel string, callers can inspect Kind and RetryAfterSeconds
// programmatically via errors.As.
type Error struct {
	Kind              ErrorKind
	Message           string
	RetryAfterSeconds int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("outbound: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("outbound: %s", e.Kind)
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}
