package provider

import "fmt"

// ErrorKind enumerates the typed upstream error kinds from spec §6.1/§7.
type ErrorKind string

const (
	ErrTokenExpired ErrorKind = "TOKEN_EXPIRED"
	ErrAPIError     ErrorKind = "META_API_ERROR"
)

// Error wraps a provider API failure with its typed kind and the
// provider's own error code/message, so callers can errors.As into it
// instead of string-matching.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s (code %d): %s", e.Kind, e.Code, e.Message)
}

// classify maps an HTTP status and the provider's own error code to a
// typed Error, per §6.1: "401 or error code 190 -> TOKEN_EXPIRED;
// otherwise provider error code and message surface as a structured send
// error."
func classify(httpStatus, providerCode int, message string) *Error {
	if httpStatus == 401 || providerCode == 190 {
		return &Error{Kind: ErrTokenExpired, Code: providerCode, Message: message}
	}
	return &Error{Kind: ErrAPIError, Code: providerCode, Message: message}
}
