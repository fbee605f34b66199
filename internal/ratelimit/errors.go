package ratelimit

import "fmt"

type ErrorKind string

const (
	ErrRateLimitExceeded  ErrorKind = "RATE_LIMIT_EXCEEDED"
	ErrDailyLimitExceeded ErrorKind = "DAILY_LIMIT_EXCEEDED"
	ErrMonthlyLimitExceeded ErrorKind = "MONTHLY_LIMIT_EXCEEDED"
	ErrTemplateLimitExceeded ErrorKind = "TEMPLATE_LIMIT_EXCEEDED"
	ErrPhoneRateLimited   ErrorKind = "PHONE_RATE_LIMITED"
)

// Error carries the limit kind, the limit value, and how long the caller
// should wait before retrying (§7).
type Error struct {
	Kind              ErrorKind
	Limit             int
	RetryAfterSeconds int
}

func (e *Error) Error() string {
	return fmt.Sprintf("ratelimit: %s (limit %d, retry after %ds)", e.Kind, e.Limit, e.RetryAfterSeconds)
}
