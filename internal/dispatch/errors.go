package dispatch

import "errors"

// RetryableError marks a handler failure as transient: the dispatcher
// retries it with backoff. Anything else (bad payload, unknown tenant for
// a routable event) is recorded and dropped without retry, per §4.2's
// queue contract.
type RetryableError struct {
	Err error
}

func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

func isRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
