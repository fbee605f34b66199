package dispatch

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryable_NilReturnsNil(t *testing.T) {
	if Retryable(nil) != nil {
		t.Fatal("Retryable(nil) should return nil")
	}
}

func TestRetryable_WrapsAndUnwraps(t *testing.T) {
	base := errors.New("transient failure")
	wrapped := Retryable(base)

	if wrapped.Error() != base.Error() {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), base.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected errors.Is to unwrap to the base error")
	}
}

func TestIsRetryable_TrueForWrappedError(t *testing.T) {
	err := Retryable(errors.New("boom"))
	if !isRetryable(err) {
		t.Error("expected isRetryable to be true for a Retryable-wrapped error")
	}
}

func TestIsRetryable_FalseForPlainError(t *testing.T) {
	if isRetryable(errors.New("plain")) {
		t.Error("expected isRetryable to be false for a non-wrapped error")
	}
}

func TestIsRetryable_TrueWhenWrappedFurther(t *testing.T) {
	err := fmt.Errorf("context: %w", Retryable(errors.New("boom")))
	if !isRetryable(err) {
		t.Error("expected isRetryable to see through additional fmt.Errorf wrapping")
	}
}
