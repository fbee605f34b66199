package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaywave/bsp-gateway/internal/cache"
	"github.com/relaywave/bsp-gateway/internal/tenant"
)

// Limiter enforces the four simultaneous workspace limits plus the
// API-requests/minute perimeter limit. Burst and per-minute counters use
// fixed-window keys via Store.Incr with a TTL set on first increment —
// the window-truncated-key + Incr + set-TTL-on-count==1 idiom. Daily and
// monthly limits check the workspace's materialized usage counters
// instead of separate windowed keys, as §4.8 requires.
type Limiter struct {
	Store cache.Store
}

func NewLimiter(store cache.Store) *Limiter {
	return &Limiter{Store: store}
}

// Budget reports the remaining allowance for the message-send limits.
// CheckMessageSend returns it only on success (a rejection returns a zero
// Budget) and never fills TemplateRemaining; outbound.Sender logs it and
// does not include it in the send response.
type Budget struct {
	BurstRemaining    int
	DailyRemaining    int
	MonthlyRemaining  int
	TemplateRemaining int
}

// CheckMessageSend enforces burst, daily, and monthly message limits for
// an outbound send, returning the remaining budget on success.
func (l *Limiter) CheckMessageSend(ctx context.Context, w *tenant.Workspace) (Budget, error) {
	limits := ResolveLimits(w)

	if w.PhoneHealth == tenant.PhoneHealthRateLimited {
		return Budget{}, &Error{Kind: ErrPhoneRateLimited, RetryAfterSeconds: 3600}
	}

	burstCount, err := l.incrFixedWindow(ctx, burstKey(w.ID), time.Second)
	if err != nil {
		return Budget{}, err
	}
	if burstCount > int64(limits.BurstPerSecond) {
		return Budget{}, &Error{Kind: ErrRateLimitExceeded, Limit: limits.BurstPerSecond, RetryAfterSeconds: 1}
	}

	dailyUsed := w.MessagesToday
	if !sameDay(w.UsageDay, time.Now().UTC()) {
		dailyUsed = 0
	}
	if dailyUsed >= limits.MessagesPerDay {
		return Budget{}, &Error{Kind: ErrDailyLimitExceeded, Limit: limits.MessagesPerDay, RetryAfterSeconds: secondsUntilMidnightUTC()}
	}

	monthlyUsed := w.MessagesMonth
	if !sameMonth(w.UsageMonth, time.Now().UTC()) {
		monthlyUsed = 0
	}
	if monthlyUsed >= limits.MessagesPerMonth {
		return Budget{}, &Error{Kind: ErrMonthlyLimitExceeded, Limit: limits.MessagesPerMonth, RetryAfterSeconds: secondsUntilMonthBoundaryUTC()}
	}

	return Budget{
		BurstRemaining:   limits.BurstPerSecond - int(burstCount),
		DailyRemaining:   limits.MessagesPerDay - dailyUsed - 1,
		MonthlyRemaining: limits.MessagesPerMonth - monthlyUsed - 1,
	}, nil
}

// CheckTemplateSubmission enforces the daily template-submissions limit.
func (l *Limiter) CheckTemplateSubmission(ctx context.Context, w *tenant.Workspace) error {
	limits := ResolveLimits(w)
	used := w.TemplateSubmissionsToday
	if !sameDay(w.UsageDay, time.Now().UTC()) {
		used = 0
	}
	if used >= limits.TemplateSubmissionsDay {
		return &Error{Kind: ErrTemplateLimitExceeded, Limit: limits.TemplateSubmissionsDay, RetryAfterSeconds: secondsUntilMidnightUTC()}
	}
	return nil
}

// CheckAPIRequest enforces the API-requests/minute limit over a fixed
// one-minute window,
// independent of message sends (applies to every tenant-scoped API call).
func (l *Limiter) CheckAPIRequest(ctx context.Context, w *tenant.Workspace) error {
	limits := ResolveLimits(w)
	count, err := l.incrFixedWindow(ctx, apiKey(w.ID), time.Minute)
	if err != nil {
		return err
	}
	if count > int64(limits.APIRequestsPerMinute) {
		return &Error{Kind: ErrRateLimitExceeded, Limit: limits.APIRequestsPerMinute, RetryAfterSeconds: 60}
	}
	return nil
}

func (l *Limiter) incrFixedWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := l.Store.Incr(ctx, key, 1)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if n == 1 {
		// Sweep counter entries older than twice the window (§4.8).
		if err := l.Store.Expire(ctx, key, 2*window); err != nil {
			return 0, fmt.Errorf("ratelimit: set expiry: %w", err)
		}
	}
	return n, nil
}

func burstKey(workspaceID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:burst:%s:%d", workspaceID, time.Now().UTC().Unix())
}

func apiKey(workspaceID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:api:%s:%d", workspaceID, time.Now().UTC().Unix()/60)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}

func secondsUntilMidnightUTC() int {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return int(midnight.Sub(now).Seconds())
}

func secondsUntilMonthBoundaryUTC() int {
	now := time.Now().UTC()
	firstOfNextMonth := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return int(firstOfNextMonth.Sub(now).Seconds())
}
