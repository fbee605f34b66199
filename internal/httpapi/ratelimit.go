package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/ratelimit"
)

// ============================================================================
// Rate Limiting with Token Bucket Algorithm
// ============================================================================
//
// PATTERN: Per-workspace token bucket for smooth, fair rate limiting
//
// The token bucket algorithm allows:
// - Burst traffic up to capacity (good UX for interactive clients)
// - Smooth long-term rate limiting (no thundering herd at window boundaries)
// - Per-workspace fairness (one workspace can't starve others)
//
// This sits in front of the domain-specific limits internal/ratelimit
// enforces (burst/day/month/template/API-per-minute, §4.8); it is a coarse
// defense-in-depth perimeter, not a replacement for them.
//
// Configuration:
//   RateLimitInfo{
//     WindowSeconds: 60,   // 1 minute window
//     MaxRequests:   600,  // 600 requests per window
//     Burst:         120,  // Allow 120 request burst
//   }
//   => Refill rate: 600/60 = 10 tokens/second
//
// Production Note:
//   Current implementation uses in-memory map[workspaceID]*TokenBucket.
//   For distributed deployments, replace with a Redis-backed limiter
//   (internal/ratelimit already is one; this layer stays process-local by
//   design, since it is only a perimeter guard in front of that one).
// ============================================================================

// RateLimitInfo configures a token bucket rate limit: the bucket refills at
// MaxRequests per WindowSeconds and holds at most Burst tokens.
type RateLimitInfo struct {
	WindowSeconds int
	MaxRequests   int
	Burst         int
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket with given capacity and refill rate
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a token is available and consumes it if so
// Returns (allowed bool, tokensRemaining int, nextTokenTime time.Time, fullResetTime time.Time)
// - nextTokenTime: when the next token will be available (use for Retry-After)
// - fullResetTime: when the bucket will be completely full (use for X-RateLimit-Reset)
func (tb *TokenBucket) Allow() (bool, int, time.Time, time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// Refill tokens based on elapsed time
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	// Calculate full reset time (when bucket will be completely full)
	tokensNeeded := tb.capacity - tb.tokens
	fullResetTime := now.Add(time.Duration(tokensNeeded/tb.refillRate) * time.Second)

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		// Next token available immediately (we just consumed one but more available)
		return true, int(tb.tokens), now, fullResetTime
	}

	// Calculate when next token will be available (not when bucket is full)
	tokensUntilNext := 1.0 - tb.tokens
	secondsUntilNext := tokensUntilNext / tb.refillRate
	nextTokenTime := now.Add(time.Duration(secondsUntilNext) * time.Second)

	return false, 0, nextTokenTime, fullResetTime
}

// RateLimiter manages per-workspace token buckets
type RateLimiter struct {
	buckets map[string]*TokenBucket
	config  RateLimitInfo
	mu      sync.RWMutex
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config RateLimitInfo) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  config,
	}

	// Start cleanup goroutine to remove inactive buckets
	go rl.cleanupLoop()

	return rl
}

// getBucket retrieves or creates a token bucket for the given workspace
func (rl *RateLimiter) getBucket(workspaceID string) *TokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[workspaceID]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	// Create new bucket
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[workspaceID]; exists {
		return bucket
	}

	refillRate := float64(rl.config.MaxRequests) / float64(rl.config.WindowSeconds)
	bucket = NewTokenBucket(rl.config.Burst, refillRate)
	rl.buckets[workspaceID] = bucket
	return bucket
}

// Allow checks if the workspace is allowed to make a request
// Returns (allowed bool, remaining int, nextTokenTime time.Time, fullResetTime time.Time)
func (rl *RateLimiter) Allow(workspaceID string) (bool, int, time.Time, time.Time) {
	bucket := rl.getBucket(workspaceID)
	return bucket.Allow()
}

// cleanupLoop periodically removes inactive buckets to prevent memory leaks
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for workspaceID, bucket := range rl.buckets {
			bucket.mu.Lock()
			// Remove bucket if it hasn't been used in the last hour
			if time.Since(bucket.lastRefill) > time.Hour {
				delete(rl.buckets, workspaceID)
			}
			bucket.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// RateLimitMiddleware returns a middleware enforcing a coarse per-workspace
// request rate, keyed off the {workspaceId} chi URL param rather than an
// authenticated caller identity. Applied only to the outbound send API
// group as a perimeter layer in front of internal/ratelimit's domain
// limits (§4.8), which remain the authoritative per-workspace budget.
func RateLimitMiddleware(config RateLimitInfo) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			workspaceID := chi.URLParam(r, "workspaceId")
			if workspaceID == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, nextTokenTime, fullResetTime := limiter.Allow(workspaceID)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(fullResetTime.Unix(), 10))
			w.Header().Set("X-RateLimit-Burst", strconv.Itoa(config.Burst))

			if !allowed {
				retryAfter := int(time.Until(nextTokenTime).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn().
					Str("workspaceId", workspaceID).
					Str("path", r.URL.Path).
					Int("retryAfter", retryAfter).
					Msg("perimeter rate limit exceeded")

				writeError(w, r, http.StatusTooManyRequests,
					"Rate limit exceeded. Please retry after "+strconv.Itoa(retryAfter)+" seconds.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// APIRequestLimitMiddleware enforces internal/ratelimit's fixed one-minute
// API-requests/minute domain limit (§4.8), the one of the five simultaneous
// limits that applies to every tenant-scoped call rather than just sends.
// It sits behind RateLimitMiddleware in the send API group: that one is a
// process-local token-bucket perimeter guard with no plan awareness, this one needs the
// workspace's plan-tier overrides, so it loads the workspace once per
// request.
func APIRequestLimitMiddleware(workspaces Workspaces, limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			workspaceIDStr := chi.URLParam(r, "workspaceId")
			workspaceID, err := uuid.Parse(workspaceIDStr)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ws, err := workspaces.GetByID(r.Context(), workspaceID)
			if err != nil {
				log.Ctx(r.Context()).Error().Err(err).Msg("failed to load workspace for api request limit")
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}
			if ws == nil {
				writeError(w, r, http.StatusNotFound, "workspace not found")
				return
			}

			if err := limiter.CheckAPIRequest(r.Context(), ws); err != nil {
				var rlErr *ratelimit.Error
				if errors.As(err, &rlErr) {
					if rlErr.RetryAfterSeconds > 0 {
						w.Header().Set("Retry-After", strconv.Itoa(rlErr.RetryAfterSeconds))
					}
					writeError(w, r, http.StatusTooManyRequests, rlErr.Error())
					return
				}
				log.Ctx(r.Context()).Error().Err(err).Msg("api request limit check failed")
				writeError(w, r, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
