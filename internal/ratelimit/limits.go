// Package ratelimit enforces the four simultaneous per-workspace limits
// from spec §4.8: burst, daily, monthly, and template-submissions/day,
// plus the API-requests/minute perimeter limit.
package ratelimit

import "github.com/relaywave/bsp-gateway/internal/tenant"

// Limits is one plan tier's (or a workspace's overridden) limit set.
type Limits struct {
	BurstPerSecond         int
	MessagesPerDay         int
	MessagesPerMonth       int
	TemplateSubmissionsDay int
	APIRequestsPerMinute   int
}

// planDefaults is the table in §4.8.
var planDefaults = map[tenant.PlanTier]Limits{
	tenant.PlanFree:       {1, 100, 1_000, 3, 100},
	tenant.PlanBasic:      {10, 1_000, 25_000, 10, 500},
	tenant.PlanPremium:    {50, 10_000, 250_000, 50, 2_000},
	tenant.PlanEnterprise: {200, 100_000, 2_500_000, 200, 10_000},
}

// overrideKeys names the workspace.RateLimitOverrides map keys understood
// by ResolveLimits, matching the field names below.
const (
	overrideBurst       = "burst_per_second"
	overrideDaily       = "messages_per_day"
	overrideMonthly     = "messages_per_month"
	overrideTemplateDay = "template_submissions_day"
	overrideAPIPerMin   = "api_requests_per_minute"
)

// ResolveLimits returns w's effective limits: plan defaults with any
// per-workspace overrides applied.
func ResolveLimits(w *tenant.Workspace) Limits {
	limits := planDefaults[w.PlanTier]
	if limits == (Limits{}) {
		limits = planDefaults[tenant.PlanFree]
	}
	if v, ok := w.RateLimitOverrides[overrideBurst]; ok {
		limits.BurstPerSecond = v
	}
	if v, ok := w.RateLimitOverrides[overrideDaily]; ok {
		limits.MessagesPerDay = v
	}
	if v, ok := w.RateLimitOverrides[overrideMonthly]; ok {
		limits.MessagesPerMonth = v
	}
	if v, ok := w.RateLimitOverrides[overrideTemplateDay]; ok {
		limits.TemplateSubmissionsDay = v
	}
	if v, ok := w.RateLimitOverrides[overrideAPIPerMin]; ok {
		limits.APIRequestsPerMinute = v
	}
	return limits
}
