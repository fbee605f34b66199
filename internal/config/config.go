// Package config builds a single immutable configuration value from the
// process environment at startup. Every consumer receives it by parameter;
// nothing in this repo reads os.Getenv outside this package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PhoneAssignmentMode controls how provider phone numbers are handed out to
// new workspaces.
type PhoneAssignmentMode string

const (
	PhoneAssignmentManual PhoneAssignmentMode = "manual"
	PhoneAssignmentPool   PhoneAssignmentMode = "pool"
)

// Config is the frozen, validated configuration for the whole process.
type Config struct {
	Env string // "dev" enables verbose/console logging and relaxed auth

	HTTPAddr string

	DatabaseURL string
	RedisAddr   string
	RedisDB     int

	// Provider / BSP account.
	ParentWABAID      string
	ParentBusinessID  string
	SystemUserToken   string
	AppID             string
	AppSecret         string
	WebhookVerifyToken string
	APIVersion        string

	PhoneAssignmentMode PhoneAssignmentMode
	PhoneNumberPool     []string

	StrictTenantIsolation bool
	CrossTenantLogging    bool
	MessageEncryption     bool

	// SkipSignatureVerification must never be true in production; it only
	// takes effect when IsProduction() is false (Env "dev" or "test").
	SkipSignatureVerification bool

	ReplayTTL        time.Duration
	MaxWebhookAge    time.Duration
	DefaultCountryCode string

	MediaRoot string

	AdminJWTSecret string

	// Per-workspace rate-limit overrides are not part of Config: they are
	// read from the workspace row (tenant.Workspace.RateLimitOverrides) at
	// runtime, not from env.
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load builds and validates a Config from the environment. It is intended
// to be called exactly once, in main.
func Load() (*Config, error) {
	cfg := &Config{
		Env:      env("ENV", ""),
		HTTPAddr: env("HTTP_ADDR", ":8080"),

		DatabaseURL: env("DATABASE_URL", ""),
		RedisAddr:   env("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:     envInt("REDIS_DB", 0),

		ParentWABAID:       env("WABA_ID", ""),
		ParentBusinessID:   env("BUSINESS_ID", ""),
		SystemUserToken:    env("SYSTEM_USER_TOKEN", ""),
		AppID:              env("APP_ID", ""),
		AppSecret:          env("APP_SECRET", ""),
		WebhookVerifyToken: env("WEBHOOK_VERIFY_TOKEN", ""),
		APIVersion:         env("API_VERSION", "v21.0"),

		PhoneAssignmentMode: PhoneAssignmentMode(env("PHONE_ASSIGNMENT_MODE", "manual")),

		StrictTenantIsolation: envBool("STRICT_TENANT_ISOLATION", true),
		CrossTenantLogging:    envBool("CROSS_TENANT_LOGGING", false),
		MessageEncryption:     envBool("MESSAGE_ENCRYPTION", false),

		SkipSignatureVerification: envBool("SKIP_SIGNATURE_VERIFICATION", false),

		ReplayTTL:     envDuration("REPLAY_TTL", 5*time.Minute),
		MaxWebhookAge: envDuration("MAX_WEBHOOK_AGE", 24*time.Hour),

		DefaultCountryCode: env("DEFAULT_COUNTRY_CODE", "91"),
		MediaRoot:          env("MEDIA_ROOT", "./data/media"),

		AdminJWTSecret: env("ADMIN_JWT_SECRET", ""),
	}

	if pool := env("PHONE_NUMBER_POOL", ""); pool != "" {
		for _, p := range strings.Split(pool, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.PhoneNumberPool = append(cfg.PhoneNumberPool, p)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env != "dev" && c.Env != "test"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.PhoneAssignmentMode != PhoneAssignmentManual && c.PhoneAssignmentMode != PhoneAssignmentPool {
		return fmt.Errorf("config: PHONE_ASSIGNMENT_MODE must be %q or %q, got %q",
			PhoneAssignmentManual, PhoneAssignmentPool, c.PhoneAssignmentMode)
	}
	if c.PhoneAssignmentMode == PhoneAssignmentPool && len(c.PhoneNumberPool) == 0 {
		return fmt.Errorf("config: PHONE_NUMBER_POOL is required when PHONE_ASSIGNMENT_MODE=pool")
	}
	if c.IsProduction() {
		if c.AppSecret == "" {
			return fmt.Errorf("config: APP_SECRET is required in production")
		}
		if c.SkipSignatureVerification {
			return fmt.Errorf("config: SKIP_SIGNATURE_VERIFICATION cannot be set in production")
		}
		if c.AdminJWTSecret == "" || len(c.AdminJWTSecret) < 16 {
			return fmt.Errorf("config: ADMIN_JWT_SECRET must be set to a strong value in production")
		}
	}
	return nil
}
