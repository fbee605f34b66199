package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed Workspace repository.
type Repo struct {
	DB *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{DB: db}
}

func scanWorkspace(row pgx.Row) (*Workspace, error) {
	var w Workspace
	var overridesJSON []byte
	if err := row.Scan(
		&w.ID, &w.PlanTier, &w.PhoneNumberID, &w.DisplayPhoneNumber, &w.WABAID,
		&w.BSPConnected, &w.PhoneHealth, &w.QualityRating, &w.MessagingTier,
		&w.AccountStatus, &w.BillingStatus, &w.TrialAllowsSending, &w.CapabilityBlocked,
		&w.MessagesToday, &w.MessagesMonth, &w.TemplateSubmissionsToday,
		&w.UsageDay, &w.UsageMonth, &overridesJSON, &w.CreatedAt, &w.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(overridesJSON) > 0 {
		_ = json.Unmarshal(overridesJSON, &w.RateLimitOverrides)
	}
	return &w, nil
}

const workspaceColumns = `id, plan_tier, phone_number_id, display_phone_number, waba_id,
	bsp_connected, phone_health, quality_rating, messaging_tier,
	account_status, billing_status, trial_allows_sending, capability_blocked,
	messages_today, messages_month, template_submissions_today,
	usage_day, usage_month, rate_limit_overrides, created_at, updated_at`

// GetByID loads a workspace by id.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspace WHERE id = $1`, id)
	w, err := scanWorkspace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("tenant: get by id: %w", err)
	}
	return w, nil
}

// GetByPhoneNumberID loads the workspace owning a provider phone_number_id.
// Returns (nil, nil) when no workspace owns it.
func (r *Repo) GetByPhoneNumberID(ctx context.Context, phoneID string) (*Workspace, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspace WHERE phone_number_id = $1`, phoneID)
	w, err := scanWorkspace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("tenant: get by phone id: %w", err)
	}
	return w, nil
}

// GetByIDSuffix loads the workspace whose id ends with suffix, the
// routing key used for template-status events that lack a phone id
// (§4.2, §6.2). Returns (nil, nil) when no workspace matches.
func (r *Repo) GetByIDSuffix(ctx context.Context, suffix string) (*Workspace, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspace WHERE right(id::text, 8) = $1`, suffix)
	w, err := scanWorkspace(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("tenant: get by id suffix: %w", err)
	}
	return w, nil
}

// ReassignPhoneNumber moves a phone_number_id to a new workspace. The
// caller MUST invalidate the router cache for phoneID before calling this,
// so that no request can observe the old owner after the new owner is
// persisted (the correctness requirement in spec.md §4.3) — see
// internal/httpapi.Server.ReassignPhoneNumber, which calls
// PhoneWorkspaceCache.Invalidate before this.
func (r *Repo) ReassignPhoneNumber(ctx context.Context, phoneID string, newWorkspaceID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE workspace SET phone_number_id = NULL, updated_at = now()
		WHERE phone_number_id = $1 AND id <> $2
	`, phoneID, newWorkspaceID)
	if err != nil {
		return fmt.Errorf("tenant: clear prior owner: %w", err)
	}

	tag, err := r.DB.Exec(ctx, `
		UPDATE workspace SET phone_number_id = $1, updated_at = now()
		WHERE id = $2
	`, phoneID, newWorkspaceID)
	if err != nil {
		return fmt.Errorf("tenant: assign new owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant: workspace %s not found", newWorkspaceID)
	}
	return nil
}

// WebhookAccountUpdate carries the fields the account_update webhook can
// change. A nil field means "no change", since the provider payload only
// includes fields that changed.
type WebhookAccountUpdate struct {
	PhoneHealth   *PhoneHealth
	AccountStatus *AccountStatus
	QualityRating *QualityRating
	MessagingTier *MessagingTier
}

// ApplyAccountUpdate authoritatively overwrites the provider-reconciled
// fields on a workspace. Returns the workspace state before and after the
// update so callers (the kill-switch reactor) can detect transitions.
func (r *Repo) ApplyAccountUpdate(ctx context.Context, id uuid.UUID, u WebhookAccountUpdate) (before, after *Workspace, err error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspace WHERE id = $1 FOR UPDATE`, id)
	before, err = scanWorkspace(row)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: load before update: %w", err)
	}

	phoneHealth := before.PhoneHealth
	if u.PhoneHealth != nil {
		phoneHealth = *u.PhoneHealth
	}
	accountStatus := before.AccountStatus
	if u.AccountStatus != nil {
		accountStatus = *u.AccountStatus
	}
	quality := before.QualityRating
	if u.QualityRating != nil {
		quality = *u.QualityRating
	}
	tier := before.MessagingTier
	if u.MessagingTier != nil {
		tier = *u.MessagingTier
	}

	_, err = tx.Exec(ctx, `
		UPDATE workspace
		SET phone_health = $1, account_status = $2, quality_rating = $3, messaging_tier = $4, updated_at = now()
		WHERE id = $5
	`, phoneHealth, accountStatus, quality, tier, id)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant: apply account update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("tenant: commit account update: %w", err)
	}

	after = &Workspace{}
	*after = *before
	after.PhoneHealth = phoneHealth
	after.AccountStatus = accountStatus
	after.QualityRating = quality
	after.MessagingTier = tier
	return before, after, nil
}

// SetCapabilityBlocked records whether MESSAGING or PHONE_NUMBER_MANAGEMENT
// capability has been revoked for the workspace.
func (r *Repo) SetCapabilityBlocked(ctx context.Context, id uuid.UUID, blocked bool) error {
	_, err := r.DB.Exec(ctx, `UPDATE workspace SET capability_blocked = $1, updated_at = now() WHERE id = $2`, blocked, id)
	if err != nil {
		return fmt.Errorf("tenant: set capability blocked: %w", err)
	}
	return nil
}

// IncrementUsage bumps the workspace's running counters after a successful
// outbound send, resetting day/month counters when the calendar boundary
// has passed.
func (r *Repo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	_, err := r.DB.Exec(ctx, `
		UPDATE workspace SET
			messages_today = CASE WHEN usage_day = $2 THEN messages_today + 1 ELSE 1 END,
			messages_month = CASE WHEN usage_month = $3 THEN messages_month + 1 ELSE 1 END,
			usage_day = $2,
			usage_month = $3,
			updated_at = now()
		WHERE id = $1
	`, id, today, month)
	if err != nil {
		return fmt.Errorf("tenant: increment usage: %w", err)
	}
	return nil
}

// IncrementTemplateSubmissions bumps the daily template-submission counter.
func (r *Repo) IncrementTemplateSubmissions(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	_, err := r.DB.Exec(ctx, `
		UPDATE workspace SET
			template_submissions_today = CASE WHEN usage_day = $2 THEN template_submissions_today + 1 ELSE 1 END,
			usage_day = $2,
			updated_at = now()
		WHERE id = $1
	`, id, today)
	if err != nil {
		return fmt.Errorf("tenant: increment template submissions: %w", err)
	}
	return nil
}
