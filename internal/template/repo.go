package template

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	DB *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{DB: db}
}

const templateColumns = `id, workspace_id, name, language, category, components, status,
	provider_template_id, provider_name, original_template_id, active,
	rejection_category, rejection_reason, approval_history,
	last_webhook_event_id, last_webhook_event_type, last_webhook_update, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var componentsJSON, historyJSON []byte
	if err := row.Scan(
		&t.ID, &t.WorkspaceID, &t.Name, &t.Language, &t.Category, &componentsJSON, &t.Status,
		&t.ProviderTemplateID, &t.ProviderName, &t.OriginalTemplateID, &t.Active,
		&t.RejectionCategory, &t.RejectionReason, &historyJSON,
		&t.LastWebhookEventID, &t.LastWebhookEventType, &t.LastWebhookUpdate, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(componentsJSON, &t.Components)
	_ = json.Unmarshal(historyJSON, &t.ApprovalHistory)
	return &t, nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+templateColumns+` FROM template WHERE id = $1`, id)
	return r.scanOrNil(row)
}

func (r *Repo) GetByProviderTemplateID(ctx context.Context, providerTemplateID string) (*Template, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+templateColumns+` FROM template WHERE provider_template_id = $1`, providerTemplateID)
	return r.scanOrNil(row)
}

func (r *Repo) GetByProviderName(ctx context.Context, providerName string) (*Template, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+templateColumns+` FROM template WHERE provider_name = $1`, providerName)
	return r.scanOrNil(row)
}

func (r *Repo) GetByWorkspaceNameLanguage(ctx context.Context, workspaceID uuid.UUID, name, language string) (*Template, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+templateColumns+` FROM template WHERE workspace_id = $1 AND name = $2 AND language = $3`, workspaceID, name, language)
	return r.scanOrNil(row)
}

// GetByWorkspaceName matches on name alone, used as the last fallback in
// the template-status routing chain when the webhook payload carries no
// language tag.
func (r *Repo) GetByWorkspaceName(ctx context.Context, workspaceID uuid.UUID, name string) (*Template, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+templateColumns+` FROM template WHERE workspace_id = $1 AND name = $2 LIMIT 1`, workspaceID, name)
	return r.scanOrNil(row)
}

func (r *Repo) scanOrNil(row pgx.Row) (*Template, error) {
	t, err := scanTemplate(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("template: get: %w", err)
	}
	return t, nil
}

// Create inserts a newly-submitted template in DRAFT status awaiting the
// provider's authoritative decision.
func (r *Repo) Create(ctx context.Context, t *Template) (*Template, error) {
	components, err := json.Marshal(t.Components)
	if err != nil {
		return nil, fmt.Errorf("template: marshal components: %w", err)
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO template (workspace_id, name, language, category, components, status, provider_name, original_template_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+templateColumns,
		t.WorkspaceID, t.Name, t.Language, t.Category, components, StatusDraft, t.ProviderName, t.OriginalTemplateID,
	)
	out, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("template: create: %w", err)
	}
	return out, nil
}

// ApplyWebhookTransition authoritatively overwrites status and related
// fields from a provider webhook, appends an approval-history entry, and
// stamps LastWebhookEventID/LastWebhookUpdate. If activateOverOriginal is non-nil,
// the forked-version activation swap also runs in the same transaction.
func (r *Repo) ApplyWebhookTransition(ctx context.Context, id uuid.UUID, newStatus Status, rejectionCategory, rejectionReason, providerEventID string, at time.Time, activateOverOriginal *uuid.UUID) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("template: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+templateColumns+` FROM template WHERE id = $1 FOR UPDATE`, id)
	cur, err := scanTemplate(row)
	if err != nil {
		return fmt.Errorf("template: load for transition: %w", err)
	}

	history := append(cur.ApprovalHistory, ApprovalHistoryEntry{
		Status:          newStatus,
		Source:          "WEBHOOK",
		ProviderEventID: providerEventID,
		At:              at,
	})
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("template: marshal history: %w", err)
	}

	clearRejection := newStatus == StatusApproved
	rc, rr := rejectionCategory, rejectionReason
	if clearRejection {
		rc, rr = "", ""
	}

	_, err = tx.Exec(ctx, `
		UPDATE template SET
			status = $2,
			rejection_category = $3,
			rejection_reason = $4,
			approval_history = $5,
			last_webhook_event_id = $6,
			last_webhook_event_type = $7,
			last_webhook_update = $8,
			active = CASE WHEN $2 = 'APPROVED' THEN true ELSE active END,
			updated_at = now()
		WHERE id = $1
	`, id, newStatus, nullable(rc), nullable(rr), historyJSON, providerEventID, string(newStatus), at)
	if err != nil {
		return fmt.Errorf("template: apply transition: %w", err)
	}

	if activateOverOriginal != nil {
		if _, err := tx.Exec(ctx, `UPDATE template SET active = false, updated_at = now() WHERE id = $1`, *activateOverOriginal); err != nil {
			return fmt.Errorf("template: deactivate original: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("template: commit transition: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
