package killswitch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed store for campaigns, campaign messages,
// per-workspace kill-switch events, and the single global switch row.
type Repo struct {
	DB *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{DB: db}
}

// RunningCampaigns lists every RUNNING campaign owned by workspaceID.
func (r *Repo) RunningCampaigns(ctx context.Context, workspaceID uuid.UUID) ([]Campaign, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, workspace_id, status, pause_reason, created_at, updated_at
		FROM campaign WHERE workspace_id = $1 AND status = 'RUNNING'
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("killswitch: list running campaigns: %w", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Status, &c.PauseReason, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("killswitch: scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllRunningCampaigns lists every RUNNING campaign across every
// workspace, used by the global admin kill-switch.
func (r *Repo) AllRunningCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, workspace_id, status, pause_reason, created_at, updated_at
		FROM campaign WHERE status = 'RUNNING'
	`)
	if err != nil {
		return nil, fmt.Errorf("killswitch: list all running campaigns: %w", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Status, &c.PauseReason, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("killswitch: scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PauseCampaign marks a campaign PAUSED with reason and pauses its
// PENDING/QUEUED batches (§4.9 "Effect"). Per-campaign pause failures are
// the caller's problem to log and move past (§7 propagation policy); this
// method itself either fully succeeds or returns one error.
func (r *Repo) PauseCampaign(ctx context.Context, campaignID uuid.UUID, reason Reason) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("killswitch: begin pause tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE campaign SET status = 'PAUSED', pause_reason = $2, updated_at = now()
		WHERE id = $1
	`, campaignID, string(reason)); err != nil {
		return fmt.Errorf("killswitch: pause campaign: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE campaign_batch SET status = 'PAUSED'
		WHERE campaign_id = $1 AND status IN ('PENDING', 'QUEUED')
	`, campaignID); err != nil {
		return fmt.Errorf("killswitch: pause campaign batches: %w", err)
	}

	return tx.Commit(ctx)
}

// RecordEvent persists a per-workspace kill-switch activation (TTL≈7d).
func (r *Repo) RecordEvent(ctx context.Context, workspaceID uuid.UUID, reason Reason, pausedCampaignIDs []uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO kill_switch_event (workspace_id, reason, paused_campaign_ids, expires_at)
		VALUES ($1, $2, $3, now() + interval '7 days')
	`, workspaceID, string(reason), pausedCampaignIDs)
	if err != nil {
		return fmt.Errorf("killswitch: record event: %w", err)
	}
	return nil
}

// LatestEventReason returns the reason of the most recent, unexpired
// kill-switch event for workspaceID, or "" if none.
func (r *Repo) LatestEventReason(ctx context.Context, workspaceID uuid.UUID) (Reason, error) {
	var reason string
	err := r.DB.QueryRow(ctx, `
		SELECT reason FROM kill_switch_event
		WHERE workspace_id = $1 AND expires_at > now()
		ORDER BY created_at DESC LIMIT 1
	`, workspaceID).Scan(&reason)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("killswitch: latest event: %w", err)
	}
	return Reason(reason), nil
}

// ApplyMessageStatus forwards a delivery-status transition to the
// campaign message it participates in, satisfying
// messaging.CampaignRollup. Implements the (campaign, contact) uniqueness
// rollup the exactly-once invariant depends on (§8).
func (r *Repo) ApplyMessageStatus(ctx context.Context, providerMessageID string, status string, failureReason string) error {
	newStatus := CampaignMessagePending
	switch status {
	case "sent", "delivered", "read":
		newStatus = CampaignMessageSent
	case "failed":
		newStatus = CampaignMessageFailed
	default:
		return nil
	}

	_, err := r.DB.Exec(ctx, `
		UPDATE campaign_message SET status = $2, last_error = $3, updated_at = now()
		WHERE provider_message_id = $1
	`, providerMessageID, string(newStatus), failureReason)
	if err != nil {
		return fmt.Errorf("killswitch: apply campaign message status: %w", err)
	}
	return nil
}

// InsertCampaignMessage records the exactly-once (campaign, contact) send
// attempt. A unique-constraint violation on (campaign_id, contact_id)
// surfaces to the caller unchanged; it is the exactly-once guard, not an
// error to swallow.
func (r *Repo) InsertCampaignMessage(ctx context.Context, cm *CampaignMessage) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.DB.QueryRow(ctx, `
		INSERT INTO campaign_message (campaign_id, contact_id, status, attempts, max_attempts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, cm.CampaignID, cm.ContactID, string(cm.Status), cm.Attempts, cm.MaxAttempts).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("killswitch: insert campaign message: %w", err)
	}
	return id, nil
}

// GetGlobalSwitch loads the single global kill-switch row (its boolean
// primary key CHECK allows at most one). A missing row reads as inactive.
func (r *Repo) GetGlobalSwitch(ctx context.Context) (*GlobalSwitch, error) {
	var g GlobalSwitch
	var reason, actor *string
	var activatedAt, expiresAt *time.Time
	err := r.DB.QueryRow(ctx, `
		SELECT active, reason, actor, activated_at, expires_at FROM global_kill_switch WHERE id = true
	`).Scan(&g.Active, &reason, &actor, &activatedAt, &expiresAt)
	if err == pgx.ErrNoRows {
		// No row yet (first boot before any admin action): treat as inactive.
		return &GlobalSwitch{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("killswitch: get global switch: %w", err)
	}
	if reason != nil {
		g.Reason = *reason
	}
	if actor != nil {
		g.Actor = *actor
	}
	g.ActivatedAt = activatedAt
	g.ExpiresAt = expiresAt
	return &g, nil
}

// ActivateGlobal turns the global switch on with a 24h TTL.
func (r *Repo) ActivateGlobal(ctx context.Context, reason, actor string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO global_kill_switch (id, active, reason, actor, activated_at, expires_at)
		VALUES (true, true, $1, $2, now(), now() + interval '24 hours')
		ON CONFLICT (id) DO UPDATE SET
			active = true, reason = $1, actor = $2, activated_at = now(), expires_at = now() + interval '24 hours'
	`, reason, actor)
	if err != nil {
		return fmt.Errorf("killswitch: activate global switch: %w", err)
	}
	return nil
}

// DeactivateGlobal turns the global switch off. Idempotent: deactivating
// an already-inactive switch succeeds.
func (r *Repo) DeactivateGlobal(ctx context.Context, actor string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO global_kill_switch (id, active, actor)
		VALUES (true, false, $1)
		ON CONFLICT (id) DO UPDATE SET active = false, actor = $1
	`, actor)
	if err != nil {
		return fmt.Errorf("killswitch: deactivate global switch: %w", err)
	}
	return nil
}
