package messaging

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

const messageColumns = `id, workspace_id, conversation_id, contact_id, provider_message_id,
	direction, msg_type, body, status, template_name, template_category, template_language,
	campaign_id, media_id, media_mime, media_sha256, failure_reason,
	queued_at, sending_at, sent_at, delivered_at, read_at, failed_at, received_at,
	raw_meta, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	var rawMeta []byte
	if err := row.Scan(
		&m.ID, &m.WorkspaceID, &m.ConversationID, &m.ContactID, &m.ProviderMessageID,
		&m.Direction, &m.MsgType, &m.Body, &m.Status, &m.TemplateName, &m.TemplateCategory, &m.TemplateLanguage,
		&m.CampaignID, &m.MediaID, &m.MediaMIME, &m.MediaSHA256, &m.FailureReason,
		&m.QueuedAt, &m.SendingAt, &m.SentAt, &m.DeliveredAt, &m.ReadAt, &m.FailedAt, &m.ReceivedAt,
		&rawMeta, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(rawMeta) > 0 {
		_ = json.Unmarshal(rawMeta, &m.RawMeta)
	}
	return &m, nil
}

// Insert persists a new message. The caller sets every timestamp field it
// already knows (e.g. ReceivedAt for inbound, nothing yet for a freshly
// queued outbound send); status transitions afterward go through
// ApplyStatus so the monotonicity guard always applies.
func (r *Repo) Insert(ctx context.Context, m *Message) (*Message, error) {
	rawMeta, err := json.Marshal(m.RawMeta)
	if err != nil {
		return nil, fmt.Errorf("messaging: marshal raw meta: %w", err)
	}
	row := r.DB.QueryRow(ctx, `
		INSERT INTO message (
			workspace_id, conversation_id, contact_id, provider_message_id,
			direction, msg_type, body, status, template_name, template_category, template_language,
			campaign_id, media_id, media_mime, media_sha256, failure_reason,
			queued_at, sending_at, sent_at, delivered_at, read_at, failed_at, received_at, raw_meta
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		RETURNING `+messageColumns,
		m.WorkspaceID, m.ConversationID, m.ContactID, m.ProviderMessageID,
		m.Direction, m.MsgType, m.Body, m.Status, m.TemplateName, m.TemplateCategory, m.TemplateLanguage,
		m.CampaignID, m.MediaID, m.MediaMIME, m.MediaSHA256, m.FailureReason,
		m.QueuedAt, m.SendingAt, m.SentAt, m.DeliveredAt, m.ReadAt, m.FailedAt, m.ReceivedAt, rawMeta,
	)
	out, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("messaging: insert: %w", err)
	}
	return out, nil
}

// GetByProviderMessageID locates a message by its provider id, optionally
// scoped to a workspace when one is known (the routed case in §4.5).
func (r *Repo) GetByProviderMessageID(ctx context.Context, workspaceID *uuid.UUID, providerMessageID string) (*Message, error) {
	var row pgx.Row
	if workspaceID != nil {
		row = r.DB.QueryRow(ctx, `SELECT `+messageColumns+` FROM message WHERE workspace_id = $1 AND provider_message_id = $2`, *workspaceID, providerMessageID)
	} else {
		row = r.DB.QueryRow(ctx, `SELECT `+messageColumns+` FROM message WHERE provider_message_id = $1 LIMIT 1`, providerMessageID)
	}
	m, err := scanMessage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("messaging: get by provider id: %w", err)
	}
	return m, nil
}

// ApplyStatus idempotently advances a message's status: the UPDATE only
// takes effect when the new status outranks the current one, and each
// timestamp column is set-once (COALESCE keeps the first write). Returns
// whether the update actually changed anything, so callers can decide
// whether to forward the transition to campaign rollup/workflow/realtime.
func (r *Repo) ApplyStatus(ctx context.Context, id uuid.UUID, status Status, at time.Time, failureReason string) (bool, error) {
	col := statusTimestampColumn(status)
	if col == "" {
		return false, fmt.Errorf("messaging: unknown status %q", status)
	}

	tag, err := r.DB.Exec(ctx, fmt.Sprintf(`
		UPDATE message SET
			status = $2,
			%s = COALESCE(%s, $3),
			failure_reason = CASE WHEN $2 = 'failed' THEN $4 ELSE failure_reason END
		WHERE id = $1 AND status_rank($2) > status_rank(status)
	`, col, col), id, string(status), at, failureReason)
	if err != nil {
		return false, fmt.Errorf("messaging: apply status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func statusTimestampColumn(s Status) string {
	switch s {
	case StatusQueued:
		return "queued_at"
	case StatusSending:
		return "sending_at"
	case StatusSent:
		return "sent_at"
	case StatusDelivered:
		return "delivered_at"
	case StatusRead:
		return "read_at"
	case StatusFailed:
		return "failed_at"
	default:
		return ""
	}
}

// RewriteMediaPath updates a message's media_id to point at the
// tenant-local stored path after a successful on-demand media fetch.
func (r *Repo) RewriteMediaPath(ctx context.Context, id uuid.UUID, storedPath string) error {
	_, err := r.DB.Exec(ctx, `UPDATE message SET media_id = $2 WHERE id = $1`, id, storedPath)
	if err != nil {
		return fmt.Errorf("messaging: rewrite media path: %w", err)
	}
	return nil
}
