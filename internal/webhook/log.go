package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaywave/bsp-gateway/internal/pagex"
)

// Log is the persisted, redacted record of one admitted webhook delivery.
// It is both an audit trail and the (deliveryId, eventType) idempotency
// record the dispatcher pre-checks before running a job (§4.2).
type Log struct {
	ID          uuid.UUID
	DeliveryID  string
	EventType   string
	WorkspaceID *uuid.UUID
	PhoneID     string
	BSPRouted   bool
	Verified    bool
	Processed   bool
	Error       string
	Payload     json.RawMessage
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

const logRetention = 30 * 24 * time.Hour

type Repo struct {
	DB *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{DB: db}
}

// Insert persists a redacted webhook log row and returns its id. Payload
// must already have been through RedactPayload.
func (r *Repo) Insert(ctx context.Context, l *Log) (uuid.UUID, error) {
	body, err := json.Marshal(l.Payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("webhook: marshal log payload: %w", err)
	}
	var id uuid.UUID
	err = r.DB.QueryRow(ctx, `
		INSERT INTO webhook_log (
			delivery_id, event_type, workspace_id, phone_id, bsp_routed, verified, payload, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now() + $8)
		RETURNING id
	`, nullableText(l.DeliveryID), l.EventType, l.WorkspaceID, nullableText(l.PhoneID), l.BSPRouted, l.Verified, body, logRetention).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("webhook: insert log: %w", err)
	}
	return id, nil
}

// MarkResult records the outcome of downstream dispatch against an already
// persisted log row; dispatch errors never propagate to the HTTP response,
// they surface here instead (§4.1 failure semantics).
func (r *Repo) MarkResult(ctx context.Context, id uuid.UUID, processed bool, dispatchErr error) error {
	errText := ""
	if dispatchErr != nil {
		errText = dispatchErr.Error()
	}
	_, err := r.DB.Exec(ctx, `
		UPDATE webhook_log SET processed = $2, error = $3 WHERE id = $1
	`, id, processed, nullableText(errText))
	if err != nil {
		return fmt.Errorf("webhook: mark log result: %w", err)
	}
	return nil
}

// AlreadyProcessed reports whether a (deliveryId, eventType) pair already
// has a processed log entry, the dispatcher's job-level idempotency check.
func (r *Repo) AlreadyProcessed(ctx context.Context, deliveryID, eventType string) (bool, error) {
	if deliveryID == "" {
		return false, nil
	}
	var processed bool
	err := r.DB.QueryRow(ctx, `
		SELECT processed FROM webhook_log WHERE delivery_id = $1 AND event_type = $2
		ORDER BY created_at DESC LIMIT 1
	`, deliveryID, eventType).Scan(&processed)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("webhook: check processed log: %w", err)
	}
	return processed, nil
}

// List returns a workspace's webhook log entries newest-first, keyset
// paginated via pagex.Cursor on (created_at, id). Pass a zero cursor for
// the first page; the returned cursor is empty once the list is exhausted.
func (r *Repo) List(ctx context.Context, workspaceID uuid.UUID, after pagex.Cursor, limit int) ([]Log, pagex.Cursor, error) {
	var rows pgx.Rows
	var err error
	if after.UID == uuid.Nil {
		rows, err = r.DB.Query(ctx, `
			SELECT id, delivery_id, event_type, workspace_id, phone_id, bsp_routed, verified, processed, error, payload, created_at, expires_at
			FROM webhook_log WHERE workspace_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		`, workspaceID, limit)
	} else {
		afterTime := time.UnixMilli(after.Ms).UTC()
		rows, err = r.DB.Query(ctx, `
			SELECT id, delivery_id, event_type, workspace_id, phone_id, bsp_routed, verified, processed, error, payload, created_at, expires_at
			FROM webhook_log WHERE workspace_id = $1
			AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC LIMIT $4
		`, workspaceID, afterTime, after.UID, limit)
	}
	if err != nil {
		return nil, pagex.Cursor{}, fmt.Errorf("webhook: list logs: %w", err)
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		var l Log
		var errText *string
		if err := rows.Scan(&l.ID, &l.DeliveryID, &l.EventType, &l.WorkspaceID, &l.PhoneID, &l.BSPRouted, &l.Verified, &l.Processed, &errText, &l.Payload, &l.CreatedAt, &l.ExpiresAt); err != nil {
			return nil, pagex.Cursor{}, fmt.Errorf("webhook: scan log: %w", err)
		}
		if errText != nil {
			l.Error = *errText
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, pagex.Cursor{}, fmt.Errorf("webhook: list logs: %w", err)
	}

	var next pagex.Cursor
	if len(out) == limit {
		last := out[len(out)-1]
		next = pagex.FromTime(last.CreatedAt, last.ID)
	}
	return out, next, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
