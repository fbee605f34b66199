package conversation

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

const conversationColumns = `id, workspace_id, contact_id, status, conversation_type,
	started_at, last_activity_at, last_customer_message_at, last_message_preview,
	last_message_type, assigned_agent_id, sla_deadline, unread_counts`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	var unreadJSON []byte
	if err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.ContactID, &c.Status, &c.ConversationType,
		&c.StartedAt, &c.LastActivityAt, &c.LastCustomerMessageAt, &c.LastMessagePreview,
		&c.LastMessageType, &c.AssignedAgentID, &c.SLADeadline, &unreadJSON,
	); err != nil {
		return nil, err
	}
	c.UnreadCounts = map[string]int{}
	if len(unreadJSON) > 0 {
		_ = json.Unmarshal(unreadJSON, &c.UnreadCounts)
	}
	return &c, nil
}

// FindOrCreate returns the conversation for (workspaceID, contactID),
// whatever its status,
// creating one with the given conversationType if none exists. Same
// atomic-upsert idiom as contact.FindOrCreate.
func (r *Repo) FindOrCreate(ctx context.Context, workspaceID, contactID uuid.UUID, convType Type) (*Conversation, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO conversation (workspace_id, contact_id, conversation_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, contact_id) DO NOTHING
		RETURNING `+conversationColumns, workspaceID, contactID, convType)
	c, err := scanConversation(row)
	if err == nil {
		return c, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("conversation: find or create: %w", err)
	}

	row = r.DB.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE workspace_id = $1 AND contact_id = $2`, workspaceID, contactID)
	c, err = scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("conversation: find after conflict: %w", err)
	}
	return c, nil
}

func (r *Repo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*Conversation, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	c, err := scanConversation(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("conversation: get by id: %w", err)
	}
	return c, nil
}

// ReopenOnInbound reopens a closed conversation and bumps its activity
// markers after an inbound message. A closed conversation always reopens
// on the next inbound message, per the data model's lifecycle; reopening
// always reverts the conversation to customer-initiated and restarts its
// service window, even if it was originally opened business-initiated.
func (r *Repo) ReopenOnInbound(ctx context.Context, workspaceID, id uuid.UUID, preview, msgType string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE conversation SET
			status = 'open',
			conversation_type = 'customer_initiated',
			started_at = $3,
			last_activity_at = $3,
			last_customer_message_at = $3,
			last_message_preview = $4,
			last_message_type = $5
		WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id, at, preview, msgType)
	if err != nil {
		return fmt.Errorf("conversation: reopen on inbound: %w", err)
	}
	return nil
}

// RecordOutboundActivity bumps activity markers after an outbound send
// without touching last_customer_message_at or the service window.
func (r *Repo) RecordOutboundActivity(ctx context.Context, workspaceID, id uuid.UUID, preview, msgType string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE conversation SET
			last_activity_at = $3,
			last_message_preview = $4,
			last_message_type = $5
		WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id, at, preview, msgType)
	if err != nil {
		return fmt.Errorf("conversation: record outbound activity: %w", err)
	}
	return nil
}

// IncrementUnread bumps the per-agent-view unread counter named bucket
// (typically "agent" or an agent id string).
func (r *Repo) IncrementUnread(ctx context.Context, workspaceID, id uuid.UUID, bucket string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE conversation SET unread_counts = jsonb_set(
			unread_counts, ARRAY[$3], to_jsonb(COALESCE((unread_counts->>$3)::int, 0) + 1)
		)
		WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id, bucket)
	if err != nil {
		return fmt.Errorf("conversation: increment unread: %w", err)
	}
	return nil
}

// SetSLADeadline sets or clears (nil deadline) the conversation's SLA
// deadline, used by the auto-close/escalation sweep (out of scope here;
// this is the write path it would call).
func (r *Repo) SetSLADeadline(ctx context.Context, workspaceID, id uuid.UUID, deadline *time.Time) error {
	_, err := r.DB.Exec(ctx, `UPDATE conversation SET sla_deadline = $3 WHERE workspace_id = $1 AND id = $2`, workspaceID, id, deadline)
	if err != nil {
		return fmt.Errorf("conversation: set sla deadline: %w", err)
	}
	return nil
}
