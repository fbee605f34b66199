package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerEntry is one billable or informational usage record. Direction
// mirrors Message.Direction; TemplateCategory is empty for non-template
// (session) messages.
type LedgerEntry struct {
	WorkspaceID      uuid.UUID
	ConversationID   *uuid.UUID
	ContactID        *uuid.UUID
	Direction        Direction
	TemplateCategory string
	Billable         bool
}

type LedgerRepo struct {
	DB *pgxpool.Pool
}

func NewLedgerRepo(db *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{DB: db}
}

// Append writes a usage ledger entry. Both inbound messages (§4.4 step 8)
// and outbound template sends (§4.7 step 11) append through this path.
func (r *LedgerRepo) Append(ctx context.Context, e LedgerEntry) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO usage_ledger_entry (workspace_id, conversation_id, contact_id, direction, template_category, billable)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.WorkspaceID, e.ConversationID, e.ContactID, e.Direction, nullableString(e.TemplateCategory), e.Billable)
	if err != nil {
		return fmt.Errorf("messaging: append ledger entry: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
