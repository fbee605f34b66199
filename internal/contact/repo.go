package contact

import (
	"context"
	"fmt"

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

const contactColumns = `id, workspace_id, phone, display_name, opted_in, opt_at, opt_source, tags, created_at, updated_at`

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.Phone, &c.DisplayName, &c.OptedIn, &c.OptAt, &c.OptSource, &c.Tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindOrCreate returns the contact for (workspaceID, phone), creating it
// with displayName if it doesn't yet exist. Grounded on the teacher's
// atomic upsert idiom (INSERT ... ON CONFLICT DO NOTHING RETURNING id,
// fallback SELECT on no-rows) adapted from last-write-wins versioning to
// plain find-or-create, since a contact's identity fields never need a
// "newer wins" comparison.
func (r *Repo) FindOrCreate(ctx context.Context, workspaceID uuid.UUID, phone, displayName string) (*Contact, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO contact (workspace_id, phone, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, phone) DO NOTHING
		RETURNING `+contactColumns, workspaceID, phone, displayName)
	c, err := scanContact(row)
	if err == nil {
		return c, nil
	}
	if err != pgx.ErrNoRows {
		return nil, fmt.Errorf("contact: find or create: %w", err)
	}

	row = r.DB.QueryRow(ctx, `SELECT `+contactColumns+` FROM contact WHERE workspace_id = $1 AND phone = $2`, workspaceID, phone)
	c, err = scanContact(row)
	if err != nil {
		return nil, fmt.Errorf("contact: find after conflict: %w", err)
	}
	return c, nil
}

func (r *Repo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*Contact, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+contactColumns+` FROM contact WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	c, err := scanContact(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("contact: get by id: %w", err)
	}
	return c, nil
}

func (r *Repo) GetByPhone(ctx context.Context, workspaceID uuid.UUID, phone string) (*Contact, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+contactColumns+` FROM contact WHERE workspace_id = $1 AND phone = $2`, workspaceID, phone)
	c, err := scanContact(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("contact: get by phone: %w", err)
	}
	return c, nil
}

// SetOptStatus transitions a contact's opt-in state. The transition is
// idempotent: re-applying the same optedIn value still updates opt_at/
// opt_source, since a repeated opt-out keyword should refresh the audit
// trail rather than being treated as a no-op.
func (r *Repo) SetOptStatus(ctx context.Context, workspaceID, id uuid.UUID, optedIn bool, source OptSource) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE contact SET opted_in = $1, opt_at = now(), opt_source = $2, updated_at = now()
		WHERE workspace_id = $3 AND id = $4
	`, optedIn, source, workspaceID, id)
	if err != nil {
		return fmt.Errorf("contact: set opt status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact: %s not found in workspace %s", id, workspaceID)
	}
	return nil
}
