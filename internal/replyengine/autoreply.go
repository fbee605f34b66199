package replyengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaywave/bsp-gateway/internal/template"
)

type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "starts_with"
	MatchContains   MatchType = "contains"
)

// AutoReply is one workspace-ordered rule: if keyword matches, send
// TemplateID, subject to a 24h per-(contact, rule) cooldown.
type AutoReply struct {
	ID         uuid.UUID
	Position   int
	Enabled    bool
	MatchType  MatchType
	Keyword    string
	TemplateID uuid.UUID
}

func (r AutoReply) matches(normalizedBody string) bool {
	keyword := strings.ToLower(r.Keyword)
	switch r.MatchType {
	case MatchStartsWith:
		return strings.HasPrefix(normalizedBody, keyword)
	case MatchContains:
		return strings.Contains(normalizedBody, keyword)
	default:
		return normalizedBody == keyword
	}
}

const autoReplyCooldown = 24 * time.Hour

// AutoReplyRepo persists auto-reply rules and their dedup log.
type AutoReplyRepo struct {
	DB *pgxpool.Pool
}

func NewAutoReplyRepo(db *pgxpool.Pool) *AutoReplyRepo {
	return &AutoReplyRepo{DB: db}
}

// ListEnabled returns a workspace's enabled auto-reply rules in position order.
func (r *AutoReplyRepo) ListEnabled(ctx context.Context, workspaceID uuid.UUID) ([]AutoReply, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, position, enabled, match_type, keyword, template_id
		FROM auto_reply WHERE workspace_id = $1 AND enabled = true ORDER BY position
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("replyengine: list auto replies: %w", err)
	}
	defer rows.Close()

	var out []AutoReply
	for rows.Next() {
		var a AutoReply
		if err := rows.Scan(&a.ID, &a.Position, &a.Enabled, &a.MatchType, &a.Keyword, &a.TemplateID); err != nil {
			return nil, fmt.Errorf("replyengine: scan auto reply: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WithinCooldown reports whether contactID received autoReplyID within
// the last 24 hours.
func (r *AutoReplyRepo) WithinCooldown(ctx context.Context, workspaceID, contactID, autoReplyID uuid.UUID) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM auto_reply_log
			WHERE workspace_id = $1 AND contact_id = $2 AND auto_reply_id = $3 AND created_at > now() - interval '24 hours'
		)
	`, workspaceID, contactID, autoReplyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("replyengine: check auto reply cooldown: %w", err)
	}
	return exists, nil
}

// RecordSent logs that autoReplyID was sent to contactID, TTL 30 days.
func (r *AutoReplyRepo) RecordSent(ctx context.Context, workspaceID, contactID, autoReplyID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO auto_reply_log (workspace_id, contact_id, auto_reply_id)
		VALUES ($1, $2, $3)
	`, workspaceID, contactID, autoReplyID)
	if err != nil {
		return fmt.Errorf("replyengine: record auto reply: %w", err)
	}
	return nil
}

// TemplateStatusLookup checks whether a template is still APPROVED at
// send time, implemented by internal/template.Repo.
type TemplateStatusLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*template.Template, error)
}

// AutoReplyEngine evaluates a workspace's auto-reply rules against an
// inbound message body.
type AutoReplyEngine struct {
	Rules     *AutoReplyRepo
	Templates TemplateStatusLookup
	Sender    SessionSender
}

func NewAutoReplyEngine(rules *AutoReplyRepo, templates TemplateStatusLookup, sender SessionSender) *AutoReplyEngine {
	return &AutoReplyEngine{Rules: rules, Templates: templates, Sender: sender}
}

// Try attempts to match and send an auto-reply, returning true if one was
// sent (§4.4 step 9a).
func (e *AutoReplyEngine) Try(ctx context.Context, workspaceID, contactID uuid.UUID, to, body string) (bool, error) {
	rules, err := e.Rules.ListEnabled(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	normalized := strings.ToLower(strings.TrimSpace(body))

	for _, rule := range rules {
		if !rule.matches(normalized) {
			continue
		}
		cooling, err := e.Rules.WithinCooldown(ctx, workspaceID, contactID, rule.ID)
		if err != nil {
			return false, err
		}
		if cooling {
			continue
		}
		tpl, err := e.Templates.GetByID(ctx, rule.TemplateID)
		if err != nil {
			return false, err
		}
		if tpl == nil || tpl.Status != template.StatusApproved {
			continue
		}
		if err := e.Sender.SendTemplate(ctx, workspaceID, contactID, to, rule.TemplateID, nil); err != nil {
			return false, err
		}
		if err := e.Rules.RecordSent(ctx, workspaceID, contactID, rule.ID); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
