package replyengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FAQEntry is one approved question/answer pair, with variations
// (alternate phrasings) also eligible for overlap matching.
type FAQEntry struct {
	ID         uuid.UUID
	Question   string
	Variations []string
	Answer     string
}

type FAQRepo struct {
	DB *pgxpool.Pool
}

func NewFAQRepo(db *pgxpool.Pool) *FAQRepo {
	return &FAQRepo{DB: db}
}

func (r *FAQRepo) ListActive(ctx context.Context, workspaceID uuid.UUID) ([]FAQEntry, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, question, variations, answer FROM faq_entry WHERE workspace_id = $1 AND active = true
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("replyengine: list faq entries: %w", err)
	}
	defer rows.Close()

	var out []FAQEntry
	for rows.Next() {
		var f FAQEntry
		if err := rows.Scan(&f.ID, &f.Question, &f.Variations, &f.Answer); err != nil {
			return nil, fmt.Errorf("replyengine: scan faq entry: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FAQRepo) IncrementMatchCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, `UPDATE faq_entry SET match_count = match_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("replyengine: increment faq match count: %w", err)
	}
	return nil
}

const faqOverlapThreshold = 0.6

// contentTokens splits text into lowercase words longer than 2 characters
// (§4.4 step 9b: "content-word tokens (length >2)").
func contentTokens(text string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 2 {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

// overlapRatio is |A ∩ B| / |A|, the fraction of the inbound message's
// tokens found in the candidate phrase.
func overlapRatio(inbound, candidate map[string]struct{}) float64 {
	if len(inbound) == 0 {
		return 0
	}
	matched := 0
	for t := range inbound {
		if _, ok := candidate[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(inbound))
}

// FAQBot matches an inbound message against a workspace's FAQ entries by
// token overlap (§4.4 step 9b).
type FAQBot struct {
	Entries *FAQRepo
	Sender  SessionSender
}

func NewFAQBot(entries *FAQRepo, sender SessionSender) *FAQBot {
	return &FAQBot{Entries: entries, Sender: sender}
}

// Try finds the first FAQ entry whose question or any variation overlaps
// the inbound text by at least 60%, sends its answer as a text reply, and
// reports whether a match was sent.
func (b *FAQBot) Try(ctx context.Context, workspaceID, conversationID, contactID uuid.UUID, to, body string) (bool, error) {
	entries, err := b.Entries.ListActive(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	inbound := contentTokens(body)
	if len(inbound) == 0 {
		return false, nil
	}

	for _, entry := range entries {
		candidates := append([]string{entry.Question}, entry.Variations...)
		for _, c := range candidates {
			if overlapRatio(inbound, contentTokens(c)) >= faqOverlapThreshold {
				if err := b.Sender.SendText(ctx, workspaceID, conversationID, contactID, to, entry.Answer); err != nil {
					return false, err
				}
				if err := b.Entries.IncrementMatchCount(ctx, entry.ID); err != nil {
					return false, err
				}
				return true, nil
			}
		}
	}
	return false, nil
}
