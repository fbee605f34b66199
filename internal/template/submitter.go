package template

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/relaywave/bsp-gateway/internal/provider"
	"github.com/relaywave/bsp-gateway/internal/tenant"
)

// WorkspaceLoader resolves a workspace by id, implemented by
// internal/tenant.Repo.
type WorkspaceLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Workspace, error)
}

// SubmissionLimiter enforces the daily template-submissions limit,
// implemented by internal/ratelimit.Limiter.
type SubmissionLimiter interface {
	CheckTemplateSubmission(ctx context.Context, w *tenant.Workspace) error
}

// ProviderSubmitter posts the provider-side template creation call,
// implemented by internal/provider.Client.
type ProviderSubmitter interface {
	SubmitTemplate(ctx context.Context, providerName string, payload any) error
}

// UsageCounter bumps the workspace's daily template-submission counter,
// implemented by internal/tenant.Repo.
type UsageCounter interface {
	IncrementTemplateSubmissions(ctx context.Context, id uuid.UUID) error
}

// Submitter implements the template-creation half of §4.6: validate the
// workspace against the daily submission limit, persist a DRAFT row,
// submit it to the provider under its namespaced name, and bump the
// counter the limiter reads on the next attempt. The provider's response
// is never trusted for status — only a later webhook moves the template
// out of DRAFT, same as the rest of the reconciliation state machine.
type Submitter struct {
	Workspaces WorkspaceLoader
	Limiter    SubmissionLimiter
	Provider   ProviderSubmitter
	Usage      UsageCounter
	Templates  *Repo
}

func NewSubmitter(workspaces WorkspaceLoader, limiter SubmissionLimiter, prov ProviderSubmitter, usage UsageCounter, templates *Repo) *Submitter {
	return &Submitter{Workspaces: workspaces, Limiter: limiter, Provider: prov, Usage: usage, Templates: templates}
}

// SubmitRequest carries a new template's definition before it has a
// provider-side name or id.
type SubmitRequest struct {
	WorkspaceID        uuid.UUID
	Name               string
	Language           string
	Category           Category
	Components         []Component
	OriginalTemplateID *uuid.UUID
}

// Submit runs the §4.6 submission pipeline for a single new template.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*Template, error) {
	w, err := s.Workspaces.GetByID(ctx, req.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("template: submit load workspace: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("template: submit: workspace %s not found", req.WorkspaceID)
	}

	if err := s.Limiter.CheckTemplateSubmission(ctx, w); err != nil {
		return nil, err
	}

	providerName := provider.TemplateNamespace(req.WorkspaceID, req.Name)

	tpl, err := s.Templates.Create(ctx, &Template{
		WorkspaceID:        req.WorkspaceID,
		Name:               req.Name,
		Language:           req.Language,
		Category:           req.Category,
		Components:         req.Components,
		ProviderName:       providerName,
		OriginalTemplateID: req.OriginalTemplateID,
	})
	if err != nil {
		return nil, fmt.Errorf("template: submit create: %w", err)
	}

	payload := map[string]any{
		"name":       providerName,
		"language":   req.Language,
		"category":   req.Category,
		"components": req.Components,
	}
	if err := s.Provider.SubmitTemplate(ctx, providerName, payload); err != nil {
		return nil, fmt.Errorf("template: submit to provider: %w", err)
	}

	if err := s.Usage.IncrementTemplateSubmissions(ctx, req.WorkspaceID); err != nil {
		return nil, fmt.Errorf("template: increment submission counter: %w", err)
	}

	return tpl, nil
}
