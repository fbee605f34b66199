package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relaywave/bsp-gateway/internal/pagex"
	"github.com/relaywave/bsp-gateway/internal/webhook"
)

type fakeWebhookLogLister struct {
	logs       []webhook.Log
	next       pagex.Cursor
	gotAfter   pagex.Cursor
	gotLimit   int
	gotWorkspace uuid.UUID
}

func (f *fakeWebhookLogLister) List(ctx context.Context, workspaceID uuid.UUID, after pagex.Cursor, limit int) ([]webhook.Log, pagex.Cursor, error) {
	f.gotWorkspace = workspaceID
	f.gotAfter = after
	f.gotLimit = limit
	return f.logs, f.next, nil
}

func TestListWebhookLogs_DefaultLimitAndFirstPage(t *testing.T) {
	workspaceID := uuid.New()
	lister := &fakeWebhookLogLister{logs: []webhook.Log{{ID: uuid.New(), EventType: "message"}}}
	s := &Server{WebhookLogs: lister}

	r := chi.NewRouter()
	r.Get("/admin/workspaces/{workspaceId}/webhook-logs", s.ListWebhookLogs)

	req := httptest.NewRequest(http.MethodGet, "/admin/workspaces/"+workspaceID.String()+"/webhook-logs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if lister.gotWorkspace != workspaceID {
		t.Fatalf("expected workspace %s, got %s", workspaceID, lister.gotWorkspace)
	}
	if lister.gotLimit != 50 {
		t.Fatalf("expected default limit 50, got %d", lister.gotLimit)
	}
	if lister.gotAfter != (pagex.Cursor{}) {
		t.Fatalf("expected zero cursor on first page, got %+v", lister.gotAfter)
	}
}

func TestListWebhookLogs_CursorAndLimitPassthrough(t *testing.T) {
	workspaceID := uuid.New()
	cursor := pagex.Cursor{Ms: 1730635200000, UID: uuid.New()}
	lister := &fakeWebhookLogLister{next: cursor}
	s := &Server{WebhookLogs: lister}

	r := chi.NewRouter()
	r.Get("/admin/workspaces/{workspaceId}/webhook-logs", s.ListWebhookLogs)

	req := httptest.NewRequest(http.MethodGet,
		"/admin/workspaces/"+workspaceID.String()+"/webhook-logs?limit=10&cursor="+pagex.Encode(cursor), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if lister.gotLimit != 10 {
		t.Fatalf("expected limit 10, got %d", lister.gotLimit)
	}
	if lister.gotAfter != cursor {
		t.Fatalf("expected cursor %+v passed through, got %+v", cursor, lister.gotAfter)
	}
}

func TestListWebhookLogs_InvalidWorkspaceID(t *testing.T) {
	s := &Server{WebhookLogs: &fakeWebhookLogLister{}}
	r := chi.NewRouter()
	r.Get("/admin/workspaces/{workspaceId}/webhook-logs", s.ListWebhookLogs)

	req := httptest.NewRequest(http.MethodGet, "/admin/workspaces/not-a-uuid/webhook-logs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		q    string
		def  int
		max  int
		want int
	}{
		{"", 50, 200, 50},
		{"10", 50, 200, 10},
		{"0", 50, 200, 50},
		{"-5", 50, 200, 50},
		{"abc", 50, 200, 50},
		{"500", 50, 200, 200},
	}
	for _, c := range cases {
		if got := parseLimit(c.q, c.def, c.max); got != c.want {
			t.Errorf("parseLimit(%q, %d, %d) = %d, want %d", c.q, c.def, c.max, got, c.want)
		}
	}
}
