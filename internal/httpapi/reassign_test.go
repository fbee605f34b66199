package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type fakePhoneReassigner struct {
	gotPhoneID     string
	gotWorkspaceID uuid.UUID
	err            error
}

func (f *fakePhoneReassigner) ReassignPhoneNumber(ctx context.Context, phoneID string, newWorkspaceID uuid.UUID) error {
	f.gotPhoneID = phoneID
	f.gotWorkspaceID = newWorkspaceID
	return f.err
}

type fakePhoneCacheInvalidator struct {
	invalidatedBeforeReassign bool
	gotPhoneID                string
}

func (f *fakePhoneCacheInvalidator) Invalidate(phoneID string) {
	f.gotPhoneID = phoneID
	f.invalidatedBeforeReassign = true
}

func TestReassignPhoneNumber_InvalidatesCacheBeforeCommitting(t *testing.T) {
	workspaceID := uuid.New()
	reassigner := &fakePhoneReassigner{}
	cache := &fakePhoneCacheInvalidator{}
	s := &Server{Phones: reassigner, PhoneCache: cache}

	r := chi.NewRouter()
	r.Post("/admin/workspaces/{workspaceId}/phone-number", s.ReassignPhoneNumber)

	body := bytes.NewBufferString(`{"phoneNumberId":"1234567890"}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/workspaces/"+workspaceID.String()+"/phone-number", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !cache.invalidatedBeforeReassign {
		t.Fatal("expected cache Invalidate to be called")
	}
	if reassigner.gotPhoneID != "1234567890" {
		t.Fatalf("expected phone id passed through, got %q", reassigner.gotPhoneID)
	}
	if reassigner.gotWorkspaceID != workspaceID {
		t.Fatalf("expected workspace %s, got %s", workspaceID, reassigner.gotWorkspaceID)
	}
	if cache.gotPhoneID != "1234567890" {
		t.Fatalf("expected invalidate called with same phone id, got %q", cache.gotPhoneID)
	}
}

func TestReassignPhoneNumber_MissingPhoneNumberID(t *testing.T) {
	s := &Server{Phones: &fakePhoneReassigner{}, PhoneCache: &fakePhoneCacheInvalidator{}}
	r := chi.NewRouter()
	r.Post("/admin/workspaces/{workspaceId}/phone-number", s.ReassignPhoneNumber)

	req := httptest.NewRequest(http.MethodPost, "/admin/workspaces/"+uuid.New().String()+"/phone-number", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReassignPhoneNumber_InvalidWorkspaceID(t *testing.T) {
	s := &Server{Phones: &fakePhoneReassigner{}, PhoneCache: &fakePhoneCacheInvalidator{}}
	r := chi.NewRouter()
	r.Post("/admin/workspaces/{workspaceId}/phone-number", s.ReassignPhoneNumber)

	req := httptest.NewRequest(http.MethodPost, "/admin/workspaces/not-a-uuid/phone-number", bytes.NewBufferString(`{"phoneNumberId":"1"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
