package webhook

import "testing"

func TestRedactPayload_MasksPhoneAndRedactsBody(t *testing.T) {
	in := map[string]any{
		"from": "919876543210",
		"messages": []any{
			map[string]any{
				"from": "919876543210",
				"text": map[string]any{"body": "hello there"},
			},
		},
		"contacts": []any{
			map[string]any{"profile": map[string]any{"name": "Alex Doe"}},
		},
	}

	out := RedactPayload(in).(map[string]any)

	if out["from"] != "***3210" {
		t.Fatalf("expected masked phone, got %v", out["from"])
	}
	msgs := out["messages"].([]any)
	msg := msgs[0].(map[string]any)
	if msg["from"] != "***3210" {
		t.Fatalf("expected nested phone masked, got %v", msg["from"])
	}
	text := msg["text"].(map[string]any)
	if text["body"] != redactedPlaceholder {
		t.Fatalf("expected body redacted, got %v", text["body"])
	}
	contacts := out["contacts"].([]any)
	profile := contacts[0].(map[string]any)["profile"].(map[string]any)
	if profile["name"] != redactedPlaceholder {
		t.Fatalf("expected name redacted, got %v", profile["name"])
	}
}

func TestRedactPayload_ShortPhoneFullyRedacted(t *testing.T) {
	in := map[string]any{"wa_id": "123"}
	out := RedactPayload(in).(map[string]any)
	if out["wa_id"] != redactedPlaceholder {
		t.Fatalf("expected short phone fully redacted, got %v", out["wa_id"])
	}
}

func TestRedactPayload_NonSensitiveFieldsPreserved(t *testing.T) {
	in := map[string]any{"phone_number_id": "PN1", "type": "text"}
	out := RedactPayload(in).(map[string]any)
	if out["phone_number_id"] != "PN1" || out["type"] != "text" {
		t.Fatalf("expected non-sensitive fields preserved unchanged, got %#v", out)
	}
}

func TestRedactPayload_ScalarPassthrough(t *testing.T) {
	if got := RedactPayload(float64(42)); got != float64(42) {
		t.Fatalf("expected scalar passthrough, got %v", got)
	}
}
