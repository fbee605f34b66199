package template

import "testing"

func TestClassifyRejection_KnownCategories(t *testing.T) {
	cases := []struct {
		reason   string
		category string
	}{
		{"Promotional language in UTILITY template", "PROMOTIONAL_CONTENT"},
		{"This looks like a scam or phishing attempt", "SCAM"},
		{"Abusive content detected", "ABUSIVE_CONTENT"},
		{"Invalid format for header", "INVALID_FORMAT"},
		{"Missing example values for variables", "MISSING_EXAMPLE"},
		{"Invalid URL in button", "INVALID_URL"},
		{"Unsupported media type", "INVALID_MEDIA"},
		{"Duplicate template content", "DUPLICATE"},
		{"Contains a protected trademark", "TRADEMARK"},
		{"Violates provider policy", "POLICY_VIOLATION"},
	}
	for _, c := range cases {
		got, help := ClassifyRejection(c.reason)
		if got != c.category {
			t.Errorf("ClassifyRejection(%q) = %q, want %q", c.reason, got, c.category)
		}
		if help == "" {
			t.Errorf("ClassifyRejection(%q) returned empty help text", c.reason)
		}
	}
}

func TestClassifyRejection_UnknownFallsBackToOther(t *testing.T) {
	category, help := ClassifyRejection("something entirely unrelated to any rule")
	if category != "OTHER" {
		t.Fatalf("expected OTHER, got %q", category)
	}
	if help != categoryHelp["OTHER"] {
		t.Fatalf("expected OTHER help text, got %q", help)
	}
}

func TestClassifyRejection_CaseInsensitive(t *testing.T) {
	got, _ := ClassifyRejection("SCAM DETECTED")
	if got != "SCAM" {
		t.Fatalf("expected case-insensitive match, got %q", got)
	}
}
