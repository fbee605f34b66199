package provider

import (
	"testing"

	"github.com/google/uuid"
)

func TestTemplateNamespace_RoundTrip(t *testing.T) {
	workspaceID := uuid.MustParse("11111111-2222-3333-4444-555566667777")
	name := TemplateNamespace(workspaceID, "order_shipped")

	suffix, localName, ok := SplitNamespace(name)
	if !ok {
		t.Fatalf("expected SplitNamespace to parse %q", name)
	}
	if suffix != Suffix(workspaceID) {
		t.Fatalf("expected suffix %q, got %q", Suffix(workspaceID), suffix)
	}
	if localName != "order_shipped" {
		t.Fatalf("expected local name order_shipped, got %q", localName)
	}
}

func TestSuffix_IsLastEightCharacters(t *testing.T) {
	workspaceID := uuid.MustParse("11111111-2222-3333-4444-555566667777")
	s := Suffix(workspaceID)
	if len(s) != 8 {
		t.Fatalf("expected 8-char suffix, got %q (%d chars)", s, len(s))
	}
	full := workspaceID.String()
	if s != full[len(full)-8:] {
		t.Fatalf("expected suffix to be the last 8 characters of %q, got %q", full, s)
	}
}

func TestSplitNamespace_RejectsMalformedNames(t *testing.T) {
	cases := []string{
		"no_underscore_at_wrong_position",
		"short_x",
		"",
		"_leadingunderscore",
	}
	for _, c := range cases {
		if _, _, ok := SplitNamespace(c); ok {
			t.Errorf("expected SplitNamespace(%q) to fail", c)
		}
	}
}

func TestSplitNamespace_LocalNameMayContainUnderscores(t *testing.T) {
	suffix, local, ok := SplitNamespace("abcdefgh_order_shipped_v2")
	if !ok {
		t.Fatal("expected split to succeed")
	}
	if suffix != "abcdefgh" || local != "order_shipped_v2" {
		t.Fatalf("unexpected split: suffix=%q local=%q", suffix, local)
	}
}
