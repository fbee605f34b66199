package provider

import (
	"strings"

	"github.com/google/uuid"
)

// suffixLen is the number of trailing characters of a workspace id used as
// its template-namespace prefix (spec §6.2).
const suffixLen = 8

// TemplateNamespace returns {workspaceIdSuffix}_{localName}, the name
// submitted to the provider for a workspace's template.
func TemplateNamespace(workspaceID uuid.UUID, localName string) string {
	return Suffix(workspaceID) + "_" + localName
}

// Suffix returns the last 8 characters of a workspace id (no dashes
// stripped; the id's own hex/dash layout is used verbatim, matching how
// the source system indexes the suffix).
func Suffix(workspaceID uuid.UUID) string {
	s := workspaceID.String()
	if len(s) <= suffixLen {
		return s
	}
	return s[len(s)-suffixLen:]
}

// SplitNamespace reverses TemplateNamespace: given a provider-side name,
// returns the workspace suffix and local name. Used when a webhook or sync
// payload carries only the provider template name and must be routed by
// prefix (§4.2, §6.2).
func SplitNamespace(providerName string) (suffix, localName string, ok bool) {
	idx := strings.Index(providerName, "_")
	if idx < 0 || idx != suffixLen {
		return "", "", false
	}
	return providerName[:idx], providerName[idx+1:], true
}
