package template

import "regexp"

// rejectionRule pairs a case-insensitive pattern with the fixed category
// and help text it resolves to. Compiled once at package init, mirroring
// the config-validated-once-at-startup principle applied to this
// read-only lookup table.
type rejectionRule struct {
	pattern  *regexp.Regexp
	category string
	helpText string
}

var rejectionRules = []rejectionRule{
	{regexp.MustCompile(`(?i)scam|fraud|phishing`), "SCAM", "The content was flagged as a scam or fraud attempt."},
	{regexp.MustCompile(`(?i)promotional|marketing language in (a |an )?utility`), "PROMOTIONAL_CONTENT", "Promotional language was detected in a non-marketing template."},
	{regexp.MustCompile(`(?i)abusive|hate|harassment`), "ABUSIVE_CONTENT", "The content was flagged as abusive."},
	{regexp.MustCompile(`(?i)invalid format|formatting`), "INVALID_FORMAT", "The template format does not meet provider requirements."},
	{regexp.MustCompile(`(?i)missing example|example values?`), "MISSING_EXAMPLE", "Variable example values are required and were missing."},
	{regexp.MustCompile(`(?i)invalid url|malformed url`), "INVALID_URL", "A button or header URL was invalid."},
	{regexp.MustCompile(`(?i)invalid media|unsupported media`), "INVALID_MEDIA", "The header media type is unsupported or invalid."},
	{regexp.MustCompile(`(?i)duplicate`), "DUPLICATE", "A template with equivalent content already exists."},
	{regexp.MustCompile(`(?i)trademark|brand name`), "TRADEMARK", "The content referenced a protected trademark or brand."},
	{regexp.MustCompile(`(?i)polic(y|ies) violation|violates.*polic`), "POLICY_VIOLATION", "The content violates provider policy."},
}

// categoryHelp maps the fixed category set to help text, used when a
// category is known without re-matching the reason (e.g. re-rendering a
// stored RejectionCategory).
var categoryHelp = map[string]string{
	"SCAM":                "The content was flagged as a scam or fraud attempt.",
	"PROMOTIONAL_CONTENT": "Promotional language was detected in a non-marketing template.",
	"ABUSIVE_CONTENT":     "The content was flagged as abusive.",
	"INVALID_FORMAT":      "The template format does not meet provider requirements.",
	"MISSING_EXAMPLE":     "Variable example values are required and were missing.",
	"INVALID_URL":         "A button or header URL was invalid.",
	"INVALID_MEDIA":       "The header media type is unsupported or invalid.",
	"DUPLICATE":           "A template with equivalent content already exists.",
	"TRADEMARK":           "The content referenced a protected trademark or brand.",
	"POLICY_VIOLATION":    "The content violates provider policy.",
	"OTHER":               "The rejection reason did not match a known category.",
}

// ClassifyRejection resolves a free-text provider rejection reason to the
// fixed category set plus its help text (§4.6).
func ClassifyRejection(reason string) (category, helpText string) {
	for _, rule := range rejectionRules {
		if rule.pattern.MatchString(reason) {
			return rule.category, rule.helpText
		}
	}
	return "OTHER", categoryHelp["OTHER"]
}
