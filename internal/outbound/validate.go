package outbound

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/relaywave/bsp-gateway/internal/template"
)

// placeholderPattern matches {{1}}, {{2}}, ... positional variables,
// compiled once and reused for every component's arity check (§4.7 step
// 6), mirroring the rejection-regex-table idiom in internal/template.
var placeholderPattern = regexp.MustCompile(`\{\{(\d+)\}\}`)

// placeholderCount returns the number of distinct {{N}} indices in text.
func placeholderCount(text string) int {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	seen := map[string]struct{}{}
	for _, m := range matches {
		seen[m[1]] = struct{}{}
	}
	return len(seen)
}

// NormalizeRecipient strips non-digits, maps a leading zero to
// defaultCountryCode, and rejects numbers shorter than 10 digits (§4.7
// step 1).
func NormalizeRecipient(raw, defaultCountryCode string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	normalized := digits.String()
	if strings.HasPrefix(normalized, "0") {
		normalized = defaultCountryCode + strings.TrimPrefix(normalized, "0")
	}
	if len(normalized) < 10 {
		return "", newError(ErrInvalidRecipient, "recipient has fewer than 10 digits")
	}
	return normalized, nil
}

// ValidateVariableArity checks that every {{N}} placeholder in the
// template's header/body/button components has a corresponding value
// supplied in vars (§4.7 step 6).
func ValidateVariableArity(tpl *template.Template, vars Variables) error {
	for _, c := range tpl.Components {
		switch strings.ToLower(c.Type) {
		case "header":
			if n := placeholderCount(c.Text); n > 0 && len(vars.Header) < n {
				return newError(ErrVariableCountMismatch, "header requires "+strconv.Itoa(n)+" variables")
			}
		case "body":
			if n := placeholderCount(c.Text); n > 0 && len(vars.Body) < n {
				return newError(ErrVariableCountMismatch, "body requires "+strconv.Itoa(n)+" variables")
			}
		case "button":
			if n := placeholderCount(c.Text); n > 0 && len(vars.Buttons) < n {
				return newError(ErrVariableCountMismatch, "button requires "+strconv.Itoa(n)+" variables")
			}
		}
	}
	return nil
}
