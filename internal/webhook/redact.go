package webhook

const redactedPlaceholder = "[REDACTED]"

// sensitiveFields are replaced outright wherever they appear in a webhook
// payload before persistence (§4.1 step 5).
var sensitiveFields = map[string]bool{
	"body":        true,
	"caption":     true,
	"name":        true,
	"first_name":  true,
	"last_name":   true,
	"formatted_name": true,
	"text":        true,
	"button_reply": true,
	"list_reply":  true,
	"interactive": true,
}

// phoneFields are masked to their last four digits rather than fully
// redacted, since the last four digits are useful for support lookups
// without exposing the full number.
var phoneFields = map[string]bool{
	"wa_id": true,
	"from":  true,
	"to":    true,
	"display_phone_number": true,
}

func maskPhone(s string) string {
	if len(s) <= 4 {
		return redactedPlaceholder
	}
	return "***" + s[len(s)-4:]
}

// RedactPayload walks a decoded JSON payload in place, masking phone
// numbers to their last four digits and replacing message bodies, contact
// names, and interactive payloads with a fixed placeholder. Unknown shapes
// are walked recursively so nested arrays/objects inside a change object
// are covered without a schema specific to one event type.
func RedactPayload(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, nested := range val {
			switch {
			case sensitiveFields[k]:
				out[k] = redactedPlaceholder
			case phoneFields[k]:
				if s, ok := nested.(string); ok {
					out[k] = maskPhone(s)
				} else {
					out[k] = RedactPayload(nested)
				}
			default:
				out[k] = RedactPayload(nested)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, nested := range val {
			out[i] = RedactPayload(nested)
		}
		return out
	default:
		return v
	}
}
