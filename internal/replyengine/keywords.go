package replyengine

import "strings"

var optOutKeywords = map[string]struct{}{
	"stop": {}, "unsubscribe": {}, "cancel": {}, "end": {}, "quit": {},
}

var optInKeywords = map[string]struct{}{
	"start": {}, "subscribe": {}, "unstop": {}, "yes": {},
}

// Transition is the outcome of matching an inbound message body against
// the opt-out/opt-in keyword set (§4.4 step 3).
type Transition int

const (
	NoTransition Transition = iota
	OptOutTransition
	OptInTransition
)

// DetectOptTransition normalizes body (trim, lowercase) and checks it for
// an exact opt-out or opt-in keyword match.
func DetectOptTransition(body string) Transition {
	normalized := strings.ToLower(strings.TrimSpace(body))
	if _, ok := optOutKeywords[normalized]; ok {
		return OptOutTransition
	}
	if _, ok := optInKeywords[normalized]; ok {
		return OptInTransition
	}
	return NoTransition
}
