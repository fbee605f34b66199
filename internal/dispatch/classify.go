// Package dispatch drains the at-least-once webhook queue, classifies
// each change object inside an admitted payload, resolves tenant context,
// and invokes the per-event-type handler (§4.2).
package dispatch

import (
	"encoding/json"
	"fmt"
)

// ChangeKind is the tagged-variant discriminant for a single change
// object, matched with a switch in dispatcher.go — never duck-typed field
// probing (§9).
type ChangeKind string

const (
	KindMessage                   ChangeKind = "message"
	KindStatus                    ChangeKind = "status"
	KindTemplateStatus            ChangeKind = "template_status"
	KindAccountUpdate             ChangeKind = "account_update"
	KindBusinessCapabilityUpdate  ChangeKind = "business_capability_update"
	KindAdUpdate                  ChangeKind = "ad_update"
	KindUnknown                   ChangeKind = "unknown"
)

// AdSubKind further discriminates KindAdUpdate.
type AdSubKind string

const (
	AdReview          AdSubKind = "ad_review"
	AdStatusUpdate    AdSubKind = "ad_status_update"
	AdAccountDisabled AdSubKind = "account_disabled"
)

var adFields = map[string]AdSubKind{
	"ad_review":        AdReview,
	"ad_status_update": AdStatusUpdate,
	"account_disabled": AdAccountDisabled,
}

// ChangeObject is one classified entry from the provider's
// entry[].changes[] array.
type ChangeObject struct {
	Kind          ChangeKind
	AdSubKind     AdSubKind
	Field         string
	WABAID        string
	PhoneNumberID string
	Value         map[string]any
}

type envelope struct {
	Entry []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string         `json:"field"`
			Value map[string]any `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Classify parses a raw webhook body into its constituent change objects.
func Classify(body []byte) ([]ChangeObject, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("dispatch: classify: %w", err)
	}

	var out []ChangeObject
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			out = append(out, classifyOne(entry.ID, change.Field, change.Value))
		}
	}
	return out, nil
}

func classifyOne(wabaID, field string, value map[string]any) ChangeObject {
	obj := ChangeObject{Field: field, WABAID: wabaID, Value: value}
	if meta, ok := value["metadata"].(map[string]any); ok {
		if phoneID, ok := meta["phone_number_id"].(string); ok {
			obj.PhoneNumberID = phoneID
		}
	}

	switch {
	case value["statuses"] != nil:
		obj.Kind = KindStatus
	case value["messages"] != nil:
		obj.Kind = KindMessage
	case field == "message_template_status_update":
		obj.Kind = KindTemplateStatus
	case field == "account_update":
		obj.Kind = KindAccountUpdate
	case field == "business_capability_update":
		obj.Kind = KindBusinessCapabilityUpdate
	default:
		if sub, ok := adFields[field]; ok {
			obj.Kind = KindAdUpdate
			obj.AdSubKind = sub
		} else {
			obj.Kind = KindUnknown
		}
	}
	return obj
}
