package template

import "testing"

func TestEventStatusMap_CoversSpecifiedEvents(t *testing.T) {
	cases := map[string]Status{
		"APPROVED":           StatusApproved,
		"REINSTATED":         StatusApproved,
		"REJECTED":           StatusRejected,
		"PENDING":            StatusPending,
		"PENDING_DELETION":   StatusPending,
		"IN_APPEAL":          StatusPending,
		"QUALITY_PENDING":    StatusPending,
		"DELETED":            StatusDeleted,
		"DISABLED":           StatusDisabled,
		"FLAGGED":            StatusDisabled,
		"FLAGGED_FOR_REVIEW": StatusDisabled,
		"AUTO_DISABLED":      StatusDisabled,
		"BLOCKED":            StatusDisabled,
		"PAUSED":             StatusPaused,
	}
	for event, want := range cases {
		got, ok := eventStatusMap[event]
		if !ok {
			t.Errorf("eventStatusMap missing entry for %q", event)
			continue
		}
		if got != want {
			t.Errorf("eventStatusMap[%q] = %q, want %q", event, got, want)
		}
	}
}

func TestEventStatusMap_UnknownEventAbsent(t *testing.T) {
	if _, ok := eventStatusMap["SOMETHING_MADE_UP"]; ok {
		t.Fatal("expected unknown event type to be absent from the map")
	}
}
