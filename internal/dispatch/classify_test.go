package dispatch

import "testing"

func TestClassify_Message(t *testing.T) {
	body := []byte(`{
		"entry": [{"id":"WABA1","changes":[{"field":"messages","value":{
			"metadata":{"phone_number_id":"PN1"},
			"messages":[{"from":"919876543210","type":"text"}]
		}}]}]
	}`)
	objs, err := Classify(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 {
		t.Fatalf("expected 1 change object, got %d", len(objs))
	}
	if objs[0].Kind != KindMessage {
		t.Fatalf("expected KindMessage, got %v", objs[0].Kind)
	}
	if objs[0].PhoneNumberID != "PN1" {
		t.Fatalf("expected phone_number_id PN1, got %q", objs[0].PhoneNumberID)
	}
}

func TestClassify_Status(t *testing.T) {
	body := []byte(`{"entry":[{"id":"WABA1","changes":[{"field":"messages","value":{
		"statuses":[{"id":"wamid.1","status":"delivered"}]
	}}]}]}`)
	objs, err := Classify(body)
	if err != nil {
		t.Fatal(err)
	}
	if objs[0].Kind != KindStatus {
		t.Fatalf("expected KindStatus, got %v", objs[0].Kind)
	}
}

func TestClassify_TemplateStatus(t *testing.T) {
	body := []byte(`{"entry":[{"id":"WABA1","changes":[{"field":"message_template_status_update","value":{
		"event":"APPROVED"
	}}]}]}`)
	objs, err := Classify(body)
	if err != nil {
		t.Fatal(err)
	}
	if objs[0].Kind != KindTemplateStatus {
		t.Fatalf("expected KindTemplateStatus, got %v", objs[0].Kind)
	}
}

func TestClassify_AdUpdate(t *testing.T) {
	body := []byte(`{"entry":[{"id":"WABA1","changes":[{"field":"ad_review","value":{}}]}]}`)
	objs, err := Classify(body)
	if err != nil {
		t.Fatal(err)
	}
	if objs[0].Kind != KindAdUpdate || objs[0].AdSubKind != AdReview {
		t.Fatalf("expected KindAdUpdate/AdReview, got %v/%v", objs[0].Kind, objs[0].AdSubKind)
	}
}

func TestClassify_UnknownFieldFallsBackToUnknown(t *testing.T) {
	body := []byte(`{"entry":[{"id":"WABA1","changes":[{"field":"something_new","value":{}}]}]}`)
	objs, err := Classify(body)
	if err != nil {
		t.Fatal(err)
	}
	if objs[0].Kind != KindUnknown {
		t.Fatalf("expected KindUnknown, got %v", objs[0].Kind)
	}
}

func TestClassify_MultipleEntriesAndChanges(t *testing.T) {
	body := []byte(`{"entry":[
		{"id":"WABA1","changes":[{"field":"messages","value":{"messages":[{}]}}]},
		{"id":"WABA1","changes":[{"field":"account_update","value":{}}, {"field":"business_capability_update","value":{}}]}
	]}`)
	objs, err := Classify(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 3 {
		t.Fatalf("expected 3 change objects, got %d", len(objs))
	}
	if objs[1].Kind != KindAccountUpdate || objs[2].Kind != KindBusinessCapabilityUpdate {
		t.Fatalf("unexpected kinds: %v, %v", objs[1].Kind, objs[2].Kind)
	}
}

func TestClassify_InvalidJSON(t *testing.T) {
	if _, err := Classify([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
