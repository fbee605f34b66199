package outbound

import (
	"testing"

	"github.com/relaywave/bsp-gateway/internal/template"
)

func TestBuildProviderPayload_BodyOnlyTemplate(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "body", Text: "Hi {{1}}, your order {{2}} shipped."},
		},
	}
	payload := BuildProviderPayload("abcd1234_order_shipped", "en_US", "919876543210", tpl,
		Variables{Body: []string{"Alex", "A123"}})

	tplPayload, ok := payload["template"].(providerTemplatePayload)
	if !ok {
		t.Fatalf("expected template payload, got %T", payload["template"])
	}
	if tplPayload.Name != "abcd1234_order_shipped" {
		t.Fatalf("unexpected provider name %q", tplPayload.Name)
	}
	if len(tplPayload.Components) != 1 {
		t.Fatalf("expected exactly one (body) component, got %d", len(tplPayload.Components))
	}
	body := tplPayload.Components[0]
	if body.Type != "body" {
		t.Fatalf("expected body component, got %q", body.Type)
	}
	if len(body.Parameters) != 2 || body.Parameters[0].Text != "Alex" || body.Parameters[1].Text != "A123" {
		t.Fatalf("unexpected body parameters: %+v", body.Parameters)
	}
}

func TestBuildProviderPayload_StaticTemplateOmitsComponents(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "header", Text: "Thanks"},
			{Type: "body", Text: "Thanks for shopping with us."},
		},
	}
	payload := BuildProviderPayload("abcd1234_thanks", "en_US", "919876543210", tpl, Variables{})
	tplPayload := payload["template"].(providerTemplatePayload)
	if len(tplPayload.Components) != 0 {
		t.Fatalf("expected no components for a fully static template, got %+v", tplPayload.Components)
	}
}

func TestBuildProviderPayload_MediaHeader(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "header", Text: ""},
		},
	}
	payload := BuildProviderPayload("abcd1234_promo", "en_US", "919876543210", tpl,
		Variables{HeaderMedia: "https://cdn.example.com/a.jpg"})
	tplPayload := payload["template"].(providerTemplatePayload)
	if len(tplPayload.Components) != 1 {
		t.Fatalf("expected one header component, got %d", len(tplPayload.Components))
	}
	header := tplPayload.Components[0]
	if header.Type != "header" || len(header.Parameters) != 1 || header.Parameters[0].Image == nil {
		t.Fatalf("expected image header parameter, got %+v", header)
	}
	if header.Parameters[0].Image.Link != "https://cdn.example.com/a.jpg" {
		t.Fatalf("unexpected image link %q", header.Parameters[0].Image.Link)
	}
}

func TestBuildProviderPayload_ButtonCopyCode(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "button", ButtonSubType: "copy_code"},
		},
	}
	payload := BuildProviderPayload("abcd1234_coupon", "en_US", "919876543210", tpl,
		Variables{Buttons: []string{"SAVE20"}})
	tplPayload := payload["template"].(providerTemplatePayload)
	if len(tplPayload.Components) != 1 {
		t.Fatalf("expected one button component, got %d", len(tplPayload.Components))
	}
	btn := tplPayload.Components[0]
	if btn.SubType != "copy_code" || btn.Parameters[0].Coupon != "SAVE20" {
		t.Fatalf("unexpected copy_code button: %+v", btn)
	}
}

func TestBuildProviderPayload_ButtonDynamicURL(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "button", ButtonSubType: "url", Text: "Track {{1}}"},
		},
	}
	payload := BuildProviderPayload("abcd1234_track", "en_US", "919876543210", tpl,
		Variables{Buttons: []string{"A123"}})
	tplPayload := payload["template"].(providerTemplatePayload)
	if len(tplPayload.Components) != 1 {
		t.Fatalf("expected one button component, got %d", len(tplPayload.Components))
	}
	btn := tplPayload.Components[0]
	if btn.SubType != "url" || btn.Index != "0" || btn.Parameters[0].Type != "text" || btn.Parameters[0].Text != "A123" {
		t.Fatalf("unexpected url button: %+v", btn)
	}
}
