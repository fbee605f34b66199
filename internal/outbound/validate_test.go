package outbound

import (
	"errors"
	"testing"

	"github.com/relaywave/bsp-gateway/internal/template"
)

func TestNormalizeRecipient(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		cc      string
		want    string
		wantErr bool
	}{
		{"plain digits", "9198765 43210", "91", "919876543210", false},
		{"strips punctuation", "+91-9876-543-210", "91", "919876543210", false},
		{"leading zero mapped to country code", "09876543210", "91", "919876543210", false},
		{"too short rejected", "12345", "91", "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := NormalizeRecipient(c.raw, c.cc)
			if c.wantErr {
				var obErr *Error
				if !errors.As(err, &obErr) || obErr.Kind != ErrInvalidRecipient {
					t.Fatalf("expected ErrInvalidRecipient, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("NormalizeRecipient(%q) = %q, want %q", c.raw, got, c.want)
			}
		})
	}
}

func TestValidateVariableArity_MissingBodyVariable(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "body", Text: "Hi {{1}}, your order {{2}} shipped."},
		},
	}
	err := ValidateVariableArity(tpl, Variables{Body: []string{"Alex"}})
	var obErr *Error
	if !errors.As(err, &obErr) || obErr.Kind != ErrVariableCountMismatch {
		t.Fatalf("expected ErrVariableCountMismatch, got %v", err)
	}
}

func TestValidateVariableArity_SatisfiedPasses(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "header", Text: "Order update"},
			{Type: "body", Text: "Hi {{1}}, your order {{2}} shipped."},
		},
	}
	err := ValidateVariableArity(tpl, Variables{Body: []string{"Alex", "A123"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateVariableArity_StaticTemplateNeedsNoVariables(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "body", Text: "Thanks for shopping with us."},
		},
	}
	if err := ValidateVariableArity(tpl, Variables{}); err != nil {
		t.Fatalf("expected static template to validate with no variables, got %v", err)
	}
}

func TestValidateVariableArity_ButtonDynamicURL(t *testing.T) {
	tpl := &template.Template{
		Components: []template.Component{
			{Type: "button", ButtonSubType: "url", Text: "Track order {{1}}"},
		},
	}
	if err := ValidateVariableArity(tpl, Variables{}); err == nil {
		t.Fatal("expected missing button variable to fail")
	}
	if err := ValidateVariableArity(tpl, Variables{Buttons: []string{"A123"}}); err != nil {
		t.Fatalf("expected satisfied button variable to pass, got %v", err)
	}
}
