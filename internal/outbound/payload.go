package outbound

import (
	"strconv"
	"strings"

	"github.com/relaywave/bsp-gateway/internal/template"
)

type templateParam struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Image      *media `json:"image,omitempty"`
	Video      *media `json:"video,omitempty"`
	Document   *media `json:"document,omitempty"`
	Coupon     string `json:"coupon_code,omitempty"`
}

type media struct {
	Link string `json:"link"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	SubType    string          `json:"sub_type,omitempty"`
	Index      string          `json:"index,omitempty"`
	Parameters []templateParam `json:"parameters,omitempty"`
}

type providerTemplatePayload struct {
	Name       string `json:"name"`
	Language   struct {
		Code string `json:"code"`
	} `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type providerMessageEnvelope struct {
	MessagingProduct string                  `json:"messaging_product"`
	To               string                  `json:"to"`
	Type             string                  `json:"type"`
	Template         providerTemplatePayload `json:"template"`
}

// BuildProviderPayload assembles the provider send payload in component
// order header, body, button(s) (§4.7 step 8). Components array is
// omitted entirely when every component is static (no placeholders, no
// media, no dynamic buttons), matching the provider's own convention of
// not sending an empty/no-op components list.
func BuildProviderPayload(providerName, language, to string, tpl *template.Template, vars Variables) map[string]any {
	var components []templateComponent

	for _, c := range tpl.Components {
		switch strings.ToLower(c.Type) {
		case "header":
			if vars.HeaderMedia != "" || placeholderCount(c.Text) > 0 {
				components = append(components, headerComponent(c, vars))
			}
		case "body":
			if n := placeholderCount(c.Text); n > 0 {
				components = append(components, templateComponent{
					Type:       "body",
					Parameters: textParams(vars.Body),
				})
			}
		case "button":
			components = append(components, buttonComponents(c, vars)...)
		}
	}

	envelope := providerMessageEnvelope{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
	}
	envelope.Template.Name = providerName
	envelope.Template.Language.Code = language
	envelope.Template.Components = components

	return map[string]any{
		"messaging_product": envelope.MessagingProduct,
		"to":                envelope.To,
		"type":              envelope.Type,
		"template":          envelope.Template,
	}
}

func headerComponent(c template.Component, vars Variables) templateComponent {
	if vars.HeaderMedia != "" {
		return templateComponent{
			Type: "header",
			Parameters: []templateParam{
				{Type: "image", Image: &media{Link: vars.HeaderMedia}},
			},
		}
	}
	if placeholderCount(c.Text) > 0 {
		return templateComponent{Type: "header", Parameters: textParams(vars.Header)}
	}
	return templateComponent{Type: "header"}
}

func buttonComponents(c template.Component, vars Variables) []templateComponent {
	if c.ButtonSubType == "copy_code" {
		if len(vars.Buttons) == 0 {
			return nil
		}
		return []templateComponent{{
			Type:    "button",
			SubType: "copy_code",
			Index:   "0",
			Parameters: []templateParam{
				{Type: "coupon_code", Coupon: vars.Buttons[0]},
			},
		}}
	}

	var out []templateComponent
	for i, v := range vars.Buttons {
		out = append(out, templateComponent{
			Type:    "button",
			SubType: "url",
			Index:   strconv.Itoa(i),
			Parameters: []templateParam{
				{Type: "text", Text: v},
			},
		})
	}
	return out
}

func textParams(values []string) []templateParam {
	params := make([]templateParam, 0, len(values))
	for _, v := range values {
		params = append(params, templateParam{Type: "text", Text: v})
	}
	return params
}

