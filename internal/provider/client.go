// Package provider is the HTTP client for the single upstream messaging
// provider (spec §6.1): outbound sends, template lifecycle calls, and
// on-demand media fetch, all authenticated with the central BSP system
// token — never a per-tenant token.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config holds the provider-facing settings loaded once at startup.
type Config struct {
	BaseURL          string
	APIVersion       string
	SystemUserToken  string
	ParentWABAID     string
	ParentBusinessID string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type apiErrorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Code      int    `json:"code"`
		ErrorData struct {
			Details string `json:"details"`
		} `json:"error_data"`
	} `json:"error"`
}

// do executes req, decoding either into out on 2xx or a classified *Error
// on failure.
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.SystemUserToken)
	req = req.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provider: read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("provider: decode response: %w", err)
			}
		}
		return nil
	}

	var env apiErrorEnvelope
	_ = json.Unmarshal(body, &env)
	return classify(resp.StatusCode, env.Error.Code, env.Error.Message)
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.APIVersion, path)
}

// SendMessagesResponse is the subset of the provider's send response the
// gateway persists.
type SendMessagesResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendMessage posts an arbitrary message payload (template or session
// text) to phoneNumberID's messages endpoint.
func (c *Client) SendMessage(ctx context.Context, phoneNumberID string, payload any) (*SendMessagesResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("provider: marshal payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.url(phoneNumberID+"/messages"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out SendMessagesResponse
	if err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitTemplate posts a template submission to the parent WABA using the
// namespaced provider name. Status is never trusted from this response;
// only webhook updates are authoritative (§6.1).
func (c *Client) SubmitTemplate(ctx context.Context, providerName string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("provider: marshal template payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.url(c.cfg.ParentWABAID+"/message_templates"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, nil)
}

// DeleteTemplate removes a template by its provider-side name.
func (c *Client) DeleteTemplate(ctx context.Context, providerName string) error {
	req, err := http.NewRequest(http.MethodDelete, c.url(c.cfg.ParentWABAID+"/message_templates?name="+providerName), nil)
	if err != nil {
		return fmt.Errorf("provider: build request: %w", err)
	}
	return c.do(ctx, req, nil)
}
