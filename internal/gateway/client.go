// Package gateway is the client for the Remote Sync Gateway, the
// authoritative HTTP service for template content and activation flags.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crestbank/notifyd/internal/metrics"
)

// ErrNotFound is returned when the gateway has no template by the
// requested name
var ErrNotFound = errors.New("template not found")

// ErrRejected is returned when the gateway answered but did not accept
// the operation: a non-2xx status or a body other than "success".
// Callers treat it the same as a transport failure, per the dashboard's
// uniform error surface.
var ErrRejected = errors.New("gateway rejected request")

// Client is a Remote Sync Gateway API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient creates a gateway client. The timeout bounds every call;
// a hung gateway must never leave an editing session in Saving or
// Activating indefinitely.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    m,
	}
}

// FetchByName fetches a single template record by its remote name
func (c *Client) FetchByName(ctx context.Context, name string) (*RemoteTemplate, error) {
	resp, err := c.do(ctx, "fetch_by_name", http.MethodGet, "/api/templates/name/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.countFailure("fetch_by_name", "status")
		return nil, fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}

	var tmpl RemoteTemplate
	if err := json.NewDecoder(resp.Body).Decode(&tmpl); err != nil {
		c.countFailure("fetch_by_name", "decode")
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &tmpl, nil
}

// FetchByFilters lists the gateway's template names and active flags
// for a (channel, category) pair. Flags arriving as "true"/"false"
// strings are normalized.
func (c *Client) FetchByFilters(ctx context.Context, channel, category string) ([]TemplateFlag, error) {
	params := url.Values{}
	params.Set("channel", channel)
	params.Set("category", category)

	resp, err := c.do(ctx, "fetch_by_filters", http.MethodGet, "/api/templates/by-filters?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.countFailure("fetch_by_filters", "status")
		return nil, fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}

	var flags []TemplateFlag
	if err := json.NewDecoder(resp.Body).Decode(&flags); err != nil {
		c.countFailure("fetch_by_filters", "decode")
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return flags, nil
}

// Create registers a new template with the gateway
func (c *Client) Create(ctx context.Context, req CreateRequest) error {
	return c.expectSuccess(ctx, "create", "/api/templates", req)
}

// UpdateContent writes new content for an existing template
func (c *Client) UpdateContent(ctx context.Context, name, template string) error {
	body := map[string]string{"name": name, "template": template}
	return c.expectSuccess(ctx, "update", "/api/templates/update", body)
}

// Activate sets a template's active flag
func (c *Client) Activate(ctx context.Context, channel, category, name string, active bool) error {
	body := map[string]any{
		"channel":  channel,
		"category": category,
		"name":     name,
		"active":   active,
	}
	return c.expectSuccess(ctx, "activate", "/api/templates/active", body)
}

// NotifyActivation sends the fire-and-forget activation telemetry. The
// response body is ignored; the returned error exists only so the
// caller can log it.
func (c *Client) NotifyActivation(ctx context.Context, notice ActivationNotice) error {
	resp, err := c.do(ctx, "notify_activation", http.MethodPost, "/api/notifications/activate-template", notice)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

// expectSuccess performs a POST whose only accepted outcome is a
// literal "success" body on a 2xx response
func (c *Client) expectSuccess(ctx context.Context, operation, path string, body any) error {
	resp, err := c.do(ctx, operation, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countFailure(operation, "read")
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.countFailure(operation, "status")
		return fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}
	if !IsSuccessBody(data) {
		c.countFailure(operation, "body")
		return fmt.Errorf("%w: unexpected body %q", ErrRejected, truncate(string(data), 64))
	}
	return nil
}

// IsSuccessBody reports whether a response body is the literal
// "success" acknowledgement. The gateway sometimes serves the string
// JSON-encoded ("\"success\"") and sometimes raw with padding; both
// forms are unwrapped before comparison.
func IsSuccessBody(data []byte) bool {
	body := strings.TrimSpace(string(data))
	var unwrapped string
	if err := json.Unmarshal([]byte(body), &unwrapped); err == nil {
		body = strings.TrimSpace(unwrapped)
	}
	return body == "success"
}

func (c *Client) do(ctx context.Context, operation, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.metrics != nil {
		c.metrics.GatewayRequestsTotal.WithLabelValues(operation).Inc()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countFailure(operation, "transport")
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func (c *Client) countFailure(operation, reason string) {
	if c.metrics != nil {
		c.metrics.GatewayFailuresTotal.WithLabelValues(operation, reason).Inc()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
