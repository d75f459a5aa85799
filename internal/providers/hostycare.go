package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

const hostycareTimeout = 30 * time.Second

// Compile-time checks that HostycareClient satisfies the contracts.
var (
	_ Client  = (*HostycareClient)(nil)
	_ Orderer = (*HostycareClient)(nil)
)

// HostycareClient talks to the billing-oriented Hostycare reseller API.
// Servers are addressed by an opaque service id; the API only exposes
// coarse actions (start/stop/reboot/service-info) plus order placement.
type HostycareClient struct {
	baseURL  string
	username string
	apiKey   string
	client   *http.Client
}

// NewHostycareClient creates a client for the given API endpoint.
func NewHostycareClient(baseURL, username, apiKey string) *HostycareClient {
	return &HostycareClient{
		baseURL:  baseURL,
		username: username,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: hostycareTimeout},
	}
}

// SetTimeout overrides the HTTP timeout. Intended for tests.
func (c *HostycareClient) SetTimeout(d time.Duration) { c.client.Timeout = d }

func (c *HostycareClient) Name() string { return domain.ProviderHostycare }

// Start boots the service's server.
func (c *HostycareClient) Start(ctx context.Context, id string) (Raw, error) {
	return c.do(ctx, http.MethodPost, "/services/"+id+"/start", nil)
}

// Stop powers the service's server off.
func (c *HostycareClient) Stop(ctx context.Context, id string) (Raw, error) {
	return c.do(ctx, http.MethodPost, "/services/"+id+"/stop", nil)
}

// Reboot restarts the service's server.
func (c *HostycareClient) Reboot(ctx context.Context, id string) (Raw, error) {
	return c.do(ctx, http.MethodPost, "/services/"+id+"/reboot", nil)
}

// Status fetches the raw service-info payload. The status field inside is
// whatever shape Hostycare currently returns; normalization happens in
// internal/power.
func (c *HostycareClient) Status(ctx context.Context, id string) (Raw, error) {
	return c.do(ctx, http.MethodGet, "/services/"+id, nil)
}

// PlaceOrder provisions a new server and returns the service id plus the
// credentials Hostycare assigned.
func (c *HostycareClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	body := map[string]any{
		"product":  req.ProductName,
		"hostname": req.Hostname,
		"password": req.Password,
	}
	raw, err := c.do(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return nil, err
	}

	resp := &OrderResponse{Raw: raw, Password: req.Password}
	if data, ok := raw["data"].(map[string]any); ok {
		resp.ServiceID = stringField(data, "service_id", "serviceid", "id")
		resp.IPAddress = stringField(data, "ip", "ip_address", "dedicatedip")
		resp.Username = stringField(data, "username", "user")
		if p := stringField(data, "password"); p != "" {
			resp.Password = p
		}
	}
	if resp.ServiceID == "" {
		return nil, fmt.Errorf("hostycare: %w: order response missing service id", domain.ErrProviderRejected)
	}
	return resp, nil
}

// do sends one API request and returns the decoded payload. Transport
// failures classify as provider-unavailable; a 2xx body that reports a
// business failure classifies as provider-rejected with the upstream
// message preserved.
func (c *HostycareClient) do(ctx context.Context, method, path string, body any) (Raw, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("hostycare: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("hostycare: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError("hostycare", err)
	}
	defer resp.Body.Close()

	var raw Raw
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("hostycare: %w: undecodable response: %v", domain.ErrProviderRejected, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("hostycare: %w: upstream returned %d", domain.ErrProviderUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("hostycare: %w: %s", domain.ErrProviderRejected, rejectionMessage(raw))
	}
	if rejected(raw) {
		return nil, fmt.Errorf("hostycare: %w: %s", domain.ErrProviderRejected, rejectionMessage(raw))
	}
	return raw, nil
}

// rejected reports whether a 2xx payload carries a business failure.
func rejected(raw Raw) bool {
	if v, ok := raw["success"].(bool); ok && !v {
		return true
	}
	if v, ok := raw["result"].(string); ok && v == "error" {
		return true
	}
	if v, ok := raw["status"].(string); ok && v == "error" {
		return true
	}
	return false
}

// rejectionMessage extracts the provider's failure message for display.
func rejectionMessage(raw Raw) string {
	for _, key := range []string{"message", "error", "reason"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return "request declined"
}

// classifyTransportError wraps network-level failures as
// provider-unavailable so the retry policy can distinguish them from
// definitive rejections. Context cancellation passes through unchanged.
func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", provider, domain.ErrProviderUnavailable, err)
}

// stringField returns the first non-empty string among the given keys.
func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
