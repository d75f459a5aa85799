package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

// Compile-time check that HetznerClient satisfies the lifecycle contract.
var _ Client = (*HetznerClient)(nil)

// HetznerClient implements the provider contract over the Hetzner Cloud
// API for orders hosted there. The id is the numeric hcloud server id in
// string form, stored on the order like any other opaque service id.
type HetznerClient struct {
	client *hcloud.Client
}

// NewHetznerClient creates a client with the given hcloud options.
func NewHetznerClient(opts ...hcloud.ClientOption) *HetznerClient {
	defaults := []hcloud.ClientOption{
		hcloud.WithApplication("oceanlinux-orchestrator", "0.1.0"),
	}
	return &HetznerClient{client: hcloud.NewClient(append(defaults, opts...)...)}
}

func (h *HetznerClient) Name() string { return domain.ProviderHetzner }

func (h *HetznerClient) Start(ctx context.Context, id string) (Raw, error) {
	srv, err := h.server(ctx, id)
	if err != nil {
		return nil, err
	}
	action, _, err := h.client.Server.Poweron(ctx, srv)
	if err != nil {
		return nil, classifyHCloudError(err)
	}
	return actionRaw(action), nil
}

func (h *HetznerClient) Stop(ctx context.Context, id string) (Raw, error) {
	srv, err := h.server(ctx, id)
	if err != nil {
		return nil, err
	}
	action, _, err := h.client.Server.Poweroff(ctx, srv)
	if err != nil {
		return nil, classifyHCloudError(err)
	}
	return actionRaw(action), nil
}

func (h *HetznerClient) Reboot(ctx context.Context, id string) (Raw, error) {
	srv, err := h.server(ctx, id)
	if err != nil {
		return nil, err
	}
	action, _, err := h.client.Server.Reboot(ctx, srv)
	if err != nil {
		return nil, classifyHCloudError(err)
	}
	return actionRaw(action), nil
}

func (h *HetznerClient) Status(ctx context.Context, id string) (Raw, error) {
	srv, err := h.server(ctx, id)
	if err != nil {
		return nil, err
	}
	raw := Raw{
		"id":     srv.ID,
		"name":   srv.Name,
		"status": string(srv.Status),
	}
	if !srv.PublicNet.IPv4.IsUnspecified() {
		raw["ip"] = srv.PublicNet.IPv4.IP.String()
	}
	return raw, nil
}

func (h *HetznerClient) server(ctx context.Context, id string) (*hcloud.Server, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("hetzner: %w: invalid server id %q", domain.ErrValidationFailed, id)
	}
	srv, _, err := h.client.Server.GetByID(ctx, numericID)
	if err != nil {
		return nil, classifyHCloudError(err)
	}
	if srv == nil {
		return nil, fmt.Errorf("hetzner: %w: server %s not found", domain.ErrProviderRejected, id)
	}
	return srv, nil
}

func actionRaw(a *hcloud.Action) Raw {
	raw := Raw{}
	if a != nil {
		raw["action_id"] = a.ID
		raw["command"] = a.Command
		raw["status"] = string(a.Status)
		raw["progress"] = a.Progress
	}
	return raw
}

// classifyHCloudError maps hcloud SDK errors onto the shared taxonomy:
// API-level errors are rejections (the provider answered), everything
// else is transport and therefore unavailability.
func classifyHCloudError(err error) error {
	var apiErr hcloud.Error
	if hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded) || hcloud.IsError(err, hcloud.ErrorCodeConflict) {
		return fmt.Errorf("hetzner: %w: %v", domain.ErrProviderUnavailable, err)
	}
	if errors.As(err, &apiErr) {
		return fmt.Errorf("hetzner: %w: %s", domain.ErrProviderRejected, apiErr.Message)
	}
	return classifyTransportError("hetzner", err)
}
