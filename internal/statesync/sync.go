// Package statesync reconciles provider-side server state back into
// order records, periodically or on demand.
package statesync

import (
	"context"
	"time"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/executor"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/orderstore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/power"
	"github.com/sulphurninja/oceanlinux-sub002/internal/providers"
)

// Syncer pulls provider status for active orders and persists drift.
// It shares the executor's dispatch path and the power normalizer so the
// live status check and the background sync can never disagree.
type Syncer struct {
	orders   orderstore.Repository
	clients  executor.ClientSource
	resolver executor.VPSResolver
	log      *logging.Logger
	interval time.Duration
}

// New creates a syncer. A zero interval disables the Run loop; SyncAll
// still works for one-shot passes.
func New(orders orderstore.Repository, clients executor.ClientSource, res executor.VPSResolver, interval time.Duration, log *logging.Logger) *Syncer {
	return &Syncer{orders: orders, clients: clients, resolver: res, interval: interval, log: log}
}

// Run executes SyncAll on every tick until the context is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncAll(ctx)
		}
	}
}

// SyncAll reconciles every active order. Per-order failures are logged
// and skipped; a sync pass never turns a timeout into a failed order.
func (s *Syncer) SyncAll(ctx context.Context) {
	s.log.Debug(ctx, logging.EventSyncStarted, "state sync pass")

	orders, err := s.orders.ListActive(ctx)
	if err != nil {
		s.log.Error(ctx, logging.EventSyncSkipped, "could not list active orders", "error", err)
		return
	}

	for i := range orders {
		if ctx.Err() != nil {
			return
		}
		if err := s.SyncOrder(ctx, &orders[i]); err != nil {
			s.log.Warn(ctx, logging.EventSyncSkipped, "order sync skipped",
				"order_id", orders[i].ID, "error", err)
		}
	}
}

// SyncOrder pulls the provider's view of one order and persists status,
// IP and username drift. Unreachable providers leave the order exactly
// as it was.
func (s *Syncer) SyncOrder(ctx context.Context, order *domain.Order) error {
	raw, err := s.fetch(ctx, order)
	if err != nil {
		return err
	}

	observe := func(token string) {
		s.log.Warn(ctx, logging.EventUnknownStatus, "unmapped status token",
			"order_id", order.ID, "token", token)
	}
	state := power.Normalize(power.RawStatus{Kind: power.KindObject, Obj: raw}, observe)

	changed := false
	if state == power.Suspended && order.ProvisioningStatus == domain.StatusActive {
		order.ProvisioningStatus = domain.StatusSuspended
		changed = true
	}
	if state == power.Running && order.ProvisioningStatus == domain.StatusSuspended {
		order.ProvisioningStatus = domain.StatusActive
		changed = true
	}
	if ip := payloadString(raw, "ip", "ip_address", "dedicatedip"); ip != "" && ip != order.IPAddress {
		order.IPAddress = ip
		changed = true
	}
	if user := payloadString(raw, "username", "user"); user != "" && user != order.Username {
		order.Username = user
		changed = true
	}

	if !changed {
		return nil
	}

	order.RawDetails = raw
	s.log.Info(ctx, logging.EventSyncDrift, "order state drift reconciled",
		"order_id", order.ID, "power_state", string(state),
		"status", string(order.ProvisioningStatus))
	return s.orders.Save(ctx, order)
}

func (s *Syncer) fetch(ctx context.Context, order *domain.Order) (providers.Raw, error) {
	if order.HostycareServiceID != "" && order.Provider != domain.ProviderVirtualizor {
		client, err := s.clients.Get(order.Provider)
		if err != nil {
			return nil, err
		}
		return client.Status(ctx, order.HostycareServiceID)
	}

	match, err := s.resolver.Resolve(ctx, order.IPAddress, order.Hostname)
	if err != nil {
		return nil, err
	}
	return match.Panel.Status(ctx, match.VM.ID)
}

func payloadString(raw providers.Raw, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v
		}
	}
	if data, ok := raw["data"].(map[string]any); ok {
		for _, k := range keys {
			if v, ok := data[k].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}
