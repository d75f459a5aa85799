// Package provision turns paid orders into running servers.
//
// The orchestrator handles one order end to end; the bulk coordinator
// fans it out over a batch with bounded concurrency and per-order
// failure isolation.
package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/executor"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/orderstore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/providers"
	"github.com/sulphurninja/oceanlinux-sub002/internal/retry"
)

// ClientSource yields provider clients by name.
type ClientSource interface {
	Get(name string) (providers.Client, error)
}

// Result is the outcome of provisioning one order.
type Result struct {
	OrderID   string `json:"order_id"`
	Success   bool   `json:"success"`
	Skipped   bool   `json:"skipped,omitempty"`
	ServiceID string `json:"service_id,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Orchestrator provisions single orders.
type Orchestrator struct {
	orders   orderstore.Repository
	clients  ClientSource
	log      *logging.Logger
	retryCfg retry.Config
}

// NewOrchestrator creates an orchestrator over the given collaborators.
func NewOrchestrator(orders orderstore.Repository, clients ClientSource, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		orders:   orders,
		clients:  clients,
		log:      log,
		retryCfg: retry.DefaultConfig(),
	}
}

// Provision places the order upstream and persists the returned
// credentials. Re-invoking on an already-active order without force is a
// safe no-op; force re-provisions (used by the retry-failed workflow).
// On upstream failure the order is marked failed with the error recorded
// and stays retryable. Transient upstream unavailability is retried with
// backoff before the order is marked failed: a timeout alone never
// condemns an order.
func (p *Orchestrator) Provision(ctx context.Context, orderID string, force bool) (*Result, error) {
	result := &Result{OrderID: orderID}

	order, err := p.orders.Get(ctx, orderID)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	if !order.Paid {
		err := fmt.Errorf("%w: order %s is not paid", domain.ErrValidationFailed, orderID)
		result.Error = err.Error()
		return result, err
	}
	if order.ProvisioningStatus == domain.StatusActive && !force {
		result.Success = true
		result.Skipped = true
		result.ServiceID = order.HostycareServiceID
		return result, nil
	}

	client, err := p.clients.Get(order.Provider)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	orderer, ok := client.(providers.Orderer)
	if !ok {
		err := fmt.Errorf("%w: provider %s cannot place orders", domain.ErrValidationFailed, order.Provider)
		result.Error = err.Error()
		return result, err
	}

	p.log.Info(ctx, logging.EventProvisionStarted, "provisioning order",
		"order_id", orderID, "provider", order.Provider, "force", force)

	order.ProvisioningStatus = domain.StatusProvisioning
	order.ProvisioningError = ""
	if err := p.orders.Save(ctx, order); err != nil {
		result.Error = err.Error()
		return result, err
	}

	password, err := executor.GeneratePassword()
	if err != nil {
		return p.markFailed(ctx, order, result, fmt.Errorf("password generation failed: %w", err))
	}

	start := time.Now()
	var resp *providers.OrderResponse
	err = retry.Do(ctx, p.retryCfg, nil, func() error {
		var placeErr error
		resp, placeErr = orderer.PlaceOrder(ctx, providers.OrderRequest{
			ProductName: order.ProductName,
			Hostname:    order.Hostname,
			Password:    password,
			MemoryMB:    order.MemoryMB,
		})
		return placeErr
	})
	duration := time.Since(start)

	if err != nil {
		p.appendLog(ctx, order.ID, "provision", false, err.Error(), duration)
		return p.markFailed(ctx, order, result, err)
	}

	order.ProvisioningStatus = domain.StatusActive
	order.AutoProvisioned = true
	order.HostycareServiceID = resp.ServiceID
	order.IPAddress = resp.IPAddress
	order.Username = resp.Username
	order.Password = resp.Password
	order.RawDetails = resp.Raw
	if order.Username == "" {
		order.Username = "root"
	}
	if err := p.orders.Save(ctx, order); err != nil {
		result.Error = err.Error()
		return result, err
	}
	p.appendLog(ctx, order.ID, "provision", true,
		fmt.Sprintf("service %s provisioned", resp.ServiceID), duration)

	p.log.Info(ctx, logging.EventProvisionComplete, "order provisioned",
		"order_id", orderID, "service_id", resp.ServiceID,
		"duration_ms", duration.Milliseconds())

	result.Success = true
	result.ServiceID = resp.ServiceID
	result.IPAddress = order.IPAddress
	result.Username = order.Username
	result.Password = order.Password
	return result, nil
}

// markFailed records the failure and leaves the order retryable.
func (p *Orchestrator) markFailed(ctx context.Context, order *domain.Order, result *Result, cause error) (*Result, error) {
	order.ProvisioningStatus = domain.StatusFailed
	order.ProvisioningError = cause.Error()
	if err := p.orders.Save(ctx, order); err != nil {
		p.log.Error(ctx, logging.EventProvisionFailed, "failed to persist provisioning failure",
			"order_id", order.ID, "error", err)
	}
	p.log.Warn(ctx, logging.EventProvisionFailed, "provisioning failed",
		"order_id", order.ID, "error", cause)

	result.Error = cause.Error()
	return result, cause
}

func (p *Orchestrator) appendLog(ctx context.Context, orderID, action string, success bool, details string, duration time.Duration) {
	err := p.orders.AppendLog(ctx, &domain.OrderLog{
		OrderID:    orderID,
		Action:     action,
		Success:    success,
		Details:    details,
		DurationMs: duration.Milliseconds(),
	})
	if err != nil {
		p.log.Error(ctx, logging.EventProvisionFailed, "failed to append order log",
			"order_id", orderID, "error", err)
	}
}
