package provision

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
)

// Summary aggregates a bulk provisioning run.
type Summary struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Results    []Result `json:"results"`
}

// Bulk fans the orchestrator out over a batch of orders.
//
// The defining contract is failure isolation: each order's outcome is
// captured independently and one order's failure never aborts the batch.
// Isolation comes from partitioning by order id, not from locks: each
// worker owns exactly one order at a time and writes only to that
// order's record.
type Bulk struct {
	orchestrator *Orchestrator
	log          *logging.Logger

	// workers bounds concurrent upstream calls so a large batch does
	// not trip provider rate limits.
	workers int
}

// NewBulk creates a coordinator running at most workers orders at once.
func NewBulk(orchestrator *Orchestrator, workers int, log *logging.Logger) *Bulk {
	if workers <= 0 {
		workers = 1
	}
	return &Bulk{orchestrator: orchestrator, workers: workers, log: log}
}

// ProvisionMany provisions every eligible order in the batch. Eligible
// means paid and either never auto-provisioned or previously failed;
// ineligible orders are reported as skipped, not errors.
func (b *Bulk) ProvisionMany(ctx context.Context, orderIDs []string) (*Summary, error) {
	b.log.Info(ctx, logging.EventBulkStarted, "bulk provisioning started",
		"orders", len(orderIDs), "workers", b.workers)

	results := make([]Result, len(orderIDs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, orderID := range orderIDs {
		g.Go(func() error {
			res := b.provisionOne(gctx, orderID)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			// Always nil: a failed order is a result, not a reason to
			// cancel the siblings.
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{Results: results}
	for _, r := range results {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Success:
			summary.Successful++
		default:
			summary.Failed++
		}
	}

	b.log.Info(ctx, logging.EventBulkComplete, "bulk provisioning finished",
		"successful", summary.Successful, "failed", summary.Failed,
		"skipped", summary.Skipped)
	return summary, nil
}

// provisionOne computes eligibility and runs the orchestrator for a
// single order, converting every failure into a Result.
func (b *Bulk) provisionOne(ctx context.Context, orderID string) Result {
	order, err := b.orchestrator.orders.Get(ctx, orderID)
	if err != nil {
		return Result{OrderID: orderID, Error: err.Error()}
	}

	eligible := order.Paid &&
		(!order.AutoProvisioned || order.ProvisioningStatus == domain.StatusFailed)
	if !eligible {
		return Result{OrderID: orderID, Success: true, Skipped: true}
	}

	// Previously failed orders re-provision; force bypasses the
	// active-order no-op for them.
	force := order.ProvisioningStatus == domain.StatusFailed

	res, err := b.orchestrator.Provision(ctx, orderID, force)
	if err != nil && res == nil {
		return Result{OrderID: orderID, Error: err.Error()}
	}
	return *res
}
