package approval

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/executor"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/orderstore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/requeststore"
)

// fakeExecutor records executed actions and returns a scripted outcome.
type fakeExecutor struct {
	calls []string
	err   error
}

func (f *fakeExecutor) Execute(ctx context.Context, orderID string, action domain.Action, opts executor.Options) (*domain.ActionResult, error) {
	f.calls = append(f.calls, orderID+"/"+string(action)+"/"+opts.TemplateID)
	if f.err != nil {
		return &domain.ActionResult{OrderID: orderID, Action: action, Error: f.err.Error()}, f.err
	}
	return &domain.ActionResult{OrderID: orderID, Action: action, Success: true}, nil
}

func newService(t *testing.T) (*Service, *fakeExecutor, orderstore.Repository) {
	t.Helper()
	dir := t.TempDir()
	orders, err := orderstore.OpenAt(filepath.Join(dir, "orders.db"))
	if err != nil {
		t.Fatalf("orderstore.OpenAt failed: %v", err)
	}
	t.Cleanup(func() { orders.Close() })
	requests, err := requeststore.OpenAt(filepath.Join(dir, "requests.db"))
	if err != nil {
		t.Fatalf("requeststore.OpenAt failed: %v", err)
	}
	t.Cleanup(func() { requests.Close() })

	exec := &fakeExecutor{}
	return New(requests, orders, exec, logging.Discard()), exec, orders
}

func seedVPSOrder(t *testing.T, orders orderstore.Repository) *domain.Order {
	t.Helper()
	o := &domain.Order{
		UserID:      "user-1",
		ProductType: "vps",
		ProductName: "Linux-KVM-4GB",
		Provider:    domain.ProviderVirtualizor,
		Paid:        true,
		IPAddress:   "192.0.2.10",
		Username:    "root",
	}
	if err := orders.Create(context.Background(), o); err != nil {
		t.Fatalf("seed order failed: %v", err)
	}
	return o
}

func TestSubmit_CapturesSnapshot(t *testing.T) {
	s, _, orders := newService(t)
	order := seedVPSOrder(t, orders)

	req, err := s.Submit(context.Background(), order.ID, "user-1", domain.ActionReinstall,
		domain.ActionPayload{TemplateID: "215"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if req.Status != domain.RequestPending {
		t.Errorf("status = %q, want pending", req.Status)
	}
	if req.Snapshot.ProductName != "Linux-KVM-4GB" || req.Snapshot.IPAddress != "192.0.2.10" {
		t.Errorf("snapshot = %+v, want order display fields", req.Snapshot)
	}
}

func TestSubmit_DuplicatePendingConflicts(t *testing.T) {
	s, _, orders := newService(t)
	order := seedVPSOrder(t, orders)
	ctx := context.Background()

	if _, err := s.Submit(ctx, order.ID, "user-1", domain.ActionReinstall, domain.ActionPayload{}); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	_, err := s.Submit(ctx, order.ID, "user-1", domain.ActionReinstall, domain.ActionPayload{})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSubmit_RejectsInvalidActions(t *testing.T) {
	s, _, orders := newService(t)
	order := seedVPSOrder(t, orders)
	ctx := context.Background()

	if _, err := s.Submit(ctx, order.ID, "user-1", domain.Action("nuke"), domain.ActionPayload{}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("unknown action: expected ErrValidationFailed, got %v", err)
	}
	// Status is read-only and never needs approval.
	if _, err := s.Submit(ctx, order.ID, "user-1", domain.ActionStatus, domain.ActionPayload{}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("status action: expected ErrValidationFailed, got %v", err)
	}
}

func TestApprove_ExecutesAndCompletes(t *testing.T) {
	s, exec, orders := newService(t)
	order := seedVPSOrder(t, orders)
	ctx := context.Background()

	req, err := s.Submit(ctx, order.ID, "user-1", domain.ActionReinstall,
		domain.ActionPayload{TemplateID: "215"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got, err := s.Approve(ctx, req.ID, "admin-1", "approved per ticket 881")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if got.Status != domain.RequestCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.ProcessedBy != "admin-1" {
		t.Errorf("processed by = %q, want admin-1", got.ProcessedBy)
	}
	if len(exec.calls) != 1 || exec.calls[0] != order.ID+"/reinstall/215" {
		t.Errorf("executor calls = %v, want the request's action with its payload", exec.calls)
	}
	if !strings.Contains(got.AdminNotes, "action executed") {
		t.Errorf("notes = %q, want execution outcome", got.AdminNotes)
	}
}

func TestApprove_CompletesEvenWhenActionFails(t *testing.T) {
	s, exec, orders := newService(t)
	order := seedVPSOrder(t, orders)
	ctx := context.Background()
	exec.err = fmt.Errorf("panel-1: %w: timeout", domain.ErrProviderUnavailable)

	req, err := s.Submit(ctx, order.ID, "user-1", domain.ActionFormat,
		domain.ActionPayload{TemplateID: "215"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got, err := s.Approve(ctx, req.ID, "admin-1", "")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	// Completion records that the action was attempted, not that it
	// succeeded.
	if got.Status != domain.RequestCompleted {
		t.Errorf("status = %q, want completed despite the action failing", got.Status)
	}
	if !strings.Contains(got.AdminNotes, "action failed") {
		t.Errorf("notes = %q, want the failure recorded", got.AdminNotes)
	}
}

func TestApprove_DecidesExactlyOnce(t *testing.T) {
	s, exec, orders := newService(t)
	order := seedVPSOrder(t, orders)
	ctx := context.Background()

	req, err := s.Submit(ctx, order.ID, "user-1", domain.ActionReinstall,
		domain.ActionPayload{TemplateID: "215"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := s.Approve(ctx, req.ID, "admin-1", ""); err != nil {
		t.Fatalf("first Approve failed: %v", err)
	}

	_, err = s.Approve(ctx, req.ID, "admin-2", "")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for second decision, got %v", err)
	}
	if len(exec.calls) != 1 {
		t.Errorf("executor calls = %d, want the action to run exactly once", len(exec.calls))
	}
}

func TestReject_Terminal(t *testing.T) {
	s, exec, orders := newService(t)
	order := seedVPSOrder(t, orders)
	ctx := context.Background()

	req, err := s.Submit(ctx, order.ID, "user-1", domain.ActionChangePassword, domain.ActionPayload{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	got, err := s.Reject(ctx, req.ID, "admin-1", "customer withdrew the request")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if got.Status != domain.RequestRejected {
		t.Errorf("status = %q, want rejected", got.Status)
	}
	if len(exec.calls) != 0 {
		t.Error("rejected requests must never execute")
	}

	// No second decision.
	if _, err := s.Approve(ctx, req.ID, "admin-2", ""); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict approving a rejected request, got %v", err)
	}
}

func TestList_FiltersByStatus(t *testing.T) {
	s, _, orders := newService(t)
	ctx := context.Background()
	a := seedVPSOrder(t, orders)
	b := seedVPSOrder(t, orders)

	reqA, err := s.Submit(ctx, a.ID, "user-1", domain.ActionReinstall, domain.ActionPayload{TemplateID: "215"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := s.Submit(ctx, b.ID, "user-2", domain.ActionFormat, domain.ActionPayload{TemplateID: "301"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := s.Reject(ctx, reqA.ID, "admin-1", ""); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	pending, err := s.List(ctx, domain.RequestPending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].OrderID != b.ID {
		t.Errorf("pending = %+v, want only the undecided request", pending)
	}
}
