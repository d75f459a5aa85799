// Package approval is the human-in-the-loop gate for sensitive,
// customer-initiated server actions.
//
// Requests move pending -> approved | rejected exactly once, and an
// approved request moves to completed after the underlying action has
// been attempted. The action's own success or failure is recorded on the
// order's log and in the admin notes; it never reverses the decision.
package approval

import (
	"context"
	"fmt"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/executor"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/orderstore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/requeststore"
)

// ActionExecutor runs an approved request's underlying action.
type ActionExecutor interface {
	Execute(ctx context.Context, orderID string, action domain.Action, opts executor.Options) (*domain.ActionResult, error)
}

// Service owns the action-request lifecycle.
type Service struct {
	requests requeststore.Repository
	orders   orderstore.Repository
	executor ActionExecutor
	log      *logging.Logger
}

// New creates the approval service.
func New(requests requeststore.Repository, orders orderstore.Repository, exec ActionExecutor, log *logging.Logger) *Service {
	return &Service{requests: requests, orders: orders, executor: exec, log: log}
}

// Submit files a new pending request. The order snapshot is captured
// here so admins can review without a join. A pending request for the
// same (order, action) pair yields domain.ErrConflict; the request
// store's unique index keeps that true under concurrent submission.
func (s *Service) Submit(ctx context.Context, orderID, userID string, action domain.Action, payload domain.ActionPayload) (*domain.ServerActionRequest, error) {
	if !domain.ValidAction(action) || action == domain.ActionStatus {
		return nil, fmt.Errorf("%w: action %q cannot be requested", domain.ErrValidationFailed, action)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !domain.IsVPSOrder(order) {
		return nil, fmt.Errorf("%w: order %s is not a VPS order", domain.ErrValidationFailed, orderID)
	}

	req := &domain.ServerActionRequest{
		OrderID: orderID,
		UserID:  userID,
		Action:  action,
		Payload: payload,
		Snapshot: domain.OrderSnapshot{
			ProductName: order.ProductName,
			Provider:    order.Provider,
			IPAddress:   order.IPAddress,
			Username:    order.Username,
			Hostname:    order.Hostname,
		},
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info(ctx, logging.EventRequestSubmitted, "action request submitted",
		"request_id", req.ID, "order_id", orderID, "action", string(action))
	return req, nil
}

// Approve transitions a pending request to approved, runs the action
// synchronously, and marks the request completed. Completion means the
// action was attempted; its own outcome lands in the admin notes and the
// order's log.
func (s *Service) Approve(ctx context.Context, requestID, adminID, notes string) (*domain.ServerActionRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.requests.Transition(ctx, requestID, domain.RequestPending, domain.RequestApproved, adminID, notes); err != nil {
		return nil, err
	}
	s.log.Info(ctx, logging.EventRequestDecided, "action request approved",
		"request_id", requestID, "order_id", req.OrderID,
		"action", string(req.Action), "admin", adminID)

	result, execErr := s.executor.Execute(ctx, req.OrderID, req.Action, executor.Options{
		TemplateID:  req.Payload.TemplateID,
		NewPassword: req.Payload.NewPassword,
	})

	outcome := notes
	if execErr != nil {
		outcome = appendNote(notes, "action failed: "+execErr.Error())
	} else if result != nil && result.Success {
		outcome = appendNote(notes, "action executed")
	}

	if err := s.requests.Transition(ctx, requestID, domain.RequestApproved, domain.RequestCompleted, adminID, outcome); err != nil {
		return nil, err
	}
	return s.requests.Get(ctx, requestID)
}

// Reject transitions a pending request to rejected. Terminal.
func (s *Service) Reject(ctx context.Context, requestID, adminID, notes string) (*domain.ServerActionRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := s.requests.Transition(ctx, requestID, domain.RequestPending, domain.RequestRejected, adminID, notes); err != nil {
		return nil, err
	}
	s.log.Info(ctx, logging.EventRequestDecided, "action request rejected",
		"request_id", requestID, "order_id", req.OrderID,
		"action", string(req.Action), "admin", adminID)
	return s.requests.Get(ctx, requestID)
}

// List returns requests filtered by status; empty status means all.
func (s *Service) List(ctx context.Context, status domain.RequestStatus) ([]domain.ServerActionRequest, error) {
	return s.requests.ListByStatus(ctx, status)
}

func appendNote(notes, extra string) string {
	if notes == "" {
		return extra
	}
	return notes + "; " + extra
}
