package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/executor"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
)

type provisionRequest struct {
	OrderID  string   `json:"orderId,omitempty"`
	OrderIDs []string `json:"orderIds,omitempty"`
	Force    bool     `json:"force,omitempty"`
}

type serviceActionRequest struct {
	OrderID     string `json:"orderId"`
	Action      string `json:"action"`
	TemplateID  string `json:"templateId,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
}

type submitActionRequest struct {
	OrderID     string `json:"orderId"`
	UserID      string `json:"userId"`
	Action      string `json:"action"`
	TemplateID  string `json:"templateId,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
}

type decisionRequest struct {
	AdminID string `json:"adminId"`
	Notes   string `json:"notes,omitempty"`
}

// handleProvision serves both the single-order and bulk paths: a body
// with orderId provisions one order, orderIds fans out through the bulk
// coordinator.
func (a *API) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	switch {
	case req.OrderID != "" && len(req.OrderIDs) > 0:
		a.writeError(w, r, validationErr("provide orderId or orderIds, not both"))
	case req.OrderID != "":
		result, err := a.orchestrator.Provision(r.Context(), req.OrderID, req.Force)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
	case len(req.OrderIDs) > 0:
		summary, err := a.bulk.ProvisionMany(r.Context(), req.OrderIDs)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary})
	default:
		a.writeError(w, r, validationErr("orderId or orderIds is required"))
	}
}

func (a *API) handleProvisioningStatus(w http.ResponseWriter, r *http.Request) {
	order, err := a.orders.Get(r.Context(), r.PathValue("orderID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"provisioningStatus": order.ProvisioningStatus,
		"provisioningError":  order.ProvisioningError,
		"serviceId":          order.HostycareServiceID,
		"autoProvisioned":    order.AutoProvisioned,
	})
}

func (a *API) handleServiceAction(w http.ResponseWriter, r *http.Request) {
	var req serviceActionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.OrderID == "" {
		a.writeError(w, r, validationErr("orderId is required"))
		return
	}

	result, err := a.executor.Execute(r.Context(), req.OrderID, domain.Action(req.Action), executor.Options{
		TemplateID:  req.TemplateID,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		a.writeJSON(w, statusFor(err), result)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

func (a *API) handleTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := a.executor.Templates(r.Context(), r.PathValue("orderID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"success": true, "templates": templates})
}

func (a *API) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req submitActionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.OrderID == "" {
		a.writeError(w, r, validationErr("orderId is required"))
		return
	}

	created, err := a.approval.Submit(r.Context(), req.OrderID, req.UserID,
		domain.Action(req.Action), domain.ActionPayload{
			TemplateID:  req.TemplateID,
			NewPassword: req.NewPassword,
		})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "request": created})
}

func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	status := domain.RequestStatus(r.URL.Query().Get("status"))
	requests, err := a.approval.List(r.Context(), status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"success": true, "requests": requests})
}

func (a *API) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	updated, err := a.approval.Approve(r.Context(), r.PathValue("requestID"), req.AdminID, req.Notes)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"success": true, "request": updated})
}

func (a *API) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	updated, err := a.approval.Reject(r.Context(), r.PathValue("requestID"), req.AdminID, req.Notes)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"success": true, "request": updated})
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return validationErr("invalid request body: " + err.Error())
	}
	return nil
}

func validationErr(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return domain.ErrValidationFailed }

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Error(context.Background(), logging.EventRequestCompleted, "failed to encode response", "error", err)
	}
}

// writeError renders a failure envelope with the taxonomy-derived status
// code. Unexpected internal errors are logged with full detail and
// surface as a generic failure.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error(r.Context(), logging.EventActionFailed, "unexpected internal error",
			"path", r.URL.Path, "error", err)
	}
	a.writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}
