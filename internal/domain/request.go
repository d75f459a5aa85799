package domain

import "time"

// Action is a lifecycle operation a customer can request against their
// server. Destructive actions (format, changepassword, reinstall) are
// gated behind the approval workflow; the rest execute directly.
type Action string

const (
	ActionStart          Action = "start"
	ActionStop           Action = "stop"
	ActionRestart        Action = "restart"
	ActionStatus         Action = "status"
	ActionFormat         Action = "format"
	ActionChangePassword Action = "changepassword"
	ActionReinstall      Action = "reinstall"
)

// ValidAction reports whether a is one of the known lifecycle actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionStart, ActionStop, ActionRestart, ActionStatus,
		ActionFormat, ActionChangePassword, ActionReinstall:
		return true
	}
	return false
}

// Destructive reports whether the action must pass through admin approval
// before it can run.
func (a Action) Destructive() bool {
	switch a {
	case ActionFormat, ActionChangePassword, ActionReinstall:
		return true
	}
	return false
}

// RequestStatus is the state of a ServerActionRequest.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
)

// ActionPayload carries action-specific input supplied at request time.
type ActionPayload struct {
	// TemplateID is the chosen OS template for reinstall/format.
	TemplateID string `json:"template_id,omitempty"`
	// NewPassword is the requested root password. When empty the
	// executor generates one meeting the password policy.
	NewPassword string `json:"new_password,omitempty"`
}

// OrderSnapshot is a denormalized copy of order display fields captured
// when a request is submitted, so admins can review without a join.
type OrderSnapshot struct {
	ProductName string `json:"product_name"`
	Provider    string `json:"provider"`
	IPAddress   string `json:"ip_address,omitempty"`
	Username    string `json:"username,omitempty"`
	Hostname    string `json:"hostname,omitempty"`
}

// ServerActionRequest is a customer-submitted request for a sensitive
// server action, gated behind admin approval.
//
// At most one pending request may exist per (OrderID, Action) pair; the
// request store enforces this with a partial unique index, not just
// application logic.
//
// State machine: pending -> approved | rejected; approved -> completed
// once the underlying action has been attempted. Completion records that
// the action ran, not that it succeeded; the action's own outcome lands
// in AdminNotes and the order's log.
type ServerActionRequest struct {
	ID      string        `json:"id"`
	OrderID string        `json:"order_id"`
	UserID  string        `json:"user_id"`
	Action  Action        `json:"action"`
	Status  RequestStatus `json:"status"`

	Payload  ActionPayload `json:"payload"`
	Snapshot OrderSnapshot `json:"order_snapshot"`

	ProcessedBy string     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	AdminNotes  string     `json:"admin_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
