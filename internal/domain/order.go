package domain

import (
	"strings"
	"time"
)

// ProvisioningStatus is the canonical lifecycle state of an order's server.
type ProvisioningStatus string

const (
	StatusPending      ProvisioningStatus = "pending"
	StatusProvisioning ProvisioningStatus = "provisioning"
	StatusActive       ProvisioningStatus = "active"
	StatusFailed       ProvisioningStatus = "failed"
	StatusSuspended    ProvisioningStatus = "suspended"
	StatusTerminated   ProvisioningStatus = "terminated"
)

// Provider names understood by the client registry.
const (
	ProviderHostycare   = "hostycare"
	ProviderVirtualizor = "virtualizor"
	ProviderHetzner     = "hetzner"
)

// Order is a paid purchase of a virtual server, tracked through
// provisioning to termination. Billing fields live in the billing
// subsystem; this record carries only what the orchestrator owns.
//
// ProvisioningStatus transitions only through the Action Executor or the
// Provisioning Orchestrator, never directly by a caller.
type Order struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	ProductName string `json:"product_name"`

	// ProductType, when set at order creation, is authoritative for the
	// VPS-class check. Older orders leave it empty and fall back to the
	// name/IP heuristic in IsVPSOrder.
	ProductType string `json:"product_type,omitempty"`

	// Provider selects the upstream client: "hostycare", "virtualizor"
	// or "hetzner".
	Provider string `json:"provider"`

	// MemoryMB is the plan's RAM size, used to pick the applicable
	// OS template group on the hypervisor panel.
	MemoryMB int `json:"memory_mb,omitempty"`

	Paid bool `json:"paid"`

	ProvisioningStatus ProvisioningStatus `json:"provisioning_status"`
	ProvisioningError  string             `json:"provisioning_error,omitempty"`
	AutoProvisioned    bool               `json:"auto_provisioned"`

	IPAddress string `json:"ip_address,omitempty"`
	Hostname  string `json:"hostname,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`

	// HostycareServiceID is the opaque upstream service identifier.
	// Absent when the server is addressed only by IP through a panel.
	HostycareServiceID string `json:"hostycare_service_id,omitempty"`

	// RawDetails is the last raw provider payload, retained verbatim
	// for audit. Never interpreted by business logic.
	RawDetails map[string]any `json:"raw_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderLog is one append-only entry in an order's action history.
// Entries are written once and never mutated or deleted.
type OrderLog struct {
	ID         int64     `json:"id"`
	OrderID    string    `json:"order_id"`
	Action     string    `json:"action"`
	Success    bool      `json:"success"`
	Details    string    `json:"details,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// vpsKeywords are product-name tokens that identify a VPS-class product
// when no explicit ProductType is present.
var vpsKeywords = []string{"vps", "kvm", "cloud", "server", "linux"}

// IsVPSOrder reports whether the order is for a virtual server and is
// therefore eligible for lifecycle actions. The check is a heuristic
// union: an explicit product type wins, then product-name keywords, then
// the presence of an assigned IP.
func IsVPSOrder(o *Order) bool {
	if o == nil {
		return false
	}
	if o.ProductType != "" {
		return strings.EqualFold(o.ProductType, "vps")
	}
	name := strings.ToLower(o.ProductName)
	for _, kw := range vpsKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return o.IPAddress != ""
}
