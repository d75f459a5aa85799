// Package providers contains typed clients for the upstream
// infrastructure APIs that actually host servers.
//
// Clients return raw provider payloads, never pre-normalized state:
// normalization is a separate step (internal/power) so new providers can
// be added without touching the normalizer's callers. Clients never write
// to storage.
package providers

import "context"

// Raw is an undecoded provider payload, retained verbatim for audit.
type Raw map[string]any

// Client is the lifecycle contract every provider implements. The id is
// provider-opaque: a Hostycare service id, a Virtualizor vpsid, or a
// Hetzner server id.
//
// Failure classification: network and timeout errors wrap
// domain.ErrProviderUnavailable; a 2xx response whose body indicates a
// business failure wraps domain.ErrProviderRejected with the provider's
// message preserved for display.
type Client interface {
	Name() string
	Start(ctx context.Context, id string) (Raw, error)
	Stop(ctx context.Context, id string) (Raw, error)
	Reboot(ctx context.Context, id string) (Raw, error)
	Status(ctx context.Context, id string) (Raw, error)
}

// Orderer is implemented by providers that can place new server orders.
type Orderer interface {
	// PlaceOrder provisions a new server for the given plan and returns
	// the upstream service id plus initial credentials.
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
}

// OrderRequest describes the server to provision upstream.
type OrderRequest struct {
	ProductName string
	Hostname    string
	Password    string
	MemoryMB    int
}

// OrderResponse carries what the upstream returned for a placed order.
type OrderResponse struct {
	ServiceID string
	IPAddress string
	Username  string
	Password  string
	Raw       Raw
}

// VM identifies a server on one hypervisor panel.
type VM struct {
	ID       string
	Hostname string
	IPs      []string
	// PlanRAMMB is the VM's memory allocation, used to pick an
	// applicable template group.
	PlanRAMMB int
}

// Template is one OS template on a hypervisor panel.
type Template struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Distribution string `json:"distribution"`
	// MinRAMMB is the smallest plan the template applies to; zero means
	// no restriction.
	MinRAMMB int `json:"min_ram_mb,omitempty"`
}

// TemplateCatalog groups templates by distribution.
type TemplateCatalog map[string][]Template

// Panel is the contract of one hypervisor management panel instance. A
// deployment may run several independent panels; the resolver searches
// across all of them.
type Panel interface {
	Client
	// FindVM locates the VM owning the given IP. The hostname hint only
	// breaks ties when several VMs claim the same IP. A miss returns
	// (nil, nil): "not on this panel" is not an error for one panel.
	FindVM(ctx context.Context, ip, hostname string) (*VM, error)
	// Reinstall rebuilds the VM with the given OS template and root
	// password.
	Reinstall(ctx context.Context, vmID, templateID, password string) (Raw, error)
	// ChangePassword sets a new root password without rebuilding.
	ChangePassword(ctx context.Context, vmID, password string) (Raw, error)
	// GetTemplates fetches the OS template catalog visible to the VM.
	GetTemplates(ctx context.Context, vmID string) (TemplateCatalog, error)
}
