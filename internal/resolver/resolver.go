// Package resolver locates a server's panel-side identity from its IP
// address, searching every configured hypervisor panel.
package resolver

import (
	"context"
	"fmt"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/providers"
)

// Panel is the slice of the panel contract the resolver needs: VM
// lookup plus the lifecycle operations callers address to the matched
// panel afterwards.
type Panel interface {
	providers.Client
	Label() string
	FindVM(ctx context.Context, ip, hostname string) (*providers.VM, error)
	Reinstall(ctx context.Context, vmID, templateID, password string) (providers.Raw, error)
	ChangePassword(ctx context.Context, vmID, password string) (providers.Raw, error)
	GetTemplates(ctx context.Context, vmID string) (providers.TemplateCatalog, error)
}

// Match is a resolved VM together with the panel that owns it, so the
// caller can address follow-up operations to the right panel.
type Match struct {
	Panel Panel
	VM    *providers.VM
}

// Resolver searches configured panels for the VM owning an IP.
type Resolver struct {
	panels []Panel
	log    *logging.Logger
}

// New creates a resolver over the given panels. Search order is slice
// order and is fixed for the resolver's lifetime.
func New(panels []Panel, log *logging.Logger) *Resolver {
	return &Resolver{panels: panels, log: log}
}

// FromRegistry builds a resolver over a registry's panels.
func FromRegistry(reg *providers.Registry, log *logging.Logger) *Resolver {
	panels := make([]Panel, 0, len(reg.Panels()))
	for _, p := range reg.Panels() {
		panels = append(panels, p)
	}
	return New(panels, log)
}

// Resolve finds the VM owning the given IP, trying panels sequentially
// and returning on the first match. The hostname hint is only a
// tie-breaker within a single panel. A panel that errors is skipped: one
// unreachable panel must not mask a VM living on the next one.
//
// When every panel misses, the returned error is a
// *domain.ResolutionError listing the panels searched, so operators can
// distinguish misconfiguration from a genuinely orphaned IP.
func (r *Resolver) Resolve(ctx context.Context, ip, hostname string) (*Match, error) {
	if ip == "" {
		return nil, fmt.Errorf("%w: order has no IP address to resolve", domain.ErrValidationFailed)
	}

	searched := make([]string, 0, len(r.panels))
	for _, panel := range r.panels {
		searched = append(searched, panel.Label())

		vm, err := panel.FindVM(ctx, ip, hostname)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			r.log.Warn(ctx, logging.EventPanelSearchFailed,
				"panel unreachable during resolution",
				"panel", panel.Label(), "ip", ip, "error", err)
			continue
		}
		if vm != nil {
			r.log.Debug(ctx, logging.EventVMResolved, "vm resolved",
				"panel", panel.Label(), "ip", ip, "vpsid", vm.ID)
			return &Match{Panel: panel, VM: vm}, nil
		}
	}

	return nil, &domain.ResolutionError{IP: ip, Hostname: hostname, Searched: searched}
}
