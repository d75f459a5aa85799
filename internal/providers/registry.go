package providers

import (
	"fmt"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

// Registry holds the configured provider clients. It is built once at
// startup and injected into the services that need it; there is no
// package-level mutable provider state.
type Registry struct {
	clients map[string]Client
	panels  []*VirtualizorClient
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: map[string]Client{}}
}

// Add registers a lifecycle client under its provider name. Registering
// the same name twice is a programming error.
func (r *Registry) Add(c Client) {
	if c == nil {
		panic("providers: nil client")
	}
	if _, exists := r.clients[c.Name()]; exists {
		panic(fmt.Sprintf("providers: provider %q already registered", c.Name()))
	}
	r.clients[c.Name()] = c
}

// AddPanel registers one Virtualizor panel instance. Panels are searched
// by the resolver in registration order, so configuration order is
// search order.
func (r *Registry) AddPanel(p *VirtualizorClient) {
	if p == nil {
		panic("providers: nil panel")
	}
	r.panels = append(r.panels, p)
	if _, exists := r.clients[domain.ProviderVirtualizor]; !exists {
		r.clients[domain.ProviderVirtualizor] = p
	}
}

// Get returns the client for the given provider name.
func (r *Registry) Get(name string) (Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrValidationFailed, name)
	}
	return c, nil
}

// Panels returns the configured panel instances in search order.
func (r *Registry) Panels() []*VirtualizorClient {
	return r.panels
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}
