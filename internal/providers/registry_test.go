package providers

import (
	"errors"
	"testing"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

func TestRegistry_GetRegistered(t *testing.T) {
	r := NewRegistry()
	r.Add(NewHostycareClient("http://example.invalid", "u", "k"))

	c, err := r.Get(domain.ProviderHostycare)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if c.Name() != domain.ProviderHostycare {
		t.Errorf("client name = %q, want hostycare", c.Name())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nope")
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed, got %v", err)
	}
}

func TestRegistry_DuplicateAddPanics(t *testing.T) {
	r := NewRegistry()
	r.Add(NewHostycareClient("http://example.invalid", "u", "k"))

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Add(NewHostycareClient("http://example.invalid", "u2", "k2"))
}

func TestRegistry_PanelsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.AddPanel(NewVirtualizorClient("panel-b", "http://b.invalid", "k", "p"))
	r.AddPanel(NewVirtualizorClient("panel-a", "http://a.invalid", "k", "p"))

	panels := r.Panels()
	if len(panels) != 2 {
		t.Fatalf("panels = %d, want 2", len(panels))
	}
	if panels[0].Label() != "panel-b" || panels[1].Label() != "panel-a" {
		t.Errorf("panel order = [%s, %s], want registration order [panel-b, panel-a]",
			panels[0].Label(), panels[1].Label())
	}

	// The first panel also answers lifecycle calls addressed to the
	// virtualizor provider name.
	c, err := r.Get(domain.ProviderVirtualizor)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if c.(*VirtualizorClient).Label() != "panel-b" {
		t.Errorf("virtualizor client = %s, want panel-b", c.(*VirtualizorClient).Label())
	}
}
