package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/orderstore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/providers"
	"github.com/sulphurninja/oceanlinux-sub002/internal/resolver"
)

// fakeClient is a scripted lifecycle client.
type fakeClient struct {
	name   string
	raw    providers.Raw
	err    error
	lastOp string
	lastID string
}

func (c *fakeClient) Name() string { return c.name }

func (c *fakeClient) op(op, id string) (providers.Raw, error) {
	c.lastOp, c.lastID = op, id
	return c.raw, c.err
}

func (c *fakeClient) Start(ctx context.Context, id string) (providers.Raw, error) {
	return c.op("start", id)
}
func (c *fakeClient) Stop(ctx context.Context, id string) (providers.Raw, error) {
	return c.op("stop", id)
}
func (c *fakeClient) Reboot(ctx context.Context, id string) (providers.Raw, error) {
	return c.op("reboot", id)
}
func (c *fakeClient) Status(ctx context.Context, id string) (providers.Raw, error) {
	return c.op("status", id)
}

// fakePanel adds the panel operations on top of fakeClient.
type fakePanel struct {
	fakeClient
	label        string
	reinstallRaw providers.Raw
	reinstallErr error
	lastTemplate string
	lastPassword string
	templates    providers.TemplateCatalog
}

func (p *fakePanel) Label() string { return p.label }

func (p *fakePanel) FindVM(ctx context.Context, ip, hostname string) (*providers.VM, error) {
	return nil, fmt.Errorf("resolution is faked in these tests")
}

func (p *fakePanel) Reinstall(ctx context.Context, vmID, templateID, password string) (providers.Raw, error) {
	p.lastID, p.lastTemplate, p.lastPassword = vmID, templateID, password
	return p.reinstallRaw, p.reinstallErr
}

func (p *fakePanel) ChangePassword(ctx context.Context, vmID, password string) (providers.Raw, error) {
	p.lastID, p.lastPassword = vmID, password
	return providers.Raw{"done": true}, nil
}

func (p *fakePanel) GetTemplates(ctx context.Context, vmID string) (providers.TemplateCatalog, error) {
	return p.templates, nil
}

// fakeClients is a ClientSource over a fixed map.
type fakeClients map[string]providers.Client

func (f fakeClients) Get(name string) (providers.Client, error) {
	c, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrValidationFailed, name)
	}
	return c, nil
}

// fakeResolver resolves every IP to one fixed match, or fails.
type fakeResolver struct {
	match *resolver.Match
	err   error
}

func (f *fakeResolver) Resolve(ctx context.Context, ip, hostname string) (*resolver.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.match, nil
}

func tempOrders(t *testing.T) *orderstore.SQLiteRepository {
	t.Helper()
	r, err := orderstore.OpenAt(filepath.Join(t.TempDir(), "orchestrator.db"))
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func seedOrder(t *testing.T, orders orderstore.Repository, o *domain.Order) *domain.Order {
	t.Helper()
	if err := orders.Create(context.Background(), o); err != nil {
		t.Fatalf("seed order failed: %v", err)
	}
	return o
}

func vpsOrder() *domain.Order {
	return &domain.Order{
		ProductType: "vps",
		ProductName: "Linux-KVM-4GB",
		Provider:    domain.ProviderVirtualizor,
		MemoryMB:    4096,
		Paid:        true,
		IPAddress:   "192.0.2.10",
		Hostname:    "vm-a",
	}
}

func TestExecute_StatusNormalizesAndPersists(t *testing.T) {
	orders := tempOrders(t)
	panel := &fakePanel{label: "panel-1"}
	panel.raw = providers.Raw{"status": "online", "hostname": "vm-a"}
	res := &fakeResolver{match: &resolver.Match{Panel: panel, VM: &providers.VM{ID: "9001"}}}
	e := New(orders, fakeClients{}, res, logging.Discard())

	order := seedOrder(t, orders, vpsOrder())

	result, err := e.Execute(context.Background(), order.ID, domain.ActionStatus, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.PowerState != "running" {
		t.Errorf("power state = %q, want running", result.PowerState)
	}
	if panel.lastOp != "status" || panel.lastID != "9001" {
		t.Errorf("dispatched %s/%s, want status/9001", panel.lastOp, panel.lastID)
	}

	// The raw payload is persisted as the order's last-seen details.
	got, _ := orders.Get(context.Background(), order.ID)
	if got.RawDetails["status"] != "online" {
		t.Errorf("persisted details = %v, want raw status", got.RawDetails)
	}
}

func TestExecute_ServiceIDRoutesToProviderClient(t *testing.T) {
	orders := tempOrders(t)
	hosty := &fakeClient{name: domain.ProviderHostycare, raw: providers.Raw{"success": true}}
	res := &fakeResolver{err: errors.New("resolver must not be consulted")}
	e := New(orders, fakeClients{domain.ProviderHostycare: hosty}, res, logging.Discard())

	order := vpsOrder()
	order.Provider = domain.ProviderHostycare
	order.HostycareServiceID = "svc-42"
	seedOrder(t, orders, order)

	result, err := e.Execute(context.Background(), order.ID, domain.ActionStop, Options{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if hosty.lastOp != "stop" || hosty.lastID != "svc-42" {
		t.Errorf("dispatched %s/%s, want stop/svc-42", hosty.lastOp, hosty.lastID)
	}
}

func TestExecute_ReinstallEndToEnd(t *testing.T) {
	orders := tempOrders(t)
	panel := &fakePanel{label: "panel-1", reinstallRaw: providers.Raw{"done": true}}
	res := &fakeResolver{match: &resolver.Match{Panel: panel, VM: &providers.VM{ID: "9001"}}}
	e := New(orders, fakeClients{}, res, logging.Discard())

	order := seedOrder(t, orders, vpsOrder())

	result, err := e.Execute(context.Background(), order.ID, domain.ActionReinstall, Options{TemplateID: "215"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Error("expected success")
	}
	if result.Result["vpsId"] != "9001" || result.Result["templateId"] != "215" {
		t.Errorf("result = %v, want vpsId 9001 templateId 215", result.Result)
	}

	// The generated password meets the policy and is handed to the panel.
	pw, _ := result.Result["newPassword"].(string)
	if len(pw) < 20 {
		t.Errorf("generated password length = %d, want >= 20", len(pw))
	}
	for name, class := range map[string]string{
		"lowercase": lowerChars, "uppercase": upperChars, "digit": digitChars, "symbol": symbolChars,
	} {
		if !strings.ContainsAny(pw, class) {
			t.Errorf("password missing %s character", name)
		}
	}
	if panel.lastPassword != pw {
		t.Error("panel received a different password than the result reports")
	}

	// Credentials are persisted, not only returned.
	got, _ := orders.Get(context.Background(), order.ID)
	if got.Password != pw || got.Username != "root" {
		t.Errorf("persisted credentials = %s/%q, want root/new password", got.Username, got.Password)
	}

	// The attempt lands in the order's history.
	logs, _ := orders.Logs(context.Background(), order.ID)
	if len(logs) != 1 || logs[0].Action != "reinstall" || !logs[0].Success {
		t.Errorf("logs = %+v, want one successful reinstall entry", logs)
	}
}

func TestExecute_ReinstallRequiresTemplate(t *testing.T) {
	orders := tempOrders(t)
	e := New(orders, fakeClients{}, &fakeResolver{}, logging.Discard())

	order := seedOrder(t, orders, vpsOrder())

	_, err := e.Execute(context.Background(), order.ID, domain.ActionReinstall, Options{})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestExecute_ReinstallUsesCallerPassword(t *testing.T) {
	orders := tempOrders(t)
	panel := &fakePanel{label: "panel-1", reinstallRaw: providers.Raw{"done": true}}
	res := &fakeResolver{match: &resolver.Match{Panel: panel, VM: &providers.VM{ID: "9001"}}}
	e := New(orders, fakeClients{}, res, logging.Discard())

	order := seedOrder(t, orders, vpsOrder())

	const supplied = "Caller-Chosen-Pass-42!x"
	_, err := e.Execute(context.Background(), order.ID, domain.ActionReinstall,
		Options{TemplateID: "215", NewPassword: supplied})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if panel.lastPassword != supplied {
		t.Errorf("panel password = %q, want the caller's", panel.lastPassword)
	}
}

func TestExecute_UnknownAction(t *testing.T) {
	orders := tempOrders(t)
	e := New(orders, fakeClients{}, &fakeResolver{}, logging.Discard())

	result, err := e.Execute(context.Background(), "any", domain.Action("selfdestruct"), Options{})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	if result.Success {
		t.Error("result must mirror the failure")
	}
}

func TestExecute_NonVPSOrderRejected(t *testing.T) {
	orders := tempOrders(t)
	e := New(orders, fakeClients{}, &fakeResolver{}, logging.Discard())

	order := &domain.Order{ProductType: "domain", ProductName: "example.com registration"}
	seedOrder(t, orders, order)

	_, err := e.Execute(context.Background(), order.ID, domain.ActionStart, Options{})
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestExecute_ProviderFailureIsRecorded(t *testing.T) {
	orders := tempOrders(t)
	panel := &fakePanel{label: "panel-1"}
	panel.err = fmt.Errorf("panel-1: %w: timeout", domain.ErrProviderUnavailable)
	res := &fakeResolver{match: &resolver.Match{Panel: panel, VM: &providers.VM{ID: "9001"}}}
	e := New(orders, fakeClients{}, res, logging.Discard())

	order := seedOrder(t, orders, vpsOrder())

	result, err := e.Execute(context.Background(), order.ID, domain.ActionStart, Options{})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if result.Success || result.Error == "" {
		t.Error("result must carry the failure")
	}

	logs, _ := orders.Logs(context.Background(), order.ID)
	if len(logs) != 1 || logs[0].Success {
		t.Fatalf("logs = %+v, want one failed entry", logs)
	}
	if !strings.Contains(logs[0].Details, "timeout") {
		t.Errorf("log details = %q, want the failure reason", logs[0].Details)
	}
}

func TestTemplates_MarksApplicability(t *testing.T) {
	orders := tempOrders(t)
	panel := &fakePanel{
		label: "panel-1",
		templates: providers.TemplateCatalog{
			"ubuntu": {
				{ID: "215", Name: "ubuntu-22.04", Distribution: "ubuntu", MinRAMMB: 1024},
				{ID: "216", Name: "ubuntu-24.04", Distribution: "ubuntu", MinRAMMB: 8192},
			},
			"alpine": {
				{ID: "301", Name: "alpine-3.20", Distribution: "alpine"},
			},
		},
	}
	res := &fakeResolver{match: &resolver.Match{Panel: panel, VM: &providers.VM{ID: "9001", PlanRAMMB: 4096}}}
	e := New(orders, fakeClients{}, res, logging.Discard())

	order := seedOrder(t, orders, vpsOrder())

	got, err := e.Templates(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Templates failed: %v", err)
	}
	if got.VPSID != "9001" {
		t.Errorf("vps id = %q, want 9001", got.VPSID)
	}

	ubuntu := got.Catalog["ubuntu"]
	if len(ubuntu) != 2 {
		t.Fatalf("ubuntu group = %d templates, want 2", len(ubuntu))
	}
	if !ubuntu[0].Applicable {
		t.Error("1GB-minimum template should apply to a 4GB VM")
	}
	if ubuntu[1].Applicable {
		t.Error("8GB-minimum template must not apply to a 4GB VM")
	}
	// No minimum means unrestricted.
	if !got.Catalog["alpine"][0].Applicable {
		t.Error("unrestricted template should always apply")
	}
}

func TestTemplates_ResolutionFailurePropagates(t *testing.T) {
	orders := tempOrders(t)
	res := &fakeResolver{err: &domain.ResolutionError{IP: "192.0.2.10", Searched: []string{"panel-1"}}}
	e := New(orders, fakeClients{}, res, logging.Discard())

	order := seedOrder(t, orders, vpsOrder())

	_, err := e.Templates(context.Background(), order.ID)
	if !errors.Is(err, domain.ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
}
