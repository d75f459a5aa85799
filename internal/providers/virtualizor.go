package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

const virtualizorTimeout = 45 * time.Second

// Compile-time check that VirtualizorClient satisfies the panel contract.
var _ Panel = (*VirtualizorClient)(nil)

// VirtualizorClient talks to one Virtualizor hypervisor panel instance.
// Panels expose fine-grained VM operations keyed by a panel-local vpsid;
// a deployment may run several independent panels, each with its own
// client, searched by the resolver in configured order.
type VirtualizorClient struct {
	label   string
	baseURL string
	apiKey  string
	apiPass string
	client  *http.Client
}

// NewVirtualizorClient creates a client for one panel instance. The label
// identifies the panel in logs and resolution errors.
func NewVirtualizorClient(label, baseURL, apiKey, apiPass string) *VirtualizorClient {
	return &VirtualizorClient{
		label:   label,
		baseURL: baseURL,
		apiKey:  apiKey,
		apiPass: apiPass,
		client:  &http.Client{Timeout: virtualizorTimeout},
	}
}

// Label returns the panel's configured name.
func (c *VirtualizorClient) Label() string { return c.label }

func (c *VirtualizorClient) Name() string { return domain.ProviderVirtualizor }

// Start powers the VM on.
func (c *VirtualizorClient) Start(ctx context.Context, id string) (Raw, error) {
	return c.call(ctx, "start", url.Values{"vpsid": {id}})
}

// Stop powers the VM off.
func (c *VirtualizorClient) Stop(ctx context.Context, id string) (Raw, error) {
	return c.call(ctx, "stop", url.Values{"vpsid": {id}})
}

// Reboot restarts the VM.
func (c *VirtualizorClient) Reboot(ctx context.Context, id string) (Raw, error) {
	return c.call(ctx, "restart", url.Values{"vpsid": {id}})
}

// Status fetches the VM's raw management payload.
func (c *VirtualizorClient) Status(ctx context.Context, id string) (Raw, error) {
	return c.call(ctx, "vpsmanage", url.Values{"svs": {id}})
}

// Reinstall rebuilds the VM with the given OS template and root password.
func (c *VirtualizorClient) Reinstall(ctx context.Context, vmID, templateID, password string) (Raw, error) {
	return c.call(ctx, "rebuild", url.Values{
		"vpsid":   {vmID},
		"osid":    {templateID},
		"newpass": {password},
		"conf":    {password},
	})
}

// ChangePassword sets a new root password without rebuilding the VM.
func (c *VirtualizorClient) ChangePassword(ctx context.Context, vmID, password string) (Raw, error) {
	return c.call(ctx, "changepassword", url.Values{
		"vpsid":   {vmID},
		"newpass": {password},
		"conf":    {password},
	})
}

// FindVM scans the panel's VM list for the owner of the given IP. When
// several VMs claim the same IP (misconfiguration, defended against) the
// hostname hint breaks the tie. A miss returns (nil, nil).
func (c *VirtualizorClient) FindVM(ctx context.Context, ip, hostname string) (*VM, error) {
	raw, err := c.call(ctx, "listvs", nil)
	if err != nil {
		return nil, err
	}

	vsMap, ok := raw["vs"].(map[string]any)
	if !ok {
		return nil, nil
	}

	var candidates []*VM
	for vpsid, v := range vsMap {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		vm := parseVM(vpsid, entry)
		for _, vmIP := range vm.IPs {
			if vmIP == ip {
				candidates = append(candidates, vm)
				break
			}
		}
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	}

	if hostname != "" {
		for _, vm := range candidates {
			if strings.EqualFold(vm.Hostname, hostname) {
				return vm, nil
			}
		}
	}
	// Deterministic pick when the hint does not discriminate either.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates[0], nil
}

// GetTemplates fetches the OS template catalog visible to the VM,
// grouped by distribution.
func (c *VirtualizorClient) GetTemplates(ctx context.Context, vmID string) (TemplateCatalog, error) {
	raw, err := c.call(ctx, "ostemplate", url.Values{"svs": {vmID}})
	if err != nil {
		return nil, err
	}

	catalog := TemplateCatalog{}
	osList, ok := raw["oslist"].(map[string]any)
	if !ok {
		return catalog, nil
	}

	// oslist nests virtualization type -> osid -> template object.
	for _, group := range osList {
		templates, ok := group.(map[string]any)
		if !ok {
			continue
		}
		for osid, t := range templates {
			entry, ok := t.(map[string]any)
			if !ok {
				continue
			}
			tpl := Template{
				ID:           osid,
				Name:         anyString(entry["name"]),
				Distribution: anyString(entry["distro"]),
				MinRAMMB:     anyInt(entry["min_ram"]),
			}
			if tpl.Distribution == "" {
				tpl.Distribution = distroFromName(tpl.Name)
			}
			catalog[tpl.Distribution] = append(catalog[tpl.Distribution], tpl)
		}
	}

	for distro := range catalog {
		group := catalog[distro]
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })
	}
	return catalog, nil
}

// call performs one panel API request. Virtualizor takes its action and
// credentials as query parameters and answers 200 even for business
// failures, flagged by a non-empty "error" field in the body.
func (c *VirtualizorClient) call(ctx context.Context, act string, params url.Values) (Raw, error) {
	q := url.Values{}
	for key, vals := range params {
		q[key] = vals
	}
	q.Set("act", act)
	q.Set("api", "json")
	q.Set("apikey", c.apiKey)
	q.Set("apipass", c.apiPass)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/index.php?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("virtualizor %s: failed to build request: %w", c.label, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError("virtualizor "+c.label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("virtualizor %s: %w: upstream returned %d",
			c.label, domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var raw Raw
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("virtualizor %s: %w: undecodable response: %v",
			c.label, domain.ErrProviderRejected, err)
	}

	if msg := panelError(raw); msg != "" {
		return nil, fmt.Errorf("virtualizor %s: %w: %s", c.label, domain.ErrProviderRejected, msg)
	}
	return raw, nil
}

// panelError extracts a business-failure message from a panel payload.
// Virtualizor reports errors as a string, a list, or a keyed map.
func panelError(raw Raw) string {
	switch e := raw["error"].(type) {
	case string:
		return e
	case []any:
		parts := make([]string, 0, len(e))
		for _, v := range e {
			parts = append(parts, anyString(v))
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		parts := make([]string, 0, len(e))
		for _, v := range e {
			parts = append(parts, anyString(v))
		}
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}
	return ""
}

// parseVM converts one listvs entry. Virtualizor returns most numbers as
// strings and IPs as an id-keyed map.
func parseVM(vpsid string, entry map[string]any) *VM {
	vm := &VM{
		ID:        vpsid,
		Hostname:  anyString(entry["hostname"]),
		PlanRAMMB: anyInt(entry["ram"]),
	}
	if id := anyString(entry["vpsid"]); id != "" {
		vm.ID = id
	}
	switch ips := entry["ips"].(type) {
	case map[string]any:
		for _, v := range ips {
			if ip := anyString(v); ip != "" {
				vm.IPs = append(vm.IPs, ip)
			}
		}
	case []any:
		for _, v := range ips {
			if ip := anyString(v); ip != "" {
				vm.IPs = append(vm.IPs, ip)
			}
		}
	}
	sort.Strings(vm.IPs)
	return vm
}

// distroFromName guesses the distribution group from a template name
// like "ubuntu-22.04-x86_64" when the payload lacks a distro field.
func distroFromName(name string) string {
	if i := strings.IndexAny(name, "-_ "); i > 0 {
		return strings.ToLower(name[:i])
	}
	if name == "" {
		return "other"
	}
	return strings.ToLower(name)
}

// anyString renders a payload value that may be a string or a number.
func anyString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// anyInt parses a payload value that may be a number or numeric string.
func anyInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err == nil {
			return n
		}
	}
	return 0
}
