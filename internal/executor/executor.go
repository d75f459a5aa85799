// Package executor runs lifecycle actions against an order's server.
//
// Every call walks the same pipeline: validate the order is VPS-class,
// resolve the right provider client, dispatch, normalize, persist, and
// append an order-log entry. Provider failures are logged with the
// attempt and re-surfaced as structured failures, never swallowed.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/orderstore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/power"
	"github.com/sulphurninja/oceanlinux-sub002/internal/providers"
	"github.com/sulphurninja/oceanlinux-sub002/internal/resolver"
)

// ClientSource yields lifecycle clients by provider name.
type ClientSource interface {
	Get(name string) (providers.Client, error)
}

// VPSResolver locates a VM across configured panels.
type VPSResolver interface {
	Resolve(ctx context.Context, ip, hostname string) (*resolver.Match, error)
}

// Options carries action-specific input.
type Options struct {
	// TemplateID selects the OS template for reinstall/format.
	TemplateID string
	// NewPassword is the requested root password for reinstall and
	// changepassword. Empty means generate one meeting the policy.
	NewPassword string
}

// Executor is the action execution service.
type Executor struct {
	orders   orderstore.Repository
	clients  ClientSource
	resolver VPSResolver
	log      *logging.Logger
}

// New creates an executor over the given collaborators.
func New(orders orderstore.Repository, clients ClientSource, res VPSResolver, log *logging.Logger) *Executor {
	return &Executor{orders: orders, clients: clients, resolver: res, log: log}
}

// Execute runs one lifecycle action against the order's server and
// returns the uniform result envelope. The returned error carries the
// taxonomy classification for transport-layer mapping; the envelope
// mirrors it for the caller body. Both agree on success.
func (e *Executor) Execute(ctx context.Context, orderID string, action domain.Action, opts Options) (*domain.ActionResult, error) {
	result := &domain.ActionResult{Action: action, OrderID: orderID}

	if !domain.ValidAction(action) {
		return fail(result, fmt.Errorf("%w: unknown action %q", domain.ErrValidationFailed, action))
	}

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return fail(result, err)
	}
	if !domain.IsVPSOrder(order) {
		return fail(result, fmt.Errorf("%w: order %s is not a VPS order", domain.ErrValidationFailed, orderID))
	}

	start := time.Now()
	e.log.Debug(ctx, logging.EventActionDispatched, "dispatching action",
		"order_id", orderID, "action", string(action), "provider", order.Provider)

	var opErr error
	switch action {
	case domain.ActionStatus:
		opErr = e.status(ctx, order, result)
	case domain.ActionStart, domain.ActionStop, domain.ActionRestart:
		opErr = e.powerAction(ctx, order, action, result)
	case domain.ActionReinstall, domain.ActionFormat:
		opErr = e.reinstall(ctx, order, opts, result)
	case domain.ActionChangePassword:
		opErr = e.changePassword(ctx, order, opts, result)
	}

	duration := time.Since(start)
	e.record(ctx, order, action, duration, opErr)

	if opErr != nil {
		result.Success = false
		result.Error = opErr.Error()
		e.log.Warn(ctx, logging.EventActionFailed, "action failed",
			"order_id", orderID, "action", string(action),
			"duration_ms", duration.Milliseconds(), "error", opErr)
		return result, opErr
	}

	result.Success = true
	e.log.Info(ctx, logging.EventActionCompleted, "action completed",
		"order_id", orderID, "action", string(action),
		"duration_ms", duration.Milliseconds())
	return result, nil
}

// status fetches and normalizes the server's power state. The raw
// payload rides along in the result for audit and is persisted on the
// order as the last-seen provider details.
func (e *Executor) status(ctx context.Context, order *domain.Order, result *domain.ActionResult) error {
	raw, err := e.dispatch(ctx, order, domain.ActionStatus)
	if err != nil {
		return err
	}

	state := e.normalize(ctx, order.ID, raw)
	result.PowerState = string(state)
	result.Result = map[string]any{"raw": map[string]any(raw)}

	order.RawDetails = raw
	if err := e.orders.Save(ctx, order); err != nil {
		return err
	}
	return nil
}

func (e *Executor) powerAction(ctx context.Context, order *domain.Order, action domain.Action, result *domain.ActionResult) error {
	raw, err := e.dispatch(ctx, order, action)
	if err != nil {
		return err
	}
	result.Result = map[string]any{"raw": map[string]any(raw)}
	if state := e.normalize(ctx, order.ID, raw); state != power.Unknown {
		result.PowerState = string(state)
	}
	order.RawDetails = raw
	return e.orders.Save(ctx, order)
}

// reinstall rebuilds the server with a chosen OS template. Requires the
// panel path: the VM must resolve first. A caller-supplied password is
// used as-is; otherwise one is generated meeting the policy. Either way
// the password is persisted on the order in the same step as the log
// entry, never only returned.
func (e *Executor) reinstall(ctx context.Context, order *domain.Order, opts Options, result *domain.ActionResult) error {
	if opts.TemplateID == "" {
		return fmt.Errorf("%w: reinstall requires a template id", domain.ErrValidationFailed)
	}

	match, err := e.resolver.Resolve(ctx, order.IPAddress, order.Hostname)
	if err != nil {
		return err
	}

	password := opts.NewPassword
	if password == "" {
		password, err = GeneratePassword()
		if err != nil {
			return fmt.Errorf("password generation failed: %w", err)
		}
	}

	raw, err := match.Panel.Reinstall(ctx, match.VM.ID, opts.TemplateID, password)
	if err != nil {
		return err
	}

	order.Password = password
	order.Username = "root"
	order.RawDetails = raw
	if err := e.orders.Save(ctx, order); err != nil {
		return err
	}

	result.Result = map[string]any{
		"vpsId":       match.VM.ID,
		"templateId":  opts.TemplateID,
		"newPassword": password,
	}
	return nil
}

func (e *Executor) changePassword(ctx context.Context, order *domain.Order, opts Options, result *domain.ActionResult) error {
	match, err := e.resolver.Resolve(ctx, order.IPAddress, order.Hostname)
	if err != nil {
		return err
	}

	password := opts.NewPassword
	if password == "" {
		password, err = GeneratePassword()
		if err != nil {
			return fmt.Errorf("password generation failed: %w", err)
		}
	}

	raw, err := match.Panel.ChangePassword(ctx, match.VM.ID, password)
	if err != nil {
		return err
	}

	order.Password = password
	order.RawDetails = raw
	if err := e.orders.Save(ctx, order); err != nil {
		return err
	}

	result.Result = map[string]any{"vpsId": match.VM.ID, "newPassword": password}
	return nil
}

// TemplateInfo is one catalog template annotated with whether it applies
// to the resolved VM's resource class.
type TemplateInfo struct {
	providers.Template
	Applicable bool `json:"applicable"`
}

// TemplatesResult is the OS template catalog for an order's VM, grouped
// by distribution.
type TemplatesResult struct {
	VPSID   string                    `json:"vps_id"`
	Catalog map[string][]TemplateInfo `json:"catalog"`
}

// Templates resolves the order's VM and fetches the panel's OS template
// catalog, marking which templates fit the VM's memory class.
func (e *Executor) Templates(ctx context.Context, orderID string) (*TemplatesResult, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !domain.IsVPSOrder(order) {
		return nil, fmt.Errorf("%w: order %s is not a VPS order", domain.ErrValidationFailed, orderID)
	}

	match, err := e.resolver.Resolve(ctx, order.IPAddress, order.Hostname)
	if err != nil {
		return nil, err
	}

	catalog, err := match.Panel.GetTemplates(ctx, match.VM.ID)
	if err != nil {
		return nil, err
	}

	ram := match.VM.PlanRAMMB
	if ram == 0 {
		ram = order.MemoryMB
	}

	out := &TemplatesResult{VPSID: match.VM.ID, Catalog: map[string][]TemplateInfo{}}
	for distro, group := range catalog {
		infos := make([]TemplateInfo, 0, len(group))
		for _, t := range group {
			infos = append(infos, TemplateInfo{
				Template:   t,
				Applicable: t.MinRAMMB == 0 || ram >= t.MinRAMMB,
			})
		}
		out.Catalog[distro] = infos
	}
	return out, nil
}

// dispatch routes a lifecycle action to the right client. Orders with a
// stored service id use their provider's coarse API; orders addressed
// only by IP go through panel resolution.
func (e *Executor) dispatch(ctx context.Context, order *domain.Order, action domain.Action) (providers.Raw, error) {
	if order.HostycareServiceID != "" && order.Provider != domain.ProviderVirtualizor {
		client, err := e.clients.Get(order.Provider)
		if err != nil {
			return nil, err
		}
		return callClient(ctx, client, action, order.HostycareServiceID)
	}

	match, err := e.resolver.Resolve(ctx, order.IPAddress, order.Hostname)
	if err != nil {
		return nil, err
	}
	return callClient(ctx, match.Panel, action, match.VM.ID)
}

func callClient(ctx context.Context, c interface {
	Start(context.Context, string) (providers.Raw, error)
	Stop(context.Context, string) (providers.Raw, error)
	Reboot(context.Context, string) (providers.Raw, error)
	Status(context.Context, string) (providers.Raw, error)
}, action domain.Action, id string) (providers.Raw, error) {
	switch action {
	case domain.ActionStart:
		return c.Start(ctx, id)
	case domain.ActionStop:
		return c.Stop(ctx, id)
	case domain.ActionRestart:
		return c.Reboot(ctx, id)
	case domain.ActionStatus:
		return c.Status(ctx, id)
	}
	return nil, fmt.Errorf("%w: action %q has no direct dispatch", domain.ErrValidationFailed, action)
}

// normalize runs the shared status normalization, reporting unmapped
// vocabulary so it can be added to the token table.
func (e *Executor) normalize(ctx context.Context, orderID string, raw providers.Raw) power.State {
	observe := func(token string) {
		e.log.Warn(ctx, logging.EventUnknownStatus, "unmapped status token",
			"order_id", orderID, "token", token)
	}
	if v, ok := raw["status"]; ok {
		return power.NormalizeAny(v, observe)
	}
	if v, ok := raw["state"]; ok {
		return power.NormalizeAny(v, observe)
	}
	return power.Normalize(power.RawStatus{Kind: power.KindObject, Obj: raw}, observe)
}

// record appends the attempt to the order's action history. Log failures
// must not mask the action's own outcome, so they are only logged.
func (e *Executor) record(ctx context.Context, order *domain.Order, action domain.Action, duration time.Duration, opErr error) {
	entry := &domain.OrderLog{
		OrderID:    order.ID,
		Action:     string(action),
		Success:    opErr == nil,
		DurationMs: duration.Milliseconds(),
	}
	if opErr != nil {
		entry.Details = opErr.Error()
	}
	if err := e.orders.AppendLog(ctx, entry); err != nil {
		e.log.Error(ctx, logging.EventActionFailed, "failed to append order log",
			"order_id", order.ID, "action", string(action), "error", err)
	}
}

func fail(result *domain.ActionResult, err error) (*domain.ActionResult, error) {
	result.Success = false
	result.Error = err.Error()
	return result, err
}

// IsCallerError reports whether the failure is attributable to the
// caller rather than the upstream.
func IsCallerError(err error) bool {
	return errors.Is(err, domain.ErrValidationFailed) || errors.Is(err, domain.ErrNotFound)
}
