package domain

// ActionResult is the uniform envelope every lifecycle operation returns
// to its caller. Failures never report Success=true; the raw provider
// payload is carried alongside for audit, never instead of the verdict.
type ActionResult struct {
	Success bool   `json:"success"`
	Action  Action `json:"action"`
	OrderID string `json:"order_id"`

	// PowerState is the normalized server state, populated for status
	// checks and after state-changing actions when the provider reports
	// one. Values: running, stopped, suspended, busy, unknown.
	PowerState string `json:"power_state,omitempty"`

	// Result holds action-specific output, e.g. the reinstall response
	// {vpsId, templateId, newPassword} or the raw status payloads.
	Result map[string]any `json:"result,omitempty"`

	// Error is the human-readable failure reason when Success is false.
	Error string `json:"error,omitempty"`
}
