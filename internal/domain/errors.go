package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for cross-provider error classification.
// Provider clients and services wrap these so callers can handle error
// categories uniformly without inspecting provider-specific detail.
//
//	return fmt.Errorf("hostycare: %w: %s", domain.ErrProviderRejected, msg)
var (
	// ErrProviderUnavailable indicates a network or timeout failure
	// reaching the upstream. Transient; eligible for retry.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected indicates the provider understood the request
	// and declined it. Not retryable without changing the input.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrValidationFailed indicates caller error: order is not
	// VPS-class, a required field is missing, or the action is unknown.
	ErrValidationFailed = errors.New("validation failed")

	// ErrConflict indicates a uniqueness conflict, such as a duplicate
	// pending action request for the same order and action.
	ErrConflict = errors.New("conflict")

	// ErrResolutionFailed indicates the resolver found no VM matching
	// the order's IP on any configured panel. Operator-actionable;
	// wrapped by ResolutionError which lists the panels searched.
	ErrResolutionFailed = errors.New("vps resolution failed")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// ResolutionError reports a failed panel search. It carries the searched
// panel names so operators can tell misconfiguration apart from a
// genuinely orphaned IP.
type ResolutionError struct {
	IP       string
	Hostname string
	Searched []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no VM with IP %s found, searched panels: [%s]",
		e.IP, strings.Join(e.Searched, ", "))
}

// Unwrap lets errors.Is(err, ErrResolutionFailed) match.
func (e *ResolutionError) Unwrap() error { return ErrResolutionFailed }
