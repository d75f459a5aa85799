// Package power normalizes the status vocabularies of heterogeneous
// providers onto one small canonical state set.
//
// Upstreams report server state as strings ("online", "ACTIVE"), numeric
// codes, booleans, or nested objects like {"status":{"state":"running"}}.
// Both the live status-check path and the background state sync normalize
// through this package so the two can never disagree.
package power

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the canonical power state of a server.
type State string

const (
	Running   State = "running"
	Stopped   State = "stopped"
	Suspended State = "suspended"
	Busy      State = "busy"
	Unknown   State = "unknown"
)

// Kind tags the shape of a raw provider status value.
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
)

// RawStatus is a tagged union over the status shapes providers actually
// send. Exactly one of the value fields is meaningful, selected by Kind;
// unrecognized shapes collapse to KindAbsent rather than guessing.
type RawStatus struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Obj  map[string]any
}

// FromAny builds a RawStatus from a decoded JSON value.
func FromAny(v any) RawStatus {
	switch t := v.(type) {
	case nil:
		return RawStatus{Kind: KindAbsent}
	case string:
		return RawStatus{Kind: KindString, Str: t}
	case bool:
		return RawStatus{Kind: KindBool, Bool: t}
	case float64:
		return RawStatus{Kind: KindNumber, Num: t}
	case int:
		return RawStatus{Kind: KindNumber, Num: float64(t)}
	case int64:
		return RawStatus{Kind: KindNumber, Num: float64(t)}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return RawStatus{Kind: KindString, Str: t.String()}
		}
		return RawStatus{Kind: KindNumber, Num: f}
	case map[string]any:
		return RawStatus{Kind: KindObject, Obj: t}
	default:
		return RawStatus{Kind: KindAbsent}
	}
}

// stateTokens maps known provider vocabulary onto canonical states.
// Tokens are matched lowercase. Unknown tokens normalize to Unknown and
// are reported through the observer so the vocabulary can be extended.
var stateTokens = map[string]State{
	"online":     Running,
	"running":    Running,
	"active":     Running,
	"on":         Running,
	"started":    Running,
	"up":         Running,
	"1":          Running,
	"true":       Running,
	"offline":    Stopped,
	"stopped":    Stopped,
	"off":        Stopped,
	"shutoff":    Stopped,
	"down":       Stopped,
	"inactive":   Stopped,
	"0":          Stopped,
	"false":      Stopped,
	"suspended":  Suspended,
	"paused":     Suspended,
	"frozen":     Suspended,
	"busy":       Busy,
	"installing": Busy,
	"rebuilding": Busy,
	"processing": Busy,
	"migrating":  Busy,
	"pending":    Busy,
	"starting":   Busy,
	"stopping":   Busy,
	"rebooting":  Busy,
}

// statusKeys are the object fields searched, in order, when a provider
// nests its status inside a payload object.
var statusKeys = []string{"state", "status", "power", "power_status", "online", "running"}

// UnknownObserver receives every token that failed to normalize, for
// manual vocabulary extension. Nil observers are ignored.
type UnknownObserver func(token string)

// Normalize maps a raw provider status onto the canonical state set.
// Unrecognized values map to Unknown, never to an error: the policy is
// fail-open-to-visible-unknown rather than guessing.
func Normalize(raw RawStatus, observe UnknownObserver) State {
	switch raw.Kind {
	case KindString:
		return normalizeToken(raw.Str, observe)
	case KindNumber:
		return normalizeToken(strings.TrimSuffix(fmt.Sprintf("%g", raw.Num), ".0"), observe)
	case KindBool:
		if raw.Bool {
			return Running
		}
		return Stopped
	case KindObject:
		for _, key := range statusKeys {
			if v, ok := raw.Obj[key]; ok {
				return Normalize(FromAny(v), observe)
			}
		}
		if observe != nil {
			observe(fmt.Sprintf("object with keys %v", objectKeys(raw.Obj)))
		}
		return Unknown
	default:
		return Unknown
	}
}

// NormalizeAny is Normalize over an undecoded JSON value.
func NormalizeAny(v any, observe UnknownObserver) State {
	return Normalize(FromAny(v), observe)
}

func normalizeToken(token string, observe UnknownObserver) State {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return Unknown
	}
	if s, ok := stateTokens[t]; ok {
		return s
	}
	if observe != nil {
		observe(token)
	}
	return Unknown
}

func objectKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
