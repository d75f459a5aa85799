// Package logging wraps log/slog with the event-name discipline used
// across the service: every log line carries an "event" attribute from
// the fixed vocabulary below, so forensic replay can filter by event.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Event names attached to every log line.
const (
	EventServiceStarted    = "service_started"
	EventDBConnected       = "db_connected"
	EventRequestCompleted  = "request_completed"
	EventActionDispatched  = "action_dispatched"
	EventActionCompleted   = "action_completed"
	EventActionFailed      = "action_failed"
	EventProvisionStarted  = "provision_started"
	EventProvisionComplete = "provision_complete"
	EventProvisionFailed   = "provision_failed"
	EventBulkStarted       = "bulk_provision_started"
	EventBulkComplete      = "bulk_provision_complete"
	EventVMResolved        = "vm_resolved"
	EventPanelSearchFailed = "panel_search_failed"
	EventUnknownStatus     = "unknown_status_token"
	EventRequestSubmitted  = "action_request_submitted"
	EventRequestDecided    = "action_request_decided"
	EventSyncStarted       = "state_sync_started"
	EventSyncDrift         = "state_sync_drift"
	EventSyncSkipped       = "state_sync_skipped"
	EventShutdown          = "graceful_shutdown"
)

// Logger is a thin wrapper over slog that forces the event attribute.
type Logger struct {
	s *slog.Logger
}

// New creates a JSON logger writing to w at the given level.
func New(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{s: slog.New(h)}
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *Logger {
	return &Logger{s: slog.New(slog.DiscardHandler)}
}

// With returns a logger that adds the given attributes to every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{s: l.s.With(args...)}
}

func (l *Logger) Debug(ctx context.Context, event, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, event, msg, args...)
}

func (l *Logger) Info(ctx context.Context, event, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, event, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, event, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, event, msg, args...)
}

func (l *Logger) Error(ctx context.Context, event, msg string, args ...any) {
	l.log(ctx, slog.LevelError, event, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, event, msg string, args ...any) {
	if l == nil || l.s == nil {
		return
	}
	attrs := make([]any, 0, len(args)+2)
	attrs = append(attrs, "event", event)
	attrs = append(attrs, args...)
	l.s.Log(ctx, level, msg, attrs...)
}
