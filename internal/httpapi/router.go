// Package httpapi exposes the orchestrator core over HTTP to its own
// callers. The surface is internal: wire compatibility matters less than
// the invariant that every response body is a {success, ...} envelope.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sulphurninja/oceanlinux-sub002/internal/approval"
	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
	"github.com/sulphurninja/oceanlinux-sub002/internal/executor"
	"github.com/sulphurninja/oceanlinux-sub002/internal/logging"
	"github.com/sulphurninja/oceanlinux-sub002/internal/orderstore"
	"github.com/sulphurninja/oceanlinux-sub002/internal/provision"
)

// API wires the orchestrator services to HTTP handlers.
type API struct {
	orders       orderstore.Repository
	executor     *executor.Executor
	orchestrator *provision.Orchestrator
	bulk         *provision.Bulk
	approval     *approval.Service
	log          *logging.Logger
}

// New creates the API over the given services.
func New(orders orderstore.Repository, exec *executor.Executor, orch *provision.Orchestrator, bulk *provision.Bulk, appr *approval.Service, log *logging.Logger) *API {
	return &API{
		orders:       orders,
		executor:     exec,
		orchestrator: orch,
		bulk:         bulk,
		approval:     appr,
		log:          log,
	}
}

// Handler builds the route table.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/provision", a.middleware(a.handleProvision))
	mux.Handle("GET /api/provisioning-status/{orderID}", a.middleware(a.handleProvisioningStatus))
	mux.Handle("POST /api/service-action", a.middleware(a.handleServiceAction))
	mux.Handle("GET /api/service-action/templates/{orderID}", a.middleware(a.handleTemplates))

	mux.Handle("POST /api/action-requests", a.middleware(a.handleSubmitRequest))
	mux.Handle("GET /api/action-requests", a.middleware(a.handleListRequests))
	mux.Handle("POST /api/action-requests/{requestID}/approve", a.middleware(a.handleApproveRequest))
	mux.Handle("POST /api/action-requests/{requestID}/reject", a.middleware(a.handleRejectRequest))

	return mux
}

// Serve runs the HTTP server until the context is cancelled.
func (a *API) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	a.log.Info(ctx, logging.EventServiceStarted, "http api listening", "addr", addr)

	select {
	case <-ctx.Done():
		a.log.Info(context.Background(), logging.EventShutdown, "shutting down http api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type responseWriterWrapper struct {
	http.ResponseWriter
	status int
}

func (w *responseWriterWrapper) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (a *API) middleware(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriterWrapper{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		a.log.Debug(r.Context(), logging.EventRequestCompleted, "http request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrResolutionFailed):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProviderRejected):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
