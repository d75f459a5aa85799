package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sulphurninja/oceanlinux-sub002/internal/domain"
)

// newStaticServer returns a server that always answers with the given
// status code and JSON body.
func newStaticServer(t *testing.T, code int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("failed to encode test response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHostycareStart_HappyPath(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if user, key, ok := r.BasicAuth(); !ok || user != "reseller" || key != "secret" {
			t.Errorf("missing or wrong basic auth: %q/%q", user, key)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "status": "online"})
	}))
	t.Cleanup(srv.Close)

	c := NewHostycareClient(srv.URL, "reseller", "secret")
	raw, err := c.Start(context.Background(), "svc-42")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/services/svc-42/start" {
		t.Errorf("called %s %s, want POST /services/svc-42/start", gotMethod, gotPath)
	}
	if raw["status"] != "online" {
		t.Errorf("raw status = %v, want online", raw["status"])
	}
}

func TestHostycareDo_BusinessFailureIsRejection(t *testing.T) {
	srv := newStaticServer(t, http.StatusOK, map[string]any{
		"success": false,
		"message": "service is locked",
	})

	c := NewHostycareClient(srv.URL, "u", "k")
	_, err := c.Stop(context.Background(), "svc-42")
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
	// The upstream's own message survives classification.
	if got := err.Error(); !strings.Contains(got, "service is locked") {
		t.Errorf("error %q does not carry upstream message", got)
	}
}

func TestHostycareDo_ServerErrorIsUnavailable(t *testing.T) {
	srv := newStaticServer(t, http.StatusBadGateway, map[string]any{"error": "upstream down"})

	c := NewHostycareClient(srv.URL, "u", "k")
	_, err := c.Reboot(context.Background(), "svc-42")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestHostycareDo_ClientErrorIsRejection(t *testing.T) {
	srv := newStaticServer(t, http.StatusNotFound, map[string]any{"message": "no such service"})

	c := NewHostycareClient(srv.URL, "u", "k")
	_, err := c.Status(context.Background(), "svc-404")
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
}

func TestHostycareDo_ConnectionRefusedIsUnavailable(t *testing.T) {
	// A closed server makes the transport itself fail.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewHostycareClient(srv.URL, "u", "k")
	_, err := c.Start(context.Background(), "svc-42")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestHostycareDo_CancelledContextPassesThrough(t *testing.T) {
	srv := newStaticServer(t, http.StatusOK, map[string]any{"success": true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewHostycareClient(srv.URL, "u", "k")
	_, err := c.Start(ctx, "svc-42")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrProviderUnavailable) {
		t.Error("cancellation must not classify as provider-unavailable")
	}
}

func TestHostycarePlaceOrder_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["product"] != "Linux-KVM-4GB" {
			t.Errorf("order product = %v, want Linux-KVM-4GB", body["product"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"service_id": "svc-777",
				"ip":         "192.0.2.50",
				"username":   "root",
			},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewHostycareClient(srv.URL, "u", "k")
	resp, err := c.PlaceOrder(context.Background(), OrderRequest{
		ProductName: "Linux-KVM-4GB",
		Hostname:    "vm-a",
		Password:    "Xy9!Xy9!Xy9!Xy9!Xy9!Xy9!",
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if resp.ServiceID != "svc-777" {
		t.Errorf("service id = %q, want svc-777", resp.ServiceID)
	}
	if resp.IPAddress != "192.0.2.50" {
		t.Errorf("ip = %q, want 192.0.2.50", resp.IPAddress)
	}
	// The requested password is echoed back when the provider does not
	// assign its own.
	if resp.Password != "Xy9!Xy9!Xy9!Xy9!Xy9!Xy9!" {
		t.Errorf("password = %q, want requested password", resp.Password)
	}
}

func TestHostycarePlaceOrder_MissingServiceID(t *testing.T) {
	srv := newStaticServer(t, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"ip": "192.0.2.50"},
	})

	c := NewHostycareClient(srv.URL, "u", "k")
	_, err := c.PlaceOrder(context.Background(), OrderRequest{ProductName: "p", Hostname: "h", Password: "x"})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected for missing service id, got %v", err)
	}
}
