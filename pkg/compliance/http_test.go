package compliance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"polaris-hq/superpose/pkg/superposition"
)

func TestHTTPBackendEvaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/evaluate" {
			t.Errorf("request = %s %s, want POST /evaluate", r.Method, r.URL.Path)
		}

		var actionContext ActionContext
		if err := json.NewDecoder(r.Body).Decode(&actionContext); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if actionContext["action"] != "deploy" {
			t.Errorf("action = %v, want deploy", actionContext["action"])
		}

		json.NewEncoder(w).Encode(Verdict{
			Decision: DecisionAllow,
			Reason:   "change window open",
			Source:   "opa",
		})
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPBackend() error = %v", err)
	}

	verdict, err := backend.Evaluate(context.Background(), ActionContext{"action": "deploy"})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if verdict.Decision != DecisionAllow || verdict.Source != "opa" {
		t.Errorf("verdict = %+v, want allow from opa", verdict)
	}
}

func TestHTTPBackendDefaultsSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Verdict{Decision: DecisionDeny})
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPBackend() error = %v", err)
	}

	verdict, err := backend.Evaluate(context.Background(), ActionContext{})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if verdict.Source != "compliance-backend" {
		t.Errorf("Source = %q, want compliance-backend", verdict.Source)
	}
}

func TestHTTPBackendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPBackend() error = %v", err)
	}

	_, err = backend.Evaluate(context.Background(), ActionContext{})
	if !superposition.IsKind(err, superposition.KindDownstreamUnavailable) {
		t.Errorf("Evaluate() kind = %q, want %q",
			superposition.KindOf(err), superposition.KindDownstreamUnavailable)
	}
}

func TestHTTPBackendUnreachable(t *testing.T) {
	// A server that is already closed refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	backend, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPBackend() error = %v", err)
	}

	_, err = backend.Evaluate(context.Background(), ActionContext{})
	if !superposition.IsKind(err, superposition.KindDownstreamUnavailable) {
		t.Errorf("Evaluate() kind = %q, want %q",
			superposition.KindOf(err), superposition.KindDownstreamUnavailable)
	}
}

func TestHTTPBackendBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(HTTPConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPBackend() error = %v", err)
	}

	_, err = backend.Evaluate(context.Background(), ActionContext{})
	if !superposition.IsKind(err, superposition.KindDownstreamUnavailable) {
		t.Errorf("Evaluate() kind = %q, want %q",
			superposition.KindOf(err), superposition.KindDownstreamUnavailable)
	}
}

func TestNewHTTPBackendRequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPBackend(HTTPConfig{}); err == nil {
		t.Error("NewHTTPBackend() accepted an empty base URL")
	}
}

func TestStaticBackend(t *testing.T) {
	b := NewStaticBackend()

	verdict, err := b.Evaluate(context.Background(), ActionContext{})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if verdict.Decision != DecisionAllow || verdict.Source != "static" {
		t.Errorf("verdict = %+v, want static allow", verdict)
	}
	if b.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", b.Calls())
	}
}
