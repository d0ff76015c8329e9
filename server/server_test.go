package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/component"
	"github.com/analyticore/gatekit/engine"
	"github.com/analyticore/gatekit/gateway"
	"github.com/analyticore/gatekit/logger"
	"github.com/analyticore/gatekit/registry"
	"github.com/analyticore/gatekit/server/middleware"
)

func newTestServer(t *testing.T) (*Server, *registry.Registry, *breaker.Manager) {
	t.Helper()
	m := breaker.NewManager(breaker.Config{FailureThreshold: 5, Window: time.Minute})
	reg := registry.New(registry.Config{}, m, logger.Nop())
	gw := gateway.New(gateway.Config{}, reg, m, logger.Nop())

	cfg := Config{}
	cfg.ApplyDefaults()
	srv := New(cfg, logger.Nop())
	srv.ApplyMiddleware()
	srv.RegisterRoutes(Deps{
		ServiceName: "gatekit-test",
		Components:  component.NewRegistry(logger.Nop()),
		Gateway:     gw,
		Registry:    reg,
		Breakers:    m,
	})
	return srv, reg, m
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, http.NoBody)
	srv.GinEngine().ServeHTTP(rr, req)
	return rr
}

func TestHealthzEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(t, srv, "GET", "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("healthz body not JSON: %v", err)
	}
	if body["service"] != "gatekit-test" {
		t.Errorf("service = %v, want gatekit-test", body["service"])
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestMiddlewareStackOnGinEngine(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.GinEngine().GET("/boom", func(*gin.Context) { panic("kaboom") })

	rr := do(t, srv, "GET", "/healthz")
	if rr.Header().Get(middleware.HeaderRequestID) == "" {
		t.Error("request id header not set by middleware stack")
	}

	rr = do(t, srv, "GET", "/boom")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("panicking route status = %d, want 500", rr.Code)
	}
	if rr.Header().Get(middleware.HeaderRequestID) == "" {
		t.Error("request id header missing on recovered response")
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(t, srv, "GET", "/version")
	if rr.Code != http.StatusOK {
		t.Fatalf("version status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("version body not JSON: %v", err)
	}
	if body["version"] == "" {
		t.Error("version missing from response")
	}
}

func TestServicesEndpoint(t *testing.T) {
	srv, reg, _ := newTestServer(t)

	desc := registry.Descriptor{
		ID:           "svc-1",
		Name:         "graph-engine",
		Type:         registry.TypeAnalyticsEngine,
		Endpoint:     "127.0.0.1:9000",
		Capabilities: []string{"centrality"},
	}
	if _, err := reg.Register(context.Background(), desc, engine.Func{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	rr := do(t, srv, "GET", "/v1/services")
	if rr.Code != http.StatusOK {
		t.Fatalf("services status = %d, want 200", rr.Code)
	}
	var body struct {
		Services []registry.ServiceMetrics `json:"services"`
		ByTier   map[string]int            `json:"by_tier"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("services body not JSON: %v", err)
	}
	if len(body.Services) != 1 || body.Services[0].ID != "svc-1" {
		t.Errorf("services = %+v, want svc-1", body.Services)
	}
	if body.ByTier["unknown"] != 1 {
		t.Errorf("by_tier = %v, want unknown:1", body.ByTier)
	}
}

func TestServiceByIDNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(t, srv, "GET", "/v1/services/missing")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestBreakersEndpoint(t *testing.T) {
	srv, _, m := newTestServer(t)
	m.Get("engine/svc-1/centrality")

	rr := do(t, srv, "GET", "/v1/breakers")
	if rr.Code != http.StatusOK {
		t.Fatalf("breakers status = %d, want 200", rr.Code)
	}
	var body struct {
		Breakers map[string]breaker.Snapshot `json:"breakers"`
		Open     int                         `json:"open"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("breakers body not JSON: %v", err)
	}
	if _, ok := body.Breakers["engine/svc-1/centrality"]; !ok {
		t.Errorf("breaker route missing from snapshot: %v", body.Breakers)
	}
	if body.Open != 0 {
		t.Errorf("open = %d, want 0", body.Open)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(t, srv, "GET", "/v1/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("metrics body not JSON: %v", err)
	}
	if _, ok := body["gateway"]; !ok {
		t.Error("gateway metrics missing")
	}
	if _, ok := body["response_cache"]; !ok {
		t.Error("response cache stats missing")
	}
}

func TestRequestIDHeaderOnResponses(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(t, srv, "GET", "/v1/metrics")
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("response missing X-Request-Id header")
	}
}
