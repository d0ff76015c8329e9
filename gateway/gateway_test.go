package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/engine"
	apperrors "github.com/analyticore/gatekit/errors"
	"github.com/analyticore/gatekit/logger"
	"github.com/analyticore/gatekit/registry"
)

// startGateway builds a running gateway on top of a monitored registry.
// The probe interval is short so registered engines reach the healthy
// tier quickly; the find cache TTL is long so candidate order stays
// stable within a test.
func startGateway(t *testing.T, cfg Config, bcfg breaker.Config) (*Gateway, *registry.Registry) {
	t.Helper()
	if bcfg.FailureThreshold == 0 {
		bcfg = breaker.Config{FailureThreshold: 100, Window: time.Minute, ResetTimeout: time.Hour}
	}
	m := breaker.NewManager(bcfg)
	reg := registry.New(registry.Config{
		ProbeInterval: 10 * time.Millisecond,
		ProbeTimeout:  time.Second,
		FindCacheTTL:  time.Hour,
	}, m, logger.Nop())
	reg.StartMonitor(context.Background())
	t.Cleanup(reg.StopMonitor)

	g := New(cfg, reg, m, logger.Nop())
	g.SetHandler(apperrors.NewHandler(&apperrors.ExponentialBackoff{
		Base: time.Millisecond,
		Max:  time.Millisecond,
	}))
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("start gateway: %v", err)
	}
	t.Cleanup(func() { g.Stop(time.Second) })
	return g, reg
}

type invokeFunc func(ctx context.Context, operation string, params map[string]any) (any, error)

func registerEngine(t *testing.T, reg *registry.Registry, id string, invoke invokeFunc, caps ...string) {
	t.Helper()
	desc := registry.Descriptor{
		ID:           id,
		Name:         id,
		Type:         registry.TypeAnalyticsEngine,
		Endpoint:     "127.0.0.1:9000",
		Capabilities: caps,
		Version:      "1.0.0",
	}
	if _, err := reg.Register(context.Background(), desc, engine.Func{InvokeFunc: invoke}); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

// waitFindable polls until the monitor has promoted want services into a
// findable tier for capability.
func waitFindable(t *testing.T, reg *registry.Registry, capability string, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ds, err := reg.Find(context.Background(), capability, "")
		if err == nil && len(ds) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never found %d services for %s", want, capability)
}

func waitMetric(t *testing.T, g *Gateway, what string, cond func(Metrics) bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond(g.Metrics()) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never reached: %s", what)
}

func TestDispatchServesRequest(t *testing.T) {
	g, reg := startGateway(t, Config{}, breaker.Config{})
	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		return map[string]any{"nodes": 42}, nil
	}, "centrality")
	waitFindable(t, reg, "centrality", 1)

	resp := g.Dispatch(context.Background(), Request{Operation: "centrality", Priority: PriorityNormal})
	if resp.Err != nil {
		t.Fatalf("dispatch failed: %v", resp.Err)
	}
	if resp.ServedBy != "svc-a" {
		t.Errorf("served by %s, want svc-a", resp.ServedBy)
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", resp.Attempts)
	}
	if resp.RequestID == "" {
		t.Error("response has no request id")
	}
	out, ok := resp.Result.(map[string]any)
	if !ok || out["nodes"] != 42 {
		t.Errorf("result = %v, want nodes=42", resp.Result)
	}
}

func TestCriticalDequeuedBeforeLow(t *testing.T) {
	g, reg := startGateway(t, Config{Workers: 1, QueueCapacity: 8}, breaker.Config{})

	gate := make(chan struct{})
	var mu sync.Mutex
	var order []string
	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		name := params["name"].(string)
		if name == "gate" {
			<-gate
		}
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
		return name, nil
	}, "rank")
	waitFindable(t, reg, "rank", 1)

	dispatch := func(name string, p Priority) <-chan Response {
		ch := make(chan Response, 1)
		go func() {
			ch <- g.Dispatch(context.Background(), Request{
				Operation: "rank",
				Params:    map[string]any{"name": name},
				Priority:  p,
			})
		}()
		return ch
	}

	gateDone := dispatch("gate", PriorityNormal)
	waitMetric(t, g, "worker busy", func(m Metrics) bool { return m.InFlight == 1 })

	lowDone := dispatch("low", PriorityLow)
	waitMetric(t, g, "low queued", func(m Metrics) bool { return m.QueueDepth == 1 })
	criticalDone := dispatch("critical", PriorityCritical)
	waitMetric(t, g, "critical queued", func(m Metrics) bool { return m.QueueDepth == 2 })

	close(gate)
	for _, ch := range []<-chan Response{gateDone, criticalDone, lowDone} {
		if resp := <-ch; resp.Err != nil {
			t.Fatalf("dispatch failed: %v", resp.Err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"gate", "critical", "low"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestSyncHandoffRejectsWhenBusy(t *testing.T) {
	g, reg := startGateway(t, Config{Workers: 1, SyncHandoff: true}, breaker.Config{})

	gate := make(chan struct{})
	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		<-gate
		return "done", nil
	}, "rank")
	waitFindable(t, reg, "rank", 1)

	first := make(chan Response, 1)
	go func() {
		first <- g.Dispatch(context.Background(), Request{Operation: "rank"})
	}()
	waitMetric(t, g, "worker busy", func(m Metrics) bool { return m.InFlight == 1 })

	resp := g.Dispatch(context.Background(), Request{Operation: "rank"})
	if !errors.Is(resp.Err, ErrOverloaded) {
		t.Fatalf("second dispatch err = %v, want ErrOverloaded", resp.Err)
	}

	close(gate)
	if resp := <-first; resp.Err != nil {
		t.Fatalf("first dispatch failed: %v", resp.Err)
	}
	if m := g.Metrics(); m.Rejected != 1 {
		t.Errorf("rejected = %d, want 1", m.Rejected)
	}
}

func TestExpiredDeadlineNeverTouchesBackend(t *testing.T) {
	g, reg := startGateway(t, Config{}, breaker.Config{})

	var invocations atomic.Int64
	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		invocations.Add(1)
		return "done", nil
	}, "rank")
	waitFindable(t, reg, "rank", 1)

	resp := g.Dispatch(context.Background(), Request{
		Operation: "rank",
		Deadline:  time.Now().Add(-time.Second),
	})
	if !errors.Is(resp.Err, ErrDeadlineExceeded) {
		t.Fatalf("err = %v, want ErrDeadlineExceeded", resp.Err)
	}
	if n := invocations.Load(); n != 0 {
		t.Errorf("backend invoked %d times, want 0", n)
	}
	if m := g.Metrics(); m.Expired != 1 {
		t.Errorf("expired = %d, want 1", m.Expired)
	}
}

func TestRoundRobinSplitsAcrossHealthyServices(t *testing.T) {
	g, reg := startGateway(t, Config{Workers: 1}, breaker.Config{})

	counts := map[string]*atomic.Int64{"svc-a": {}, "svc-b": {}}
	mk := func(id string) invokeFunc {
		return func(ctx context.Context, operation string, params map[string]any) (any, error) {
			counts[id].Add(1)
			return id, nil
		}
	}
	registerEngine(t, reg, "svc-a", mk("svc-a"), "rank")
	registerEngine(t, reg, "svc-b", mk("svc-b"), "rank")
	waitFindable(t, reg, "rank", 2)

	for i := 0; i < 4; i++ {
		if resp := g.Dispatch(context.Background(), Request{Operation: "rank"}); resp.Err != nil {
			t.Fatalf("dispatch %d failed: %v", i, resp.Err)
		}
	}
	if a, b := counts["svc-a"].Load(), counts["svc-b"].Load(); a != 2 || b != 2 {
		t.Errorf("split = %d/%d, want 2/2", a, b)
	}
}

func TestFailoverToNextCandidateOnTransient(t *testing.T) {
	g, reg := startGateway(t, Config{Workers: 1}, breaker.Config{})

	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		return nil, &apperrors.TransientError{Err: errors.New("connection reset")}
	}, "rank")
	registerEngine(t, reg, "svc-b", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		return "ok", nil
	}, "rank")
	waitFindable(t, reg, "rank", 2)

	resp := g.Dispatch(context.Background(), Request{Operation: "rank"})
	if resp.Err != nil {
		t.Fatalf("dispatch failed: %v", resp.Err)
	}
	if resp.ServedBy != "svc-b" {
		t.Errorf("served by %s, want svc-b", resp.ServedBy)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
	m := g.Metrics()
	if m.Retries != 1 {
		t.Errorf("retries = %d, want 1", m.Retries)
	}
	if m.ByCategory[apperrors.CategoryTransient.String()] != 1 {
		t.Errorf("transient count = %v, want 1", m.ByCategory)
	}
}

func TestNoAvailableService(t *testing.T) {
	g, _ := startGateway(t, Config{}, breaker.Config{})
	resp := g.Dispatch(context.Background(), Request{Operation: "rank"})
	if !errors.Is(resp.Err, ErrNoAvailableService) {
		t.Fatalf("err = %v, want ErrNoAvailableService", resp.Err)
	}
}

func TestOpenRouteBreakerFailsFastWithoutBackend(t *testing.T) {
	g, reg := startGateway(t, Config{MaxAttempts: 1}, breaker.Config{
		FailureThreshold: 1,
		Window:           time.Minute,
		ResetTimeout:     time.Hour,
	})

	var invocations atomic.Int64
	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		invocations.Add(1)
		return nil, &apperrors.UnsupportedError{Operation: operation}
	}, "rank")
	waitFindable(t, reg, "rank", 1)

	if resp := g.Dispatch(context.Background(), Request{Operation: "rank"}); resp.Err == nil {
		t.Fatal("first dispatch unexpectedly succeeded")
	}
	resp := g.Dispatch(context.Background(), Request{Operation: "rank"})
	if !errors.Is(resp.Err, ErrNoAvailableService) {
		t.Fatalf("err = %v, want ErrNoAvailableService", resp.Err)
	}
	if n := invocations.Load(); n != 1 {
		t.Errorf("backend invoked %d times, want 1", n)
	}
}

func TestCachedResponseSkipsBackend(t *testing.T) {
	g, reg := startGateway(t, Config{}, breaker.Config{})

	var invocations atomic.Int64
	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		invocations.Add(1)
		return "fresh", nil
	}, "rank")
	waitFindable(t, reg, "rank", 1)

	req := Request{Operation: "rank", CacheKey: "rank|graph-1"}
	if resp := g.Dispatch(context.Background(), req); resp.Err != nil || resp.FromCache {
		t.Fatalf("first dispatch = %+v, want fresh success", resp)
	}
	resp := g.Dispatch(context.Background(), req)
	if resp.Err != nil {
		t.Fatalf("second dispatch failed: %v", resp.Err)
	}
	if !resp.FromCache || resp.ServedBy != ServedByCache {
		t.Errorf("second dispatch = %+v, want cache hit", resp)
	}
	if resp.Result != "fresh" {
		t.Errorf("cached result = %v, want fresh", resp.Result)
	}
	if n := invocations.Load(); n != 1 {
		t.Errorf("backend invoked %d times, want 1", n)
	}
}

func TestValidationFallsBackToDefault(t *testing.T) {
	g, reg := startGateway(t, Config{
		FallbackDefaults: map[string]any{"summary": map[string]any{"rows": 0}},
	}, breaker.Config{})

	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		return nil, &apperrors.ValidationError{Field: "graph", Reason: "empty"}
	}, "summary")
	waitFindable(t, reg, "summary", 1)

	resp := g.Dispatch(context.Background(), Request{Operation: "summary"})
	if resp.Err != nil {
		t.Fatalf("dispatch failed: %v", resp.Err)
	}
	if resp.ServedBy != ServedByFallback {
		t.Errorf("served by %s, want fallback", resp.ServedBy)
	}
	out, ok := resp.Result.(map[string]any)
	if !ok || out["rows"] != 0 {
		t.Errorf("result = %v, want default summary", resp.Result)
	}
	if m := g.Metrics(); m.Fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", m.Fallbacks)
	}
}

func TestBatchReturnsOneResponsePerRequest(t *testing.T) {
	g, reg := startGateway(t, Config{BatchConcurrency: 2}, breaker.Config{})

	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		if fail, _ := params["fail"].(bool); fail {
			return nil, &apperrors.UnsupportedError{Operation: operation}
		}
		return params["name"], nil
	}, "rank")
	waitFindable(t, reg, "rank", 1)

	reqs := make([]Request, 5)
	for i := range reqs {
		reqs[i] = Request{
			ID:        fmt.Sprintf("req-%d", i),
			Operation: "rank",
			Params:    map[string]any{"name": fmt.Sprintf("req-%d", i), "fail": i == 1 || i == 3},
		}
	}

	out := g.DispatchBatch(context.Background(), reqs)
	if len(out) != len(reqs) {
		t.Fatalf("got %d responses, want %d", len(out), len(reqs))
	}
	for i, resp := range out {
		if resp.RequestID != reqs[i].ID {
			t.Errorf("response %d has id %s, want %s", i, resp.RequestID, reqs[i].ID)
		}
		wantFail := i == 1 || i == 3
		if wantFail && resp.Err == nil {
			t.Errorf("response %d unexpectedly succeeded", i)
		}
		if !wantFail {
			if resp.Err != nil {
				t.Errorf("response %d failed: %v", i, resp.Err)
			} else if resp.Result != reqs[i].ID {
				t.Errorf("response %d result = %v, want %s", i, resp.Result, reqs[i].ID)
			}
		}
	}
}

func TestDispatchAfterStopFails(t *testing.T) {
	g, reg := startGateway(t, Config{}, breaker.Config{})
	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		return "done", nil
	}, "rank")
	waitFindable(t, reg, "rank", 1)

	g.Stop(time.Second)
	resp := g.Dispatch(context.Background(), Request{Operation: "rank"})
	if !errors.Is(resp.Err, ErrShuttingDown) {
		t.Fatalf("err = %v, want ErrShuttingDown", resp.Err)
	}
}

func TestMalformedRequestRejectedBeforeQueue(t *testing.T) {
	g, reg := startGateway(t, Config{}, breaker.Config{})
	var invocations atomic.Int64
	registerEngine(t, reg, "svc-a", func(ctx context.Context, operation string, params map[string]any) (any, error) {
		invocations.Add(1)
		return "done", nil
	}, "rank")
	waitFindable(t, reg, "rank", 1)

	resp := g.Dispatch(context.Background(), Request{Operation: ""})
	if resp.Err == nil {
		t.Fatal("expected error for request without operation")
	}
	if resp.Record == nil || resp.Record.Category != apperrors.CategoryValidation {
		t.Fatalf("record = %+v, want validation category", resp.Record)
	}
	if invocations.Load() != 0 {
		t.Errorf("backend invoked %d times for malformed request", invocations.Load())
	}
}
