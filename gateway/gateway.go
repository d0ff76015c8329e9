package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/cache"
	apperrors "github.com/analyticore/gatekit/errors"
	"github.com/analyticore/gatekit/logger"
	"github.com/analyticore/gatekit/registry"
)

// ServedByCache and ServedByFallback mark responses that were produced
// without invoking an engine.
const (
	ServedByCache    = "cache"
	ServedByFallback = "fallback"
)

// Gateway queues requests by priority and dispatches them to registered
// engines. One shared breaker manager covers both the registry's health
// probes and the gateway's per-route invocation breakers, so a route
// opened here is visible in the same snapshot set as everything else.
type Gateway struct {
	config   Config
	registry *registry.Registry
	breakers *breaker.Manager
	handler  *apperrors.Handler
	window   *apperrors.Window
	log      *logger.Logger

	responses *cache.Cache[any]
	shared    *cache.RedisStore

	queue  *queue
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool

	rrMu sync.Mutex
	rr   map[string]uint64

	counters counters
}

// New builds a Gateway. The registry supplies candidates and engines;
// the breaker manager is shared with the registry's probe breakers.
func New(cfg Config, reg *registry.Registry, breakers *breaker.Manager, log *logger.Logger) *Gateway {
	cfg.ApplyDefaults()
	return &Gateway{
		config:    cfg,
		registry:  reg,
		breakers:  breakers,
		handler:   apperrors.NewHandler(nil),
		window:    apperrors.NewWindow(256),
		log:       log.WithComponent("gateway"),
		responses: cache.New[any](cache.Config{JanitorInterval: time.Minute}),
		queue:     newQueue(cfg.QueueCapacity),
		rr:        make(map[string]uint64),
	}
}

// SetHandler replaces the default error-handling policy table.
func (g *Gateway) SetHandler(h *apperrors.Handler) {
	if h != nil {
		g.handler = h
	}
}

// SetSharedCache enables the Redis tier of the response cache. The
// in-process cache stays the first tier; Redis is consulted on local
// misses and written through on success.
func (g *Gateway) SetSharedCache(store *cache.RedisStore) {
	g.shared = store
}

// ErrorWindow exposes the recent classified failures for the metrics
// surface.
func (g *Gateway) ErrorWindow() *apperrors.Window { return g.window }

// ResponseCacheStats exposes the in-process response cache counters.
func (g *Gateway) ResponseCacheStats() cache.Stats { return g.responses.Stats() }

// Start launches the worker pool. The workers outlive ctx cancellation;
// they stop only through Stop so shutdown stays ordered.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return errors.New("gateway: already started")
	}
	g.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g.cancel = cancel
	for i := 0; i < g.config.Workers; i++ {
		g.wg.Add(1)
		go g.worker(runCtx)
	}
	g.log.Info("gateway started", logger.Fields(
		"workers", g.config.Workers,
		"queue_capacity", g.config.QueueCapacity,
	))
	return nil
}

// Stop drains the queue and waits up to grace for in-flight work. After
// the grace period in-flight calls are cancelled and still-queued
// requests fail with ErrShuttingDown. Zero grace uses the configured
// default.
func (g *Gateway) Stop(grace time.Duration) {
	g.mu.Lock()
	if !g.started || g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	g.mu.Unlock()

	if grace <= 0 {
		grace = g.config.ShutdownGrace
	}
	g.queue.close()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		g.cancel()
		for _, it := range g.queue.drain() {
			it.result <- g.failResponse(it.req, ErrShuttingDown, it.enqueued, 0)
		}
		<-done
		g.log.Warn("gateway stopped with work abandoned", logger.Fields("grace", grace.String()))
	}
	g.responses.Close()
	g.log.Info("gateway stopped")
}

// Dispatch runs one request through the gateway and blocks until it is
// served, rejected, or ctx is done. Failures come back inside the
// Response; Dispatch itself never returns an error value.
func (g *Gateway) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return g.failResponse(req, err, start, 0)
	}
	g.counters.accepted.Add(1)
	g.counters.priority(req.Priority).Add(1)

	if resp, ok := g.lookupCache(ctx, req); ok {
		g.counters.cacheHits.Add(1)
		g.counters.completed.Add(1)
		resp.Latency = time.Since(start)
		return resp
	}

	g.mu.Lock()
	running := g.started && !g.stopped
	g.mu.Unlock()
	if !running {
		return g.failResponse(req, ErrShuttingDown, start, 0)
	}

	it := &item{req: req, result: make(chan Response, 1)}
	if err := g.queue.push(it); err != nil {
		if errors.Is(err, ErrOverloaded) {
			g.counters.rejected.Add(1)
			g.log.Warn("request rejected, queue full", logger.Fields(
				logger.FieldRequestID, req.ID,
				logger.FieldOperation, req.Operation,
				logger.FieldPriority, req.Priority.String(),
			))
		}
		return g.failResponse(req, err, start, 0)
	}

	select {
	case resp := <-it.result:
		return resp
	case <-ctx.Done():
		// The worker still processes the item; the buffered channel
		// absorbs its late result.
		return g.failResponse(req, ctx.Err(), start, 0)
	}
}

// DispatchBatch runs every request of the batch, at most BatchConcurrency
// at a time, and returns exactly one response per request in input
// order. A failed request does not stop the rest of the batch.
func (g *Gateway) DispatchBatch(ctx context.Context, reqs []Request) []Response {
	out := make([]Response, len(reqs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.BatchConcurrency)
	for i, req := range reqs {
		eg.Go(func() error {
			out[i] = g.Dispatch(egCtx, req)
			return nil
		})
	}
	// Workers never return errors; partial failure lives in out.
	_ = eg.Wait()
	return out
}

// Metrics returns a point-in-time snapshot of gateway counters.
func (g *Gateway) Metrics() Metrics {
	return g.counters.snapshot(g.queue.depth())
}

func (g *Gateway) worker(ctx context.Context) {
	defer g.wg.Done()
	for {
		it, ok := g.queue.pop()
		if !ok {
			return
		}
		g.counters.inFlight.Add(1)
		resp := g.process(ctx, it)
		g.counters.inFlight.Add(-1)
		it.result <- resp
	}
}

// process runs the dispatch pipeline for one dequeued request: deadline
// check, candidate selection, breaker-guarded invocation, and
// policy-driven retry or fallback.
func (g *Gateway) process(ctx context.Context, it *item) Response {
	req := it.req
	start := time.Now()

	if !req.Deadline.IsZero() && !start.Before(req.Deadline) {
		g.counters.expired.Add(1)
		return g.failResponse(req, ErrDeadlineExceeded, start, 0)
	}

	var callCtx context.Context
	var cancel context.CancelFunc
	if req.Deadline.IsZero() {
		callCtx, cancel = context.WithTimeout(ctx, g.config.DefaultTimeout)
	} else {
		callCtx, cancel = context.WithDeadline(ctx, req.Deadline)
	}
	defer cancel()

	candidates, err := g.registry.Find(callCtx, req.Operation, req.ServiceType)
	if err != nil || len(candidates) == 0 {
		return g.finishFailed(callCtx, req, ErrNoAvailableService, nil, start, 0)
	}

	tried := make(map[string]bool, len(candidates))
	attempts := 0
	var lastErr error
	var lastRec *apperrors.Record

	for attempts < g.config.MaxAttempts {
		pick, ok := g.pickCandidate(req.Operation, candidates, tried)
		if !ok {
			break
		}
		eng, err := g.registry.Engine(pick.ID)
		if err != nil {
			// Deregistered between find and invoke.
			tried[pick.ID] = true
			continue
		}

		cb := g.breakers.Get(routeKey(pick.ID, req.Operation))
		attempts++
		callStart := time.Now()
		result, invErr := breaker.Do(cb, func() (any, error) {
			return eng.Invoke(callCtx, req.Operation, req.Params)
		})
		elapsed := time.Since(callStart)

		if errors.Is(invErr, breaker.ErrCircuitOpen) {
			// The engine was never touched; this attempt is free.
			attempts--
			tried[pick.ID] = true
			continue
		}
		g.registry.RecordCall(pick.ID, elapsed, invErr != nil)

		if invErr == nil {
			g.storeResponse(callCtx, req, result)
			g.counters.completed.Add(1)
			return Response{
				RequestID: req.ID,
				Result:    result,
				ServedBy:  pick.ID,
				Attempts:  attempts,
				Latency:   time.Since(start),
			}
		}

		rec, policy, delay, retry := g.handler.Handle(invErr, attempts)
		g.window.Add(rec)
		g.counters.category(rec.Category).Add(1)
		g.log.Warn("engine invocation failed", logger.Fields(
			logger.FieldRequestID, req.ID,
			logger.FieldOperation, req.Operation,
			logger.FieldBackend, pick.ID,
			logger.FieldCategory, rec.Category.String(),
			logger.FieldAttempt, attempts,
			logger.FieldError, invErr.Error(),
			"action", policy.Action.String(),
		))
		lastErr = invErr
		lastRec = &rec

		switch policy.Action {
		case apperrors.ActionRetry:
			if !retry {
				return g.finishFailed(callCtx, req, lastErr, lastRec, start, attempts)
			}
			tried[pick.ID] = true
			g.counters.retries.Add(1)
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-callCtx.Done():
					return g.finishFailed(callCtx, req, callCtx.Err(), lastRec, start, attempts)
				}
			}
		case apperrors.ActionFallbackCache:
			return g.finishFailed(callCtx, req, lastErr, lastRec, start, attempts)
		case apperrors.ActionFallbackDefault:
			return g.fallbackDefault(req, lastErr, lastRec, start, attempts)
		default:
			return g.failResponseRec(req, lastErr, lastRec, start, attempts)
		}
	}

	if lastErr == nil {
		return g.finishFailed(callCtx, req, ErrNoAvailableService, nil, start, attempts)
	}
	err = fmt.Errorf("gateway: %d attempts exhausted: %w", attempts, lastErr)
	return g.finishFailed(callCtx, req, err, lastRec, start, attempts)
}

// finishFailed applies the fallback ladder before surfacing err: a fresh
// cache hit first, then a configured default for the operation, then the
// structured failure itself.
func (g *Gateway) finishFailed(ctx context.Context, req Request, err error, rec *apperrors.Record, start time.Time, attempts int) Response {
	if resp, ok := g.lookupCache(ctx, req); ok {
		g.counters.cacheHits.Add(1)
		g.counters.completed.Add(1)
		resp.Attempts = attempts
		resp.Latency = time.Since(start)
		return resp
	}
	return g.fallbackDefault(req, err, rec, start, attempts)
}

// fallbackDefault serves the configured default for the operation when
// one exists, otherwise the structured failure.
func (g *Gateway) fallbackDefault(req Request, err error, rec *apperrors.Record, start time.Time, attempts int) Response {
	if dv, ok := g.config.FallbackDefaults[req.Operation]; ok {
		g.counters.fallbacks.Add(1)
		g.counters.completed.Add(1)
		return Response{
			RequestID: req.ID,
			Result:    dv,
			ServedBy:  ServedByFallback,
			Attempts:  attempts,
			Latency:   time.Since(start),
		}
	}
	return g.failResponseRec(req, err, rec, start, attempts)
}

func (g *Gateway) failResponse(req Request, err error, start time.Time, attempts int) Response {
	return g.failResponseRec(req, err, nil, start, attempts)
}

func (g *Gateway) failResponseRec(req Request, err error, rec *apperrors.Record, start time.Time, attempts int) Response {
	if rec == nil {
		r := apperrors.NewRecord(err, "gateway")
		rec = &r
	}
	g.counters.failed.Add(1)
	return Response{
		RequestID: req.ID,
		Err:       err,
		Record:    rec,
		Attempts:  attempts,
		Latency:   time.Since(start),
	}
}

// pickCandidate filters out already-tried candidates and those whose
// route breaker is open, then applies a per-operation round-robin cursor
// over what remains. Candidate order comes from the registry, which
// sorts the healthy tier ahead of the degraded one.
func (g *Gateway) pickCandidate(operation string, candidates []registry.Descriptor, tried map[string]bool) (registry.Descriptor, bool) {
	eligible := make([]registry.Descriptor, 0, len(candidates))
	for _, d := range candidates {
		if tried[d.ID] {
			continue
		}
		if cb, ok := g.breakers.Lookup(routeKey(d.ID, operation)); ok && cb.State() == breaker.StateOpen {
			continue
		}
		eligible = append(eligible, d)
	}
	if len(eligible) == 0 {
		return registry.Descriptor{}, false
	}
	g.rrMu.Lock()
	cur := g.rr[operation]
	g.rr[operation] = cur + 1
	g.rrMu.Unlock()
	return eligible[cur%uint64(len(eligible))], true
}

// lookupCache consults the in-process tier, then Redis when configured.
// Redis hits are promoted into the in-process tier.
func (g *Gateway) lookupCache(ctx context.Context, req Request) (Response, bool) {
	if req.CacheKey == "" {
		return Response{}, false
	}
	if v, ok := g.responses.Get(req.CacheKey); ok {
		return cachedResponse(req, v), true
	}
	if g.shared == nil {
		return Response{}, false
	}
	payload, ok := g.shared.Get(ctx, req.CacheKey)
	if !ok {
		return Response{}, false
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		g.log.Warn("discarding malformed shared cache payload", logger.Fields(
			"cache_key", req.CacheKey,
			logger.FieldError, err.Error(),
		))
		return Response{}, false
	}
	g.responses.Set(req.CacheKey, v, g.cacheTTL(req))
	return cachedResponse(req, v), true
}

func cachedResponse(req Request, v any) Response {
	return Response{
		RequestID: req.ID,
		Result:    v,
		ServedBy:  ServedByCache,
		FromCache: true,
	}
}

// storeResponse writes a successful result through both cache tiers.
func (g *Gateway) storeResponse(ctx context.Context, req Request, result any) {
	if req.CacheKey == "" {
		return
	}
	ttl := g.cacheTTL(req)
	g.responses.Set(req.CacheKey, result, ttl)
	if g.shared == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		g.log.Warn("result not shareable, skipping redis tier", logger.Fields(
			"cache_key", req.CacheKey,
			logger.FieldError, err.Error(),
		))
		return
	}
	g.shared.Set(ctx, req.CacheKey, payload, ttl)
}

func (g *Gateway) cacheTTL(req Request) time.Duration {
	if req.CacheTTL > 0 {
		return req.CacheTTL
	}
	return g.config.ResponseCacheTTL
}

func routeKey(serviceID, operation string) string {
	return registry.EngineBreakerPrefix + serviceID + "/" + operation
}
