package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/cache"
	"github.com/analyticore/gatekit/logger"
)

// Common registry errors.
var (
	// ErrDuplicateService is returned when a service_id is already active.
	ErrDuplicateService = errors.New("service id already registered")
	// ErrServiceNotFound is returned when no record exists for an id.
	ErrServiceNotFound = errors.New("service not found")
)

// ProbeBreakerPrefix keys health-probe breakers in the shared manager.
const ProbeBreakerPrefix = "registry/"

// EngineBreakerPrefix keys per-route invocation breakers in the shared
// manager. The full key is EngineBreakerPrefix + serviceID + "/" + operation.
const EngineBreakerPrefix = "engine/"

// record is one registered service plus its mutable runtime state.
// Each record has its own lock; no registry-wide lock is held while a
// record is updated.
type record struct {
	mu   sync.Mutex
	desc Descriptor

	health   Health
	lastSeen time.Time

	consecFailures  int
	consecSuccesses int

	requests uint64
	failures uint64
	// latencyEWMA smooths recent call latency for find() ordering.
	latencyEWMA time.Duration

	engine Engine
	seq    int
}

// ServiceMetrics is a per-service observability snapshot.
type ServiceMetrics struct {
	ID         string        `json:"service_id"`
	Name       string        `json:"service_name"`
	Health     string        `json:"health"`
	Requests   uint64        `json:"requests"`
	Failures   uint64        `json:"failures"`
	AvgLatency time.Duration `json:"avg_latency"`
	LastSeen   time.Time     `json:"last_seen"`
}

// Metrics is the registry-wide observability snapshot.
type Metrics struct {
	Services []ServiceMetrics `json:"services"`
	ByTier   map[string]int   `json:"by_tier"`
}

// Registry tracks registered backend engines. Safe for concurrent use by
// gateway workers and the health monitor.
type Registry struct {
	cfg      Config
	log      *logger.Logger
	breakers *breaker.Manager

	findCache *cache.Cache[[]Descriptor]

	mu      sync.RWMutex
	records map[string]*record
	nextSeq int

	// probeNow wakes the monitor for a just-registered service.
	probeNow chan string

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// New creates a Registry sharing the process-wide breaker manager.
func New(cfg Config, breakers *breaker.Manager, log *logger.Logger) *Registry {
	cfg.ApplyDefaults()
	return &Registry{
		cfg:       cfg,
		log:       log.WithComponent("registry"),
		breakers:  breakers,
		findCache: cache.New[[]Descriptor](cache.Config{}),
		records:   make(map[string]*record),
		probeNow:  make(chan string, 16),
	}
}

// Register stores a descriptor with health unknown and schedules an
// immediate probe. The descriptor ID is generated when absent. Fails with
// ErrDuplicateService when the id is already active.
func (r *Registry) Register(ctx context.Context, desc Descriptor, eng Engine) (Descriptor, error) {
	if desc.ID == "" {
		desc.ID = uuid.NewString()
	}
	if err := validateDescriptor(desc); err != nil {
		return Descriptor{}, fmt.Errorf("invalid descriptor: %w", err)
	}
	if eng == nil {
		return Descriptor{}, fmt.Errorf("invalid descriptor: engine is required")
	}

	desc.RegisteredAt = time.Now()
	desc.Health = HealthUnknown

	r.mu.Lock()
	if _, exists := r.records[desc.ID]; exists {
		r.mu.Unlock()
		return Descriptor{}, fmt.Errorf("%w: %s", ErrDuplicateService, desc.ID)
	}
	rec := &record{
		desc:   desc,
		health: HealthUnknown,
		engine: eng,
		seq:    r.nextSeq,
	}
	r.nextSeq++
	r.records[desc.ID] = rec
	r.mu.Unlock()

	r.invalidateFindFor(desc)

	// Wake the monitor; a full probe queue just means the periodic sweep
	// picks the service up instead.
	select {
	case r.probeNow <- desc.ID:
	default:
	}

	r.log.Info("service registered", logger.Fields(
		"service_id", desc.ID,
		"service_name", desc.Name,
		"capabilities", desc.Capabilities,
	))
	return desc, nil
}

// Deregister removes a service and its circuit-breaker state. Idempotent.
func (r *Registry) Deregister(serviceID string) {
	r.mu.Lock()
	rec, ok := r.records[serviceID]
	if ok {
		delete(r.records, serviceID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.breakers.Remove(ProbeBreakerPrefix + serviceID)
	r.breakers.RemovePrefix(EngineBreakerPrefix + serviceID + "/")
	r.invalidateFindFor(rec.desc)

	r.log.Info("service deregistered", logger.Fields("service_id", serviceID))
}

// findKey builds the discovery cache key for a query.
func findKey(capability string, svcType ServiceType) string {
	return "find:" + capability + "|" + string(svcType)
}

// Find returns services able to serve capability: the healthy tier first,
// then the degraded tier, each ordered by recent latency with registration
// order as the deterministic tiebreak. Results are cached for a short TTL.
func (r *Registry) Find(ctx context.Context, capability string, svcType ServiceType) ([]Descriptor, error) {
	return r.findCache.GetOrCompute(ctx, findKey(capability, svcType), r.cfg.FindCacheTTL,
		func(context.Context) ([]Descriptor, error) {
			return r.findUncached(capability, svcType), nil
		})
}

func (r *Registry) findUncached(capability string, svcType ServiceType) []Descriptor {
	type candidate struct {
		desc    Descriptor
		latency time.Duration
		seq     int
	}

	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	var healthy, degraded []candidate
	for _, rec := range recs {
		rec.mu.Lock()
		desc := rec.desc
		desc.Health = rec.health
		desc.LastSeen = rec.lastSeen
		lat := rec.latencyEWMA
		seq := rec.seq
		health := rec.health
		rec.mu.Unlock()

		if !desc.HasCapability(capability) {
			continue
		}
		if svcType != "" && desc.Type != svcType {
			continue
		}
		switch health {
		case HealthHealthy:
			healthy = append(healthy, candidate{desc, lat, seq})
		case HealthDegraded:
			degraded = append(degraded, candidate{desc, lat, seq})
		}
	}

	order := func(cands []candidate) []Descriptor {
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].latency != cands[j].latency {
				return cands[i].latency < cands[j].latency
			}
			return cands[i].seq < cands[j].seq
		})
		out := make([]Descriptor, len(cands))
		for i, c := range cands {
			out[i] = c.desc
		}
		return out
	}

	return append(order(healthy), order(degraded)...)
}

// Engine returns the registered engine for a service id.
func (r *Registry) Engine(serviceID string) (Engine, error) {
	r.mu.RLock()
	rec, ok := r.records[serviceID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}
	return rec.engine, nil
}

// Get returns the current descriptor for a service id.
func (r *Registry) Get(serviceID string) (Descriptor, error) {
	r.mu.RLock()
	rec, ok := r.records[serviceID]
	r.mu.RUnlock()
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	desc := rec.desc
	desc.Health = rec.health
	desc.LastSeen = rec.lastSeen
	return desc, nil
}

// RecordCall feeds a dispatch outcome into the per-service metrics the
// gateway weighs candidates with.
func (r *Registry) RecordCall(serviceID string, latency time.Duration, failed bool) {
	r.mu.RLock()
	rec, ok := r.records[serviceID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.requests++
	if failed {
		rec.failures++
	}
	// EWMA with alpha 0.2: heavy enough to follow trends, light enough to
	// ride out single slow calls.
	if rec.latencyEWMA == 0 {
		rec.latencyEWMA = latency
	} else {
		rec.latencyEWMA = time.Duration(float64(rec.latencyEWMA)*0.8 + float64(latency)*0.2)
	}
}

// Metrics returns per-service counters and registry-wide tier counts.
func (r *Registry) Metrics() Metrics {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	m := Metrics{ByTier: map[string]int{}}
	for _, rec := range recs {
		rec.mu.Lock()
		m.Services = append(m.Services, ServiceMetrics{
			ID:         rec.desc.ID,
			Name:       rec.desc.Name,
			Health:     rec.health.String(),
			Requests:   rec.requests,
			Failures:   rec.failures,
			AvgLatency: rec.latencyEWMA,
			LastSeen:   rec.lastSeen,
		})
		m.ByTier[rec.health.String()]++
		rec.mu.Unlock()
	}
	sort.Slice(m.Services, func(i, j int) bool { return m.Services[i].ID < m.Services[j].ID })
	return m
}

// invalidateFindFor busts every cached find() result a descriptor change
// can affect.
func (r *Registry) invalidateFindFor(desc Descriptor) {
	for _, capability := range desc.Capabilities {
		r.findCache.InvalidatePrefix("find:" + capability + "|")
	}
}
