package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/gateway"
	"github.com/analyticore/gatekit/registry"
)

// Collector exports gatekit's internal counters as OpenTelemetry
// instruments. Everything is observable: the gateway's hot path keeps
// its plain atomics and the SDK pulls snapshots at export time.
type Collector struct {
	registration metric.Registration
}

// NewCollector registers observable instruments over the gateway,
// registry, and breaker manager. Close unregisters them.
func NewCollector(meter metric.Meter, gw *gateway.Gateway, reg *registry.Registry, breakers *breaker.Manager) (*Collector, error) {
	accepted, err := meter.Int64ObservableCounter("gateway.requests.accepted",
		metric.WithDescription("Requests accepted by the gateway"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway.requests.accepted: %w", err)
	}
	completed, err := meter.Int64ObservableCounter("gateway.requests.completed",
		metric.WithDescription("Requests served with a result"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway.requests.completed: %w", err)
	}
	failed, err := meter.Int64ObservableCounter("gateway.requests.failed",
		metric.WithDescription("Requests that surfaced a failure"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway.requests.failed: %w", err)
	}
	rejected, err := meter.Int64ObservableCounter("gateway.requests.rejected",
		metric.WithDescription("Requests rejected because the queue was full"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway.requests.rejected: %w", err)
	}
	cacheHits, err := meter.Int64ObservableCounter("gateway.cache.hits",
		metric.WithDescription("Requests served from the response cache"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway.cache.hits: %w", err)
	}
	queueDepth, err := meter.Int64ObservableGauge("gateway.queue.depth",
		metric.WithDescription("Requests waiting for a worker"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway.queue.depth: %w", err)
	}
	inFlight, err := meter.Int64ObservableGauge("gateway.in_flight",
		metric.WithDescription("Requests currently being dispatched"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway.in_flight: %w", err)
	}
	failures, err := meter.Int64ObservableCounter("gateway.failures",
		metric.WithDescription("Classified backend failures by category"))
	if err != nil {
		return nil, fmt.Errorf("creating gateway.failures: %w", err)
	}
	services, err := meter.Int64ObservableGauge("registry.services",
		metric.WithDescription("Registered services by health tier"))
	if err != nil {
		return nil, fmt.Errorf("creating registry.services: %w", err)
	}
	openBreakers, err := meter.Int64ObservableGauge("breaker.open",
		metric.WithDescription("Circuit breakers currently open"))
	if err != nil {
		return nil, fmt.Errorf("creating breaker.open: %w", err)
	}

	registration, err := meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			m := gw.Metrics()
			o.ObserveInt64(accepted, int64(m.Accepted))
			o.ObserveInt64(completed, int64(m.Completed))
			o.ObserveInt64(failed, int64(m.Failed))
			o.ObserveInt64(rejected, int64(m.Rejected))
			o.ObserveInt64(cacheHits, int64(m.CacheHits))
			o.ObserveInt64(queueDepth, int64(m.QueueDepth))
			o.ObserveInt64(inFlight, m.InFlight)
			for cat, n := range m.ByCategory {
				o.ObserveInt64(failures, int64(n),
					metric.WithAttributes(attribute.String("category", cat)))
			}
			for tier, n := range reg.Metrics().ByTier {
				o.ObserveInt64(services, int64(n),
					metric.WithAttributes(attribute.String("tier", tier)))
			}
			o.ObserveInt64(openBreakers, int64(breakers.OpenCount()))
			return nil
		},
		accepted, completed, failed, rejected, cacheHits,
		queueDepth, inFlight, failures, services, openBreakers,
	)
	if err != nil {
		return nil, fmt.Errorf("registering metrics callback: %w", err)
	}

	return &Collector{registration: registration}, nil
}

// Close unregisters the collector's instruments.
func (c *Collector) Close() error {
	return c.registration.Unregister()
}
