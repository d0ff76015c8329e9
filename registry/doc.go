// Package registry maintains the set of known backend analytics engines,
// their capabilities, health, and per-service metrics.
//
// The Registry is the gateway's source of dispatch candidates: Find returns
// healthy services first (degraded as a secondary tier) ordered by recent
// latency, with results cached for a short TTL and invalidated eagerly on
// any topology or health change. A background monitor probes each service's
// health endpoint; the probes themselves run through the shared circuit
// breaker manager so a flapping service's probes back off too.
package registry
