// Package breaker implements a per-dependency circuit breaker.
//
// A CircuitBreaker isolates a failing dependency by failing fast once
// failures within a rolling window cross a count or rate threshold, then
// probing recovery with a bounded number of half-open trial calls.
//
// States:
//   - Closed: normal operation, calls pass through
//   - Open: dependency is unhealthy, calls fail with ErrCircuitOpen
//   - HalfOpen: limited probes test whether the dependency recovered
//
// A Manager owns one breaker per dependency key, created lazily on first
// use, and is shared process-wide by the gateway and the registry.
package breaker
