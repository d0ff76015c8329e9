// Package server exposes gatekit's observability surface over HTTP using
// Gin. The surface is read-only: dispatch traffic never flows through it.
//
// # Endpoints
//
//   - /healthz: component health aggregation
//   - /readyz: readiness probe
//   - /version: build version information
//   - /v1/metrics: gateway and cache counters
//   - /v1/services: registered services and their health tiers
//   - /v1/breakers: circuit breaker snapshots
//   - /v1/errors: recent classified failures
//
// # Middleware
//
// Built-in middleware (server/middleware): panic recovery, request-ID
// propagation, CORS, body-size limits, and request logging.
package server
