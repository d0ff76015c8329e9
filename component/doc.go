// Package component provides lifecycle management for gatekit's
// long-running pieces (gateway worker pool, registry health monitor,
// observability server). Components start in registration order and stop
// in reverse, so dependencies are always up before their consumers.
package component
