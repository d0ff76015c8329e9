// Package cache provides TTL-based request memoization shared by the
// gateway (response cache) and the registry (discovery-result cache).
//
// Cache is a generic in-process store: GetOrCompute collapses concurrent
// misses for the same key into one computation (single-flight), expired
// entries are evicted lazily on lookup, and compute failures are never
// cached. RedisStore is an optional shared byte-payload tier used by the
// gateway when responses should survive a single process.
package cache
