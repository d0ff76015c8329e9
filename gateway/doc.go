// Package gateway accepts analytics requests, orders them by priority,
// and dispatches them to registered engines through a bounded worker
// pool. Dispatch consults the response cache first, filters out engines
// whose circuit is open, and fails over to the next candidate according
// to the error handler's policy. All failures come back as structured
// responses; Dispatch never panics across the boundary.
package gateway
