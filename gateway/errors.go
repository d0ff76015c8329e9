package gateway

import "errors"

var (
	// ErrOverloaded is returned when the request queue is full. The
	// caller should back off; the request was never accepted.
	ErrOverloaded = errors.New("gateway: queue full")

	// ErrNoAvailableService is returned when no registered engine can
	// serve the requested capability, or every candidate's circuit is
	// open.
	ErrNoAvailableService = errors.New("gateway: no available service")

	// ErrDeadlineExceeded is returned when a request's deadline passed
	// before a worker could start it. No backend was invoked.
	ErrDeadlineExceeded = errors.New("gateway: request deadline exceeded")

	// ErrShuttingDown is returned for requests that cannot be served
	// because the gateway is stopping or has not been started.
	ErrShuttingDown = errors.New("gateway: shutting down")
)
