// Package engine provides clients for backend analytics engines.
//
// HTTPEngine talks to a backend over HTTP/JSON, translating status codes
// into the classification markers the gateway's error handling keys off.
// Func wraps plain functions as an engine for tests and in-process
// backends. The analytics algorithms behind either are out of scope.
package engine
