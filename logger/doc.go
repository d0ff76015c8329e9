// Package logger provides structured logging for gatekit components.
//
// It wraps rs/zerolog with a small Config surface and component-scoped
// child loggers. Every gatekit component takes a *logger.Logger at
// construction time; there is no package-level global logger.
package logger
