// Package logger provides structured logging functionality for the application
// using Go's standard library log/slog package.
//
// Request-scoped loggers travel in the context: middleware stores one with
// WithLogger and lower layers retrieve it with FromContextOrDefault.
package logger
