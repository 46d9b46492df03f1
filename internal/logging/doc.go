// Package logging assembles structured slog loggers and formatting helpers used
// across audioindex.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes small attribute helpers so the index, record store
// and facade emit the same field names. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
