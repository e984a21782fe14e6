// Package logging provides structured logging utilities for the DGX resource
// manager.
//
// It wraps the standard library slog package with project defaults: JSON
// output to stderr, module/version context on every record, environment-based
// level configuration via LOG_LEVEL, and source location tracking for debug
// logs.
//
// Setting the default logger (recommended):
//
//	logging.SetDefaultStructuredLoggerWithLevel("dgxrm", "v1.0.0", "info")
//	slog.Info("sweep started", "cycle", id)
//
// If no explicit level is given, the LOG_LEVEL environment variable is
// consulted and defaults to INFO.
package logging
