// Package logging assembles structured slog loggers and formatting helpers used
// across oszshare components.
//
// It owns the console/JSON handlers, per-run log files with age-based
// retention, and context-aware helpers that tag lines with the operation
// trigger and correlation IDs. A no-op logger is provided for tests and wiring
// code that cannot fail. Handler write errors never reach callers.
package logging
