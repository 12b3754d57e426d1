// Package logging assembles the structured slog loggers used across berth
// components.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so reconciler and importer code can tag
// log lines with queue item IDs, client IDs, and poll correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
