// Package logging assembles the structured slog loggers used by conceptid.
//
// It owns the console and JSON handlers, routes records to stderr and an
// optional log file through a fan-out handler, and exposes context helpers
// so remediation code can tag log lines with the run and concept being
// processed. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
