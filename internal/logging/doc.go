// Package logging assembles structured slog loggers and formatting helpers used
// across scadrec commands.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so long-running commands such as the
// recorder can tag every line with the archive and run identifier. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
