// Package services defines shared utilities consumed by the commands and the
// external tool integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent process exit codes.
//   - A thin Executor abstraction that makes running openscad and ffmpeg
//     testable and captures their output for error reports.
//
// Subpackages wrap one external binary each.
package services
