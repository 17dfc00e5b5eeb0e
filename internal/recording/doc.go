// Package recording stores snapshots of a watched model file in a zip archive.
//
// The archive is an ordered list of entries named after the snapshot's
// modification time in Unix milliseconds, zero-padded to sixteen digits so
// sorting names by string gives the order they were recorded in. Every append
// rewrites the archive into a temp file and renames it into place, so an
// interrupted recorder never leaves a torn zip behind.
//
// Recorder polls the source file and appends a snapshot whenever its
// modification time changes.
package recording
