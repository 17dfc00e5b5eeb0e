// Package config loads, normalizes, and validates scadrec configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SCADREC_OPENSCAD environment
// fallback for the renderer binary. Command-line flags override whatever this
// package resolves; the Config type is the single place defaults live.
package config
