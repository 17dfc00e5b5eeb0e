// Package main hosts the scadrec CLI entrypoint and command graph.
//
// The Cobra command tree maps terminal invocations onto the internal
// packages. It owns configuration resolution and logger construction, and
// applies flag overrides on top of the loaded configuration. Legacy single-dash flags (-in, -imgs, -gif, ...) are rewritten
// before Cobra sees them.
package main
