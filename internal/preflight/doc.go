// Package preflight runs environment checks before a workflow touches disk or
// spawns external tools.
//
// The doctor command renders these results; gen_imgs and gen_gif reuse the
// directory checks to fail before any output is written.
package preflight
