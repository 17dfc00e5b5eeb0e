// Package openscad wraps the openscad command-line renderer.
//
// A Client turns one model file into one image per call. Arguments are
// configured once from a shell-quoted string so users can paste the flags they
// already use interactively.
package openscad
