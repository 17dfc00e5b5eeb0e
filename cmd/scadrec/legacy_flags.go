package main

import "strings"

// legacyFlags maps the single-dash spellings of the original tool onto the
// current long flags.
var legacyFlags = map[string]string{
	"-in":            "--in",
	"-imgs":          "--imgs",
	"-gif":           "--gif",
	"-tmp":           "--tmp",
	"-openscad_bin":  "--openscad-bin",
	"-openscad_args": "--openscad-args",
}

// normalizeLegacyArgs rewrites legacy flags, including their -flag=value
// form. The token after a rewritten flag is its value and is left alone, as
// is everything after "--".
func normalizeLegacyArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		name, value, hasValue := strings.Cut(arg, "=")
		replacement, ok := legacyFlags[name]
		if !ok {
			out = append(out, arg)
			continue
		}
		if hasValue {
			out = append(out, replacement+"="+value)
			continue
		}
		out = append(out, replacement)
		if i+1 < len(args) {
			i++
			out = append(out, args[i])
		}
	}
	return out
}
