// Package render turns every snapshot of a recording archive into a still
// image by invoking the OpenSCAD renderer once per entry.
//
// Images are named after the entry stem, so the image directory sorts in the
// same order as the archive and repeated runs produce the same names.
package render
