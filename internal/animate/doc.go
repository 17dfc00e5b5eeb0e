// Package animate assembles a directory of rendered frames into an animated
// GIF.
//
// Two encoders are available. The builtin encoder does all image work
// in process. The ffmpeg encoder hands a concat script to the
// ffmpeg binary and is refused up front when that binary is missing. Either
// way the animation is written to a temp file beside the target and renamed
// into place, and the frame directory is only read.
package animate
