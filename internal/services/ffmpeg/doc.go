// Package ffmpeg wraps the ffmpeg binary as an alternative GIF encoder.
package ffmpeg
