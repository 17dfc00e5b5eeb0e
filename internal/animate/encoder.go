package animate

import (
	"context"
	"time"
)

// Settings controls frame timing and output geometry.
type Settings struct {
	FrameDelay time.Duration
	// FinalDelay holds the last frame so the finished model stays visible.
	FinalDelay time.Duration
	// Width scales frames keeping the aspect ratio; 0 keeps the source size.
	Width int
	// LoopCount follows image/gif: 0 loops forever, -1 plays once.
	LoopCount int
	// Optimize stores only the changed region of each frame.
	Optimize bool
}

// Delays returns the display time of each of n frames.
func (s Settings) Delays(n int) []time.Duration {
	delays := make([]time.Duration, n)
	for i := range delays {
		delays[i] = s.FrameDelay
	}
	if n > 0 {
		delays[n-1] = s.FinalDelay
	}
	return delays
}

// Encoder writes frames as an animated GIF to output.
type Encoder interface {
	Name() string
	// Check fails when the encoder cannot run. It is called before any file
	// is created.
	Check() error
	Encode(ctx context.Context, frames []string, output string, settings Settings) error
}
