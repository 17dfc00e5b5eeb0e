package animate

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"scadrec/internal/deps"
	"scadrec/internal/services"
	"scadrec/internal/services/ffmpeg"
)

// FFmpegEncoder delegates palette generation and encoding to ffmpeg.
type FFmpegEncoder struct {
	Client *ffmpeg.Client
	// TempDir hosts the concat script. Empty means the system temp dir.
	TempDir string
}

// Name implements Encoder.
func (FFmpegEncoder) Name() string { return "ffmpeg" }

// Check implements Encoder.
func (e FFmpegEncoder) Check() error {
	if e.Client == nil {
		return services.Wrap(services.ErrConfiguration, "animate", "ffmpeg", "ffmpeg client not configured", nil)
	}
	return deps.Require(deps.FFmpeg(e.Client.Binary(), true))
}

// Encode implements Encoder.
func (e FFmpegEncoder) Encode(ctx context.Context, frames []string, output string, settings Settings) error {
	if err := e.Check(); err != nil {
		return err
	}
	script, err := os.CreateTemp(e.TempDir, "scadrec-*.ffconcat")
	if err != nil {
		return fmt.Errorf("create concat script: %w", err)
	}
	scriptPath := script.Name()
	defer os.Remove(scriptPath)

	if _, err := script.WriteString(ConcatScript(frames, settings)); err != nil {
		_ = script.Close()
		return fmt.Errorf("write concat script: %w", err)
	}
	if err := script.Close(); err != nil {
		return fmt.Errorf("close concat script: %w", err)
	}

	return e.Client.EncodeGIF(ctx, ffmpeg.GIFRequest{
		ConcatScript: scriptPath,
		Output:       output,
		Width:        settings.Width,
		LoopCount:    settings.LoopCount,
	})
}

// ConcatScript renders an ffconcat listing with one duration per frame. The
// last file is repeated because the concat demuxer ignores the final
// duration.
func ConcatScript(frames []string, settings Settings) string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	delays := settings.Delays(len(frames))
	for i, frame := range frames {
		fmt.Fprintf(&b, "file %s\n", quoteConcatPath(frame))
		fmt.Fprintf(&b, "duration %s\n", strconv.FormatFloat(delays[i].Seconds(), 'f', -1, 64))
	}
	if len(frames) > 0 {
		fmt.Fprintf(&b, "file %s\n", quoteConcatPath(frames[len(frames)-1]))
	}
	return b.String()
}

func quoteConcatPath(path string) string {
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}
