package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"scadrec/internal/logging"
	"scadrec/internal/services"
)

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger routes ffmpeg output lines to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps the ffmpeg binary for GIF encoding.
type Client struct {
	binary string
	exec   services.Executor
	logger *slog.Logger
}

// GIFRequest describes one animation encode.
type GIFRequest struct {
	// ConcatScript is an ffconcat file listing frames and their durations.
	ConcatScript string
	Output       string
	// Width scales frames keeping the aspect ratio; 0 keeps the source size.
	Width int
	// LoopCount follows the gif muxer: 0 loops forever, -1 plays once.
	LoopCount int
}

// New constructs an ffmpeg client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ffmpeg", "init", "binary required", nil)
	}
	client := &Client{
		binary: binary,
		exec:   services.CommandExecutor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured executable.
func (c *Client) Binary() string {
	return c.binary
}

// GIFArgs returns the argument vector for req.
func (c *Client) GIFArgs(req GIFRequest) []string {
	filter := "split[a][b];[a]palettegen=stats_mode=diff[p];[b][p]paletteuse=dither=floyd_steinberg"
	if req.Width > 0 {
		filter = fmt.Sprintf("scale=%d:-1:flags=lanczos,%s", req.Width, filter)
	}
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", req.ConcatScript,
		"-filter_complex", "[0:v]" + filter,
		"-fps_mode", "vfr",
		"-loop", strconv.Itoa(req.LoopCount),
		"-f", "gif",
		req.Output,
	}
}

// EncodeGIF runs ffmpeg to assemble the frames listed in req.ConcatScript.
func (c *Client) EncodeGIF(ctx context.Context, req GIFRequest) error {
	if strings.TrimSpace(req.ConcatScript) == "" || strings.TrimSpace(req.Output) == "" {
		return services.Wrap(services.ErrValidation, "ffmpeg", "gif", "concat script and output required", nil)
	}
	err := c.exec.Run(ctx, c.binary, c.GIFArgs(req), func(line string) {
		c.logger.Debug("ffmpeg output", logging.String("line", line))
	})
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return services.Wrap(services.ErrConfiguration, "ffmpeg", "gif", fmt.Sprintf("binary %q not found", c.binary), err)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "gif", "encode failed", err)
	}
}
