package openscad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"

	"scadrec/internal/logging"
	"scadrec/internal/services"
)

// Renderer converts a model file into a still image.
type Renderer interface {
	Render(ctx context.Context, modelPath, imagePath string) error
}

// Settings describes how openscad is invoked.
type Settings struct {
	// Args is a shell-quoted argument string appended after the output flag.
	Args    string
	ImgSize string
	Camera  string
	Timeout time.Duration
}

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

// WithLogger routes openscad output lines to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client wraps openscad CLI interactions.
type Client struct {
	binary  string
	args    []string
	timeout time.Duration
	exec    services.Executor
	logger  *slog.Logger
}

// New constructs an openscad client.
func New(binary string, settings Settings, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "openscad", "init", "binary required", nil)
	}
	args, err := shlex.Split(settings.Args)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "openscad", "init", fmt.Sprintf("parse args %q", settings.Args), err)
	}
	if size := strings.TrimSpace(settings.ImgSize); size != "" {
		args = append(args, "--imgsize="+size)
	}
	if camera := strings.TrimSpace(settings.Camera); camera != "" {
		args = append(args, "--camera="+camera)
	}
	client := &Client{
		binary:  binary,
		args:    args,
		timeout: settings.Timeout,
		exec:    services.CommandExecutor{},
		logger:  logging.NewNop(),
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

// CommandArgs returns the argument vector used to render modelPath into imagePath.
// openscad picks the export format from the output extension.
func (c *Client) CommandArgs(modelPath, imagePath string) []string {
	args := make([]string, 0, len(c.args)+3)
	args = append(args, modelPath, "-o", imagePath)
	return append(args, c.args...)
}

// Render executes openscad and verifies that a non-empty image was written.
func (c *Client) Render(ctx context.Context, modelPath, imagePath string) error {
	if strings.TrimSpace(modelPath) == "" || strings.TrimSpace(imagePath) == "" {
		return services.Wrap(services.ErrValidation, "openscad", "render", "model and image paths required", nil)
	}

	renderCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.exec.Run(renderCtx, c.binary, c.CommandArgs(modelPath, imagePath), func(line string) {
		c.logger.Debug("openscad output", logging.String("line", line))
	})
	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return services.Wrap(services.ErrExternalTool, "openscad", "render", fmt.Sprintf("binary %q not found", c.binary), err)
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return services.Wrap(services.ErrTimeout, "openscad", "render", fmt.Sprintf("exceeded %s", c.timeout), err)
		default:
			return services.Wrap(services.ErrExternalTool, "openscad", "render", modelPath, err)
		}
	}

	info, err := os.Stat(imagePath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "openscad", "render", "no image produced", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "openscad", "render", "empty image produced", nil)
	}
	return nil
}

// Version reports the installed openscad version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var mu sync.Mutex
	var lines []string
	if err := c.exec.Run(ctx, c.binary, []string{"--version"}, func(line string) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			mu.Lock()
			lines = append(lines, trimmed)
			mu.Unlock()
		}
	}); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "openscad", "version", "", err)
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], nil
}
