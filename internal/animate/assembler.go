package animate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scadrec/internal/logging"
	"scadrec/internal/services"
)

// Result summarizes an assembled animation.
type Result struct {
	Frames  int
	Output  string
	Bytes   int64
	Encoder string
}

// Assembler turns a frame directory into one GIF.
type Assembler struct {
	encoder  Encoder
	settings Settings
	logger   *slog.Logger
}

// NewAssembler builds an assembler around encoder.
func NewAssembler(encoder Encoder, settings Settings, logger *slog.Logger) (*Assembler, error) {
	if encoder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "animate", "init", "encoder required", nil)
	}
	if settings.FrameDelay <= 0 || settings.FinalDelay <= 0 {
		return nil, services.Wrap(services.ErrValidation, "animate", "init", "frame delays must be positive", nil)
	}
	if settings.Width < 0 {
		return nil, services.Wrap(services.ErrValidation, "animate", "init", "width must be non-negative", nil)
	}
	if settings.LoopCount < -1 {
		return nil, services.Wrap(services.ErrValidation, "animate", "init", "loop count must be -1 or greater", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Assembler{encoder: encoder, settings: settings, logger: logger}, nil
}

// Assemble encodes the frames in imgDir into output. The encoder is checked
// before anything is written and the output only appears once complete.
func (a *Assembler) Assemble(ctx context.Context, imgDir, output string) (Result, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return Result{}, services.Wrap(services.ErrValidation, "animate", "assemble", "output path required", nil)
	}
	output, err := filepath.Abs(output)
	if err != nil {
		return Result{}, fmt.Errorf("resolve output path: %w", err)
	}

	if err := a.encoder.Check(); err != nil {
		return Result{}, err
	}
	frames, err := ListFrames(imgDir, output)
	if err != nil {
		return Result{}, err
	}

	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "animate", "assemble", fmt.Sprintf("create output directory %q", dir), err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "animate", "assemble", "create temp output", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	started := time.Now()
	a.logger.Info("assembling animation",
		logging.Int("frames", len(frames)),
		logging.String("encoder", a.encoder.Name()),
		logging.String("output", output),
	)
	if err := a.encoder.Encode(ctx, frames, tmpPath, a.settings); err != nil {
		return Result{}, err
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "animate", "assemble", "encoder produced no output", err)
	}
	if info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrExternalTool, "animate", "assemble", "encoder produced empty output", nil)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return Result{}, fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmpPath, output); err != nil {
		return Result{}, fmt.Errorf("move output into place: %w", err)
	}

	result := Result{Frames: len(frames), Output: output, Bytes: info.Size(), Encoder: a.encoder.Name()}
	a.logger.Info("animation written",
		logging.String("output", output),
		logging.Int64("bytes", result.Bytes),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	return result, nil
}
