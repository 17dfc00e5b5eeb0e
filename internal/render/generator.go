package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"scadrec/internal/logging"
	"scadrec/internal/recording"
	"scadrec/internal/services"
	"scadrec/internal/services/openscad"
)

// ImageExt is the extension of rendered frames.
const ImageExt = ".png"

// Options configures a Generator.
type Options struct {
	// TempFile is the scratch model path. Empty means a temp file in TempDir.
	TempFile string
	// TempDir hosts the scratch model when TempFile is empty. Empty means the
	// working directory so relative use/include statements resolve.
	TempDir string
	// Force re-renders entries whose image already exists.
	Force  bool
	Logger *slog.Logger
	// Progress receives a progress bar when it is a terminal.
	Progress io.Writer
}

// Result summarizes one generation pass.
type Result struct {
	Total    int
	Rendered int
	Skipped  int
	Images   []string
}

// Empty reports whether the archive held no snapshots.
func (r Result) Empty() bool {
	return r.Total == 0
}

// Generator renders archive entries in order.
type Generator struct {
	renderer openscad.Renderer
	opts     Options
	logger   *slog.Logger
}

// NewGenerator constructs a generator around renderer.
func NewGenerator(renderer openscad.Renderer, opts Options) (*Generator, error) {
	if renderer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "init", "renderer required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{renderer: renderer, opts: opts, logger: logger}, nil
}

// ImageName returns the image filename for an archive entry.
func ImageName(entryName string) string {
	return recording.Stem(entryName) + ImageExt
}

// Generate renders every entry of archive into imgDir. An empty or missing
// archive yields an empty result and touches nothing.
func (g *Generator) Generate(ctx context.Context, archive *recording.Archive, imgDir string) (Result, error) {
	entries, err := archive.Entries()
	if err != nil {
		return Result{}, err
	}
	if len(entries) == 0 {
		return Result{}, nil
	}

	imgDir = strings.TrimSpace(imgDir)
	if imgDir == "" {
		return Result{}, services.Wrap(services.ErrValidation, "render", "generate", "image directory required", nil)
	}
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "render", "generate", fmt.Sprintf("create image directory %q", imgDir), err)
	}

	model, cleanup, err := g.scratchModel()
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	logger := logging.WithContext(ctx, g.logger)
	result := Result{Total: len(entries), Images: make([]string, 0, len(entries))}
	bar := g.progressBar(len(entries))
	started := time.Now()

	err = archive.Each(func(entry recording.Entry, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		image := filepath.Join(imgDir, ImageName(entry.Name))
		result.Images = append(result.Images, image)

		rendered, err := g.renderEntry(ctx, entry, r, model, image)
		if err != nil {
			return err
		}
		if rendered {
			result.Rendered++
		} else {
			result.Skipped++
		}

		if bar != nil {
			_ = bar.Add(1)
		} else {
			logger.Info("frame ready",
				logging.String(logging.FieldEntry, entry.Name),
				logging.String("progress", fmt.Sprintf("%d/%d", entry.Index+1, result.Total)),
				logging.Bool("rendered", rendered),
			)
		}
		return nil
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return result, err
	}

	logger.Info("image generation complete",
		logging.Int("total", result.Total),
		logging.Int("rendered", result.Rendered),
		logging.Int("skipped", result.Skipped),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	return result, nil
}

func (g *Generator) renderEntry(ctx context.Context, entry recording.Entry, r io.Reader, model, image string) (bool, error) {
	if !g.opts.Force && imageExists(image) {
		g.logger.Debug("image exists; skipping", logging.String(logging.FieldEntry, entry.Name))
		return false, nil
	}

	if err := writeModel(model, r); err != nil {
		return false, err
	}

	partial := filepath.Join(filepath.Dir(image), "."+strings.TrimSuffix(filepath.Base(image), ImageExt)+".partial"+ImageExt)
	_ = os.Remove(partial)
	if err := g.renderer.Render(ctx, model, partial); err != nil {
		_ = os.Remove(partial)
		return false, fmt.Errorf("render %s: %w", entry.Name, err)
	}
	if err := os.Rename(partial, image); err != nil {
		_ = os.Remove(partial)
		return false, fmt.Errorf("move image into place: %w", err)
	}
	return true, nil
}

// scratchModel returns the path snapshots are written to before rendering.
func (g *Generator) scratchModel() (string, func(), error) {
	if path := strings.TrimSpace(g.opts.TempFile); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", nil, fmt.Errorf("resolve temp file: %w", err)
		}
		return abs, func() { _ = os.Remove(abs) }, nil
	}
	dir := strings.TrimSpace(g.opts.TempDir)
	if dir == "" {
		dir = "."
	}
	file, err := os.CreateTemp(dir, ".scadrec-*"+recording.SnapshotExt)
	if err != nil {
		return "", nil, services.Wrap(services.ErrValidation, "render", "generate", "create scratch model", err)
	}
	path := file.Name()
	_ = file.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = os.Remove(path)
		return "", nil, fmt.Errorf("resolve temp file: %w", err)
	}
	return abs, func() { _ = os.Remove(abs) }, nil
}

func (g *Generator) progressBar(total int) *progressbar.ProgressBar {
	file, ok := g.opts.Progress.(*os.File)
	if !ok || !(isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(file),
		progressbar.OptionSetDescription("rendering"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func writeModel(path string, r io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "render", "generate", "write scratch model", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		return fmt.Errorf("write scratch model: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close scratch model: %w", err)
	}
	return nil
}

func imageExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
