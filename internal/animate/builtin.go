package animate

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"time"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"scadrec/internal/logging"
	"scadrec/internal/services"
)

// BuiltinEncoder assembles GIFs without external tools.
type BuiltinEncoder struct {
	Logger *slog.Logger
}

// Name implements Encoder.
func (BuiltinEncoder) Name() string { return "builtin" }

// Check implements Encoder.
func (BuiltinEncoder) Check() error { return nil }

// Encode implements Encoder.
func (e BuiltinEncoder) Encode(ctx context.Context, frames []string, output string, settings Settings) error {
	logger := e.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	anim := &gif.GIF{LoopCount: settings.LoopCount}
	delays := settings.Delays(len(frames))
	pal := color.Palette(palette.Plan9)

	var canvas image.Rectangle
	var prev *image.RGBA
	for i, path := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := decodeFrame(path)
		if err != nil {
			return err
		}
		if i == 0 {
			canvas = targetBounds(src.Bounds(), settings.Width)
			anim.Config = image.Config{ColorModel: pal, Width: canvas.Dx(), Height: canvas.Dy()}
		}
		frame := fitFrame(src, canvas)

		region := canvas
		if settings.Optimize && prev != nil {
			region = changedRegion(prev, frame)
		}
		paletted := image.NewPaletted(region, pal)
		draw.FloydSteinberg.Draw(paletted, region, frame, region.Min)

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, centiseconds(delays[i]))
		anim.Disposal = append(anim.Disposal, gif.DisposalNone)
		prev = frame

		logger.Debug("frame encoded",
			logging.String("frame", path),
			logging.String("region", region.String()),
		)
	}

	file, err := os.Create(output)
	if err != nil {
		return services.Wrap(services.ErrValidation, "animate", "encode", "create output", err)
	}
	w := bufio.NewWriter(file)
	if err := gif.EncodeAll(w, anim); err != nil {
		_ = file.Close()
		return fmt.Errorf("encode gif: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("write gif: %w", err)
	}
	return file.Close()
}

func decodeFrame(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer file.Close()
	img, _, err := image.Decode(bufio.NewReader(file))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "animate", "decode", path, err)
	}
	return img, nil
}

// targetBounds returns the canvas for a first frame of size b scaled to width.
func targetBounds(b image.Rectangle, width int) image.Rectangle {
	if width <= 0 || width == b.Dx() || b.Dx() == 0 {
		return image.Rect(0, 0, b.Dx(), b.Dy())
	}
	height := (b.Dy()*width + b.Dx()/2) / b.Dx()
	if height < 1 {
		height = 1
	}
	return image.Rect(0, 0, width, height)
}

// fitFrame copies src onto an RGBA image of size canvas, scaling when the
// sizes differ.
func fitFrame(src image.Image, canvas image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(canvas)
	sb := src.Bounds()
	if sb.Dx() == canvas.Dx() && sb.Dy() == canvas.Dy() {
		draw.Draw(dst, canvas, src, sb.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, canvas, src, sb, draw.Src, nil)
	return dst
}

// changedRegion returns the bounding box of pixels that differ between a and
// b. Identical frames yield a single pixel so the frame still carries its
// delay.
func changedRegion(a, b *image.RGBA) image.Rectangle {
	bounds := b.Bounds()
	if bounds.Empty() {
		return bounds
	}
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		rowA := a.Pix[a.PixOffset(bounds.Min.X, y) : a.PixOffset(bounds.Max.X-1, y)+4]
		rowB := b.Pix[b.PixOffset(bounds.Min.X, y) : b.PixOffset(bounds.Max.X-1, y)+4]
		for x := 0; x < bounds.Dx(); x++ {
			i := x * 4
			if rowA[i] == rowB[i] && rowA[i+1] == rowB[i+1] && rowA[i+2] == rowB[i+2] && rowA[i+3] == rowB[i+3] {
				continue
			}
			px := bounds.Min.X + x
			minX, maxX = min(minX, px), max(maxX, px)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+1, bounds.Min.Y+1)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// centiseconds converts d to GIF delay units, never below one.
func centiseconds(d time.Duration) int {
	cs := int((d + 5*time.Millisecond) / (10 * time.Millisecond))
	if cs < 1 {
		cs = 1
	}
	return cs
}
