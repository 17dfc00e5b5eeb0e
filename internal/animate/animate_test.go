package animate_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"scadrec/internal/animate"
	"scadrec/internal/services"
	"scadrec/internal/services/ffmpeg"
)

func writeFrame(t *testing.T, dir, name string, w, h int, fill color.Color, mark image.Rectangle) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	for y := mark.Min.Y; y < mark.Max.Y; y++ {
		for x := mark.Min.X; x < mark.Max.X; x++ {
			img.Set(x, y, color.White)
		}
	}
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create frame: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func snapshotDir(t *testing.T, dir string) map[string]int64 {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	out := make(map[string]int64, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			t.Fatalf("Info returned error: %v", err)
		}
		out[e.Name()] = info.Size()
	}
	return out
}

func defaultSettings() animate.Settings {
	return animate.Settings{FrameDelay: 100 * time.Millisecond, FinalDelay: 5 * time.Second, Optimize: true}
}

func TestListFramesSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	black := color.RGBA{A: 255}
	writeFrame(t, dir, "0000000000000002.png", 4, 4, black, image.Rectangle{})
	writeFrame(t, dir, "0000000000000001.png", 4, 4, black, image.Rectangle{})
	writeFrame(t, dir, ".0000000000000003.partial.png", 4, 4, black, image.Rectangle{})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	frames, err := animate.ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames returned error: %v", err)
	}
	var names []string
	for _, f := range frames {
		names = append(names, filepath.Base(f))
	}
	if !slices.Equal(names, []string{"0000000000000001.png", "0000000000000002.png"}) {
		t.Fatalf("unexpected frames %q", names)
	}

	excluded, err := animate.ListFrames(dir, filepath.Join(dir, "0000000000000002.png"))
	if err != nil || len(excluded) != 1 {
		t.Fatalf("exclude failed: %q err=%v", excluded, err)
	}
}

func TestListFramesEmptyDir(t *testing.T) {
	if _, err := animate.ListFrames(t.TempDir()); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := animate.ListFrames(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing dir, got %v", err)
	}
}

func TestBuiltinAssemblesFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	black := color.RGBA{A: 255}
	writeFrame(t, dir, "0001.png", 8, 6, black, image.Rectangle{})
	writeFrame(t, dir, "0002.png", 8, 6, black, image.Rect(2, 1, 4, 3))
	writeFrame(t, dir, "0003.png", 8, 6, black, image.Rect(2, 1, 4, 3))
	before := snapshotDir(t, dir)

	out := filepath.Join(t.TempDir(), "model.gif")
	asm, err := animate.NewAssembler(animate.BuiltinEncoder{}, defaultSettings(), nil)
	if err != nil {
		t.Fatalf("NewAssembler returned error: %v", err)
	}
	result, err := asm.Assemble(context.Background(), dir, out)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if result.Frames != 3 || result.Encoder != "builtin" || result.Bytes == 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	file, err := os.Open(out)
	if err != nil {
		t.Fatalf("open gif: %v", err)
	}
	defer file.Close()
	anim, err := gif.DecodeAll(file)
	if err != nil {
		t.Fatalf("DecodeAll returned error: %v", err)
	}
	if len(anim.Image) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(anim.Image))
	}
	if !slices.Equal(anim.Delay, []int{10, 10, 500}) {
		t.Fatalf("unexpected delays %v", anim.Delay)
	}
	if anim.LoopCount != 0 {
		t.Fatalf("expected infinite loop, got %d", anim.LoopCount)
	}
	if anim.Config.Width != 8 || anim.Config.Height != 6 {
		t.Fatalf("unexpected canvas %dx%d", anim.Config.Width, anim.Config.Height)
	}
	if got := anim.Image[1].Bounds(); got != image.Rect(2, 1, 4, 3) {
		t.Fatalf("expected changed region only, got %v", got)
	}
	if got := anim.Image[2].Bounds(); got.Dx() != 1 || got.Dy() != 1 {
		t.Fatalf("identical frame should be a single pixel, got %v", got)
	}

	if after := snapshotDir(t, dir); len(after) != len(before) {
		t.Fatalf("image directory changed: %v -> %v", before, after)
	}
}

func TestBuiltinScalesToWidth(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "0001.png", 40, 20, color.RGBA{R: 200, A: 255}, image.Rectangle{})
	writeFrame(t, dir, "0002.png", 40, 20, color.RGBA{G: 200, A: 255}, image.Rectangle{})

	settings := defaultSettings()
	settings.Width = 10
	settings.Optimize = false
	settings.LoopCount = -1
	out := filepath.Join(t.TempDir(), "small.gif")
	asm, err := animate.NewAssembler(animate.BuiltinEncoder{}, settings, nil)
	if err != nil {
		t.Fatalf("NewAssembler returned error: %v", err)
	}
	if _, err := asm.Assemble(context.Background(), dir, out); err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	file, err := os.Open(out)
	if err != nil {
		t.Fatalf("open gif: %v", err)
	}
	defer file.Close()
	anim, err := gif.DecodeAll(file)
	if err != nil {
		t.Fatalf("DecodeAll returned error: %v", err)
	}
	if anim.Config.Width != 10 || anim.Config.Height != 5 {
		t.Fatalf("unexpected canvas %dx%d", anim.Config.Width, anim.Config.Height)
	}
	if anim.LoopCount != -1 {
		t.Fatalf("expected play-once loop count, got %d", anim.LoopCount)
	}
}

func TestAssembleSkipsOutputInsideImageDir(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "0001.png", 4, 4, color.RGBA{A: 255}, image.Rectangle{})
	out := filepath.Join(dir, "progress.gif")
	asm, err := animate.NewAssembler(animate.BuiltinEncoder{}, defaultSettings(), nil)
	if err != nil {
		t.Fatalf("NewAssembler returned error: %v", err)
	}
	for range 2 {
		result, err := asm.Assemble(context.Background(), dir, out)
		if err != nil {
			t.Fatalf("Assemble returned error: %v", err)
		}
		if result.Frames != 1 {
			t.Fatalf("previous gif counted as a frame: %+v", result)
		}
	}
}

func TestFFmpegAbsentFailsCleanly(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "0001.png", 4, 4, color.RGBA{A: 255}, image.Rectangle{})
	writeFrame(t, dir, "0002.png", 4, 4, color.RGBA{A: 255}, image.Rect(0, 0, 1, 1))
	before := snapshotDir(t, dir)

	client, err := ffmpeg.New(filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	if err != nil {
		t.Fatalf("ffmpeg.New returned error: %v", err)
	}
	outDir := t.TempDir()
	out := filepath.Join(outDir, "model.gif")
	asm, err := animate.NewAssembler(animate.FFmpegEncoder{Client: client}, defaultSettings(), nil)
	if err != nil {
		t.Fatalf("NewAssembler returned error: %v", err)
	}

	_, err = asm.Assemble(context.Background(), dir, out)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("gif created despite missing encoder: %v", statErr)
	}
	if leftovers, _ := os.ReadDir(outDir); len(leftovers) != 0 {
		t.Fatalf("output directory not clean: %v", leftovers)
	}
	after := snapshotDir(t, dir)
	if len(after) != len(before) {
		t.Fatalf("image directory changed: %v -> %v", before, after)
	}
	for name, size := range before {
		if after[name] != size {
			t.Fatalf("frame %s modified", name)
		}
	}
}

type recordingExecutor struct {
	args   []string
	script string
}

func (r *recordingExecutor) Run(_ context.Context, _ string, args []string, _ func(string)) error {
	r.args = append([]string(nil), args...)
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) {
			data, err := os.ReadFile(args[i+1])
			if err != nil {
				return err
			}
			r.script = string(data)
		}
	}
	return os.WriteFile(args[len(args)-1], []byte("GIF89a"), 0o644)
}

func TestFFmpegEncoderWithoutClient(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "0001.png", 4, 4, color.RGBA{A: 255}, image.Rectangle{})
	var encoder animate.FFmpegEncoder
	if err := encoder.Check(); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error from Check, got %v", err)
	}
	out := filepath.Join(t.TempDir(), "model.gif")
	err := encoder.Encode(context.Background(), []string{filepath.Join(dir, "0001.png")}, out, defaultSettings())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error from Encode, got %v", err)
	}
}

func TestFFmpegEncoderWritesConcatScript(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writeFrame(t, dir, "0001.png", 4, 4, color.RGBA{A: 255}, image.Rectangle{})
	writeFrame(t, dir, "0002.png", 4, 4, color.RGBA{A: 255}, image.Rectangle{})

	stub := &recordingExecutor{}
	client, err := ffmpeg.New(bin, ffmpeg.WithExecutor(stub))
	if err != nil {
		t.Fatalf("ffmpeg.New returned error: %v", err)
	}
	asm, err := animate.NewAssembler(animate.FFmpegEncoder{Client: client, TempDir: t.TempDir()}, defaultSettings(), nil)
	if err != nil {
		t.Fatalf("NewAssembler returned error: %v", err)
	}
	out := filepath.Join(t.TempDir(), "model.gif")
	result, err := asm.Assemble(context.Background(), dir, out)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if result.Encoder != "ffmpeg" {
		t.Fatalf("unexpected encoder %q", result.Encoder)
	}

	lines := strings.Split(strings.TrimSpace(stub.script), "\n")
	want := []string{
		"ffconcat version 1.0",
		"file '" + filepath.Join(dir, "0001.png") + "'",
		"duration 0.1",
		"file '" + filepath.Join(dir, "0002.png") + "'",
		"duration 5",
		"file '" + filepath.Join(dir, "0002.png") + "'",
	}
	if !slices.Equal(lines, want) {
		t.Fatalf("unexpected concat script:\n%s", stub.script)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "GIF89a" {
		t.Fatalf("output not moved into place: %q err=%v", data, err)
	}
}

func TestConcatScriptQuotesPaths(t *testing.T) {
	script := animate.ConcatScript([]string{"/tmp/it's.png"}, defaultSettings())
	if !strings.Contains(script, `file '/tmp/it'\''s.png'`) {
		t.Fatalf("path not quoted: %s", script)
	}
}

func TestNewAssemblerValidatesSettings(t *testing.T) {
	if _, err := animate.NewAssembler(animate.BuiltinEncoder{}, animate.Settings{}, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := animate.NewAssembler(nil, defaultSettings(), nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
