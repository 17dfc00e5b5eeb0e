package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"scadrec/internal/recording"
)

// stubOpenSCAD copies the model to the requested output so renders are
// observable without a real openscad install.
const stubOpenSCAD = `#!/bin/sh
if [ "$1" = "--version" ]; then
    echo "OpenSCAD version 2021.01" >&2
    exit 0
fi
cp "$1" "$3"
`

type cliTestEnv struct {
	baseDir    string
	binDir     string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SCADREC_OPENSCAD", "")

	binDir := filepath.Join(base, "bin")
	makeStubExecutable(t, binDir, "openscad", stubOpenSCAD)

	env := &cliTestEnv{
		baseDir:    base,
		binDir:     binDir,
		configPath: filepath.Join(homeDir, ".config", "scadrec", "config.toml"),
	}
	env.writeConfig(t, nil)
	return env
}

// writeConfig writes a config pointing at the stub binaries. extra maps a
// section name to additional lines for that section.
func (e *cliTestEnv) writeConfig(t *testing.T, extra map[string]string) {
	t.Helper()
	sections := map[string][]string{
		"paths":   {fmt.Sprintf("log_dir = %q", filepath.Join(e.baseDir, "logs"))},
		"render":  {fmt.Sprintf("openscad_binary = %q", filepath.Join(e.binDir, "openscad"))},
		"gif":     {fmt.Sprintf("ffmpeg_binary = %q", filepath.Join(e.baseDir, "missing", "ffmpeg"))},
		"logging": {`level = "error"`},
	}
	for section, lines := range extra {
		sections[section] = append(sections[section], lines)
	}
	var b strings.Builder
	for _, section := range slices.Sorted(maps.Keys(sections)) {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", section, strings.Join(sections[section], "\n"))
	}
	if err := os.MkdirAll(filepath.Dir(e.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(e.configPath, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), env, args...)
}

func runCLIContext(t *testing.T, ctx context.Context, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetContext(ctx)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func makeStubExecutable(t *testing.T, dir, name, script string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create stub bin dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func buildArchive(t *testing.T, path string, bodies ...string) *recording.Archive {
	t.Helper()
	archive, err := recording.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	at := time.UnixMilli(1_700_000_000_000)
	for i, body := range bodies {
		stamp := at.Add(time.Duration(i) * time.Second)
		if _, err := archive.Append(recording.SnapshotName(stamp), []byte(body), stamp); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}
	return archive
}

// writeEmptyArchive writes a valid zip with no entries.
func writeEmptyArchive(t *testing.T, path string) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer file.Close()
	if err := zip.NewWriter(file).Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.Set(x, y, c)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
