package main

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"scadrec/internal/recording"
	"scadrec/internal/services"
)

func TestRecordStoresSavesUntilCancelled(t *testing.T) {
	env := setupCLITestEnv(t)
	model := filepath.Join(env.baseDir, "model.scad")
	if err := os.WriteFile(model, []byte("cube(1);"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	archivePath := filepath.Join(env.baseDir, "model.zip")
	archive, err := recording.Open(archivePath)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	countEntries := func() int {
		entries, err := archive.Entries()
		if err != nil {
			return -1
		}
		return len(entries)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type outcome struct {
		stdout string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		out, _, err := runCLIContext(t, ctx, env, "record", "--in", model, "-r", archivePath, "--poll-interval", "20ms")
		done <- outcome{stdout: out, err: err}
	}()

	waitFor(t, 2*time.Second, func() bool { return countEntries() == 1 })

	later := time.Now().Add(time.Minute)
	if err := os.WriteFile(model, []byte("cube(2);"), 0o644); err != nil {
		t.Fatalf("rewrite model: %v", err)
	}
	if err := os.Chtimes(model, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return countEntries() == 2 })

	cancel()
	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("record returned error: %v", res.err)
		}
		requireContains(t, res.stdout, "Stored 2 snapshots")
	case <-time.After(2 * time.Second):
		t.Fatal("record did not stop after cancel")
	}
}

func TestRecordMissingSourceFails(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env, "record", "--in", filepath.Join(env.baseDir, "absent.scad"), "-r", filepath.Join(env.baseDir, "rec.zip"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if code := services.ExitCode(err); code != services.ExitNotFound {
		t.Fatalf("unexpected exit code %d", code)
	}
}

func TestLsFormats(t *testing.T) {
	env := setupCLITestEnv(t)
	archivePath := filepath.Join(env.baseDir, "rec.zip")
	buildArchive(t, archivePath, "cube(1);", "cube(2);")

	out, _, err := runCLI(t, env, "ls", "-r", archivePath)
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	requireContains(t, out, "0001700000000000.scad")
	requireContains(t, out, "0001700000001000.scad")
	requireContains(t, out, "2 snapshots")

	out, _, err = runCLI(t, env, "ls", "-r", archivePath, "--format", "json")
	if err != nil {
		t.Fatalf("ls --format json: %v", err)
	}
	var decoded lsOutput
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if decoded.Count != 2 || decoded.Entries[1].Index != 1 || decoded.Bytes != 16 {
		t.Fatalf("unexpected json output %+v", decoded)
	}

	out, _, err = runCLI(t, env, "ls", "-r", archivePath, "--format", "yaml")
	if err != nil {
		t.Fatalf("ls --format yaml: %v", err)
	}
	var fromYAML lsOutput
	if err := yaml.Unmarshal([]byte(out), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, out)
	}
	if fromYAML.Count != 2 || fromYAML.Entries[0].Name != "0001700000000000.scad" {
		t.Fatalf("unexpected yaml output %+v", fromYAML)
	}

	if _, _, err := runCLI(t, env, "ls", "-r", archivePath, "--format", "xml"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown format, got %v", err)
	}
}

func TestLsMissingArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env, "ls", "-r", filepath.Join(env.baseDir, "none.zip"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	requireContains(t, err.Error(), "no recording at")
}

func TestLsEmptyArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	archivePath := filepath.Join(env.baseDir, "empty.zip")
	writeEmptyArchive(t, archivePath)
	out, _, err := runCLI(t, env, "ls", "-r", archivePath)
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	requireContains(t, out, "is empty")
}

func TestGenImgsRendersAndIsRepeatable(t *testing.T) {
	env := setupCLITestEnv(t)
	archivePath := filepath.Join(env.baseDir, "rec.zip")
	buildArchive(t, archivePath, "cube(1);", "cube(2);", "cube(3);")
	imgDir := filepath.Join(env.baseDir, "imgs")
	t.Chdir(env.baseDir)

	out, _, err := runCLI(t, env, "gen_imgs", "-r", archivePath, "--imgs", imgDir)
	if err != nil {
		t.Fatalf("gen_imgs: %v", err)
	}
	requireContains(t, out, "Rendered 3 of 3 snapshots")
	first := listNames(t, imgDir)
	want := []string{"0001700000000000.png", "0001700000001000.png", "0001700000002000.png"}
	if !slices.Equal(first, want) {
		t.Fatalf("unexpected images %q", first)
	}
	data, err := os.ReadFile(filepath.Join(imgDir, want[2]))
	if err != nil || string(data) != "cube(3);" {
		t.Fatalf("unexpected image content %q err=%v", data, err)
	}

	out, _, err = runCLI(t, env, "gen-imgs", "-r", archivePath, "--imgs", imgDir, "--force")
	if err != nil {
		t.Fatalf("gen-imgs --force: %v", err)
	}
	requireContains(t, out, "Rendered 3 of 3 snapshots")
	if second := listNames(t, imgDir); !slices.Equal(first, second) {
		t.Fatalf("rerun changed names: %q vs %q", first, second)
	}

	for _, name := range listNames(t, env.baseDir) {
		if filepath.Ext(name) == ".scad" {
			t.Fatalf("scratch model %s left in working directory", name)
		}
	}
}

func TestGenImgsMissingArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	imgDir := filepath.Join(env.baseDir, "imgs")
	out, _, err := runCLI(t, env, "gen_imgs", "-r", filepath.Join(env.baseDir, "typo.zip"), "--imgs", imgDir)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v (output %q)", err, out)
	}
	if code := services.ExitCode(err); code != services.ExitNotFound {
		t.Fatalf("unexpected exit code %d", code)
	}
	if _, err := os.Stat(imgDir); !os.IsNotExist(err) {
		t.Fatalf("image dir should not be created: %v", err)
	}
}

func TestGenImgsEmptyArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	imgDir := filepath.Join(env.baseDir, "imgs")
	archivePath := filepath.Join(env.baseDir, "empty.zip")
	writeEmptyArchive(t, archivePath)
	out, _, err := runCLI(t, env, "gen_imgs", "-r", archivePath, "--imgs", imgDir)
	if err != nil {
		t.Fatalf("gen_imgs: %v", err)
	}
	requireContains(t, out, "nothing to do")
	if _, err := os.Stat(imgDir); !os.IsNotExist(err) {
		t.Fatalf("image dir should not be created: %v", err)
	}
}

func TestGenImgsMissingRenderer(t *testing.T) {
	env := setupCLITestEnv(t)
	archivePath := filepath.Join(env.baseDir, "rec.zip")
	buildArchive(t, archivePath, "cube(1);")
	imgDir := filepath.Join(env.baseDir, "imgs")

	_, _, err := runCLI(t, env, "gen_imgs", "-r", archivePath, "--imgs", imgDir, "--openscad-bin", filepath.Join(env.baseDir, "nope"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if code := services.ExitCode(err); code != services.ExitExternalTool {
		t.Fatalf("unexpected exit code %d", code)
	}
	if _, err := os.Stat(imgDir); !os.IsNotExist(err) {
		t.Fatalf("image dir should not be created: %v", err)
	}
}

func TestGenImgsRendererFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	failing := makeStubExecutable(t, env.binDir, "openscad-broken", "#!/bin/sh\necho 'ERROR: Parser error' >&2\nexit 1\n")
	archivePath := filepath.Join(env.baseDir, "rec.zip")
	buildArchive(t, archivePath, "cube(", "cube(2);")
	t.Chdir(env.baseDir)

	_, _, err := runCLI(t, env, "gen_imgs", "-r", archivePath, "--imgs", filepath.Join(env.baseDir, "imgs"), "--openscad-bin", failing)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	requireContains(t, err.Error(), "Parser error")
	if code := services.ExitCode(err); code != services.ExitExternalTool {
		t.Fatalf("unexpected exit code %d", code)
	}
}

func TestGenGIFBuiltin(t *testing.T) {
	env := setupCLITestEnv(t)
	imgDir := filepath.Join(env.baseDir, "imgs")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(imgDir, "0001.png"), color.RGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(imgDir, "0002.png"), color.RGBA{B: 255, A: 255})
	output := filepath.Join(env.baseDir, "out", "model.gif")

	out, _, err := runCLI(t, env, "gen_gif", "--imgs", imgDir, "--gif", output)
	if err != nil {
		t.Fatalf("gen_gif: %v", err)
	}
	requireContains(t, out, "2 frames")
	requireContains(t, out, "builtin encoder")
	if info, err := os.Stat(output); err != nil || info.Size() == 0 {
		t.Fatalf("gif not written: %v", err)
	}
}

func TestGenGIFWithoutFFmpegLeavesImagesUntouched(t *testing.T) {
	env := setupCLITestEnv(t)
	imgDir := filepath.Join(env.baseDir, "imgs")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(imgDir, "0001.png"), color.Black)
	writePNG(t, filepath.Join(imgDir, "0002.png"), color.White)
	before := listNames(t, imgDir)
	output := filepath.Join(env.baseDir, "model.gif")

	_, _, err := runCLI(t, env, "gen_gif", "--imgs", imgDir, "--gif", output, "--encoder", "ffmpeg")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if code := services.ExitCode(err); code != services.ExitConfiguration {
		t.Fatalf("unexpected exit code %d", code)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("gif should not exist: %v", err)
	}
	if after := listNames(t, imgDir); !slices.Equal(before, after) {
		t.Fatalf("image directory changed: %q -> %q", before, after)
	}
}

func TestGenGIFNoFrames(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env, "gen_gif", "--imgs", t.TempDir(), "--gif", filepath.Join(env.baseDir, "x.gif"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestConfigInitValidateShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists without --overwrite")
	}

	out, _, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "openscad_binary")
	requireContains(t, out, filepath.Join(env.binDir, "openscad"))
}

func TestInvalidConfigIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeConfig(t, map[string]string{"record": "poll_interval_seconds = -1"})
	_, _, err := runCLI(t, env, "ls", "-r", filepath.Join(env.baseDir, "rec.zip"))
	if err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestDoctorReportsDependencies(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "doctor", "--json", "--imgs", env.baseDir)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	var report doctorReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode doctor json: %v\n%s", err, out)
	}
	if !report.Healthy {
		t.Fatalf("expected healthy report: %+v", report)
	}
	var sawVersion bool
	for _, check := range report.Checks {
		if check.Name == "OpenSCAD version" {
			sawVersion = true
			if check.Detail != "OpenSCAD version 2021.01" {
				t.Fatalf("unexpected version detail %q", check.Detail)
			}
		}
	}
	if !sawVersion {
		t.Fatalf("renderer version check missing: %+v", report.Checks)
	}

	env.writeConfig(t, map[string]string{"gif": `encoder = "ffmpeg"`})
	_, _, err = runCLI(t, env, "doctor")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected doctor to fail when ffmpeg is required, got %v", err)
	}
}
