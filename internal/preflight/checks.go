package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"scadrec/internal/config"
	"scadrec/internal/deps"
	"scadrec/internal/services/openscad"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config. FFmpeg
// is only required when it is the configured GIF encoder.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		deps.OpenSCAD(cfg.Render.OpenSCADBinary),
		deps.FFmpeg(cfg.GIF.FFmpegBinary, cfg.GIF.Encoder == config.EncoderFFmpeg),
	})
}

// CheckRenderer asks the renderer for its version. It uses a 10-second timeout
// and a single attempt.
func CheckRenderer(ctx context.Context, client *openscad.Client) Result {
	const name = "OpenSCAD version"

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	version, err := client.Version(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if version == "" {
		version = "unknown version"
	}
	return Result{Name: name, Passed: true, Detail: version}
}
