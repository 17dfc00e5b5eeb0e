package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"scadrec/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Targets names the paths a workflow is about to touch. Empty fields are
// skipped.
type Targets struct {
	ArchivePath string
	ImageDir    string
	GIFPath     string
}

// RunAll executes directory checks for the given targets plus the log
// directory when file logging is enabled.
func RunAll(_ context.Context, cfg *config.Config, targets Targets) []Result {
	var results []Result

	if path := strings.TrimSpace(targets.ArchivePath); path != "" {
		results = append(results, CheckDirectoryAccess("Recording directory", filepath.Dir(path)))
	}
	if dir := strings.TrimSpace(targets.ImageDir); dir != "" {
		results = append(results, CheckDirectoryAccess("Image directory", dir))
	}
	if path := strings.TrimSpace(targets.GIFPath); path != "" {
		results = append(results, CheckDirectoryAccess("GIF directory", filepath.Dir(path)))
	}
	if cfg != nil && cfg.Logging.File {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	return results
}
