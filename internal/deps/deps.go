package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"scadrec/internal/services"
)

// Requirement defines an external binary scadrec relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Missing is the marker Require reports when the binary is absent.
	// Defaults to services.ErrConfiguration.
	Missing error
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// OpenSCAD describes the renderer used by gen_imgs.
func OpenSCAD(command string) Requirement {
	return Requirement{
		Name:        "OpenSCAD",
		Command:     command,
		Description: "Required by gen_imgs to render snapshots",
		Missing:     services.ErrExternalTool,
	}
}

// FFmpeg describes the optional external GIF encoder.
func FFmpeg(command string, required bool) Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     command,
		Description: "Used by gen_gif when gif.encoder is \"ffmpeg\"",
		Optional:    !required,
	}
}

// Check evaluates a single requirement.
func Check(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Path = resolved
	status.Available = true
	return status
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}

// Require fails with req.Missing when req is unavailable. Commands call it
// before creating any output so a missing tool leaves no partial results
// behind.
func Require(req Requirement) error {
	status := Check(req)
	if status.Available {
		return nil
	}
	marker := req.Missing
	if marker == nil {
		marker = services.ErrConfiguration
	}
	return services.Wrap(marker, "deps", strings.ToLower(req.Name), status.Detail, nil)
}
