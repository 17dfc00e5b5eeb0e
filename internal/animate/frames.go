package animate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"scadrec/internal/services"
)

var frameExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// IsFrame reports whether name looks like a frame image.
func IsFrame(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := frameExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ListFrames returns the frame images in dir sorted by filename. Paths listed
// in exclude are ignored. A directory without frames yields ErrNotFound.
func ListFrames(dir string, exclude ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "animate", "list frames", fmt.Sprintf("image directory %q does not exist", dir), err)
		}
		return nil, fmt.Errorf("read image directory: %w", err)
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, path := range exclude {
		if abs, err := filepath.Abs(path); err == nil {
			skip[abs] = struct{}{}
		}
	}

	frames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsFrame(entry.Name()) {
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("resolve frame path: %w", err)
		}
		if _, excluded := skip[path]; excluded {
			continue
		}
		frames = append(frames, path)
	}
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "animate", "list frames", fmt.Sprintf("no images in %q", dir), nil)
	}
	slices.Sort(frames)
	return frames, nil
}
