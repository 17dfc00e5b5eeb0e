package recording

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"scadrec/internal/services"
)

// ErrArchiveLocked reports that another recorder holds the archive.
var ErrArchiveLocked = errors.New("recording archive is locked by another process")

// Entry describes one snapshot in the archive.
type Entry struct {
	Index          int       `json:"index" yaml:"index"`
	Name           string    `json:"name" yaml:"name"`
	RecordedAt     time.Time `json:"recorded_at" yaml:"recorded_at"`
	Size           uint64    `json:"size" yaml:"size"`
	CompressedSize uint64    `json:"compressed_size" yaml:"compressed_size"`

	// SourceModTime is the modification time of the model when it was saved.
	SourceModTime time.Time `json:"source_mod_time" yaml:"source_mod_time"`

	// exactMod is false for entries without a stored mtime, whose
	// SourceModTime comes from the zip header and is only second precise.
	exactMod bool
}

// Archive is a zip file of snapshots.
type Archive struct {
	path string
}

// Open returns an archive handle for path. The file is not touched until it
// is read or appended to.
func Open(path string) (*Archive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "recording", "open", "archive path required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	return &Archive{path: abs}, nil
}

// Path returns the absolute archive path.
func (a *Archive) Path() string {
	return a.path
}

// Exists reports whether the archive file is present.
func (a *Archive) Exists() bool {
	info, err := os.Stat(a.path)
	return err == nil && !info.IsDir()
}

// RequireExisting fails with ErrNotFound when the archive file is absent.
// Readers use it so a mistyped path is not mistaken for an empty recording.
func (a *Archive) RequireExisting() error {
	if a.Exists() {
		return nil
	}
	return services.Wrap(services.ErrNotFound, "recording", "open", fmt.Sprintf("no recording at %s", a.path), nil)
}

// Entries lists snapshots in archive order. A missing archive has no entries.
func (a *Archive) Entries() ([]Entry, error) {
	r, err := a.openReader()
	if err != nil || r == nil {
		return nil, err
	}
	defer r.Close()

	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		if !isSnapshot(f) {
			continue
		}
		entries = append(entries, newEntry(len(entries), f))
	}
	return entries, nil
}

// Each streams every snapshot in archive order.
func (a *Archive) Each(fn func(Entry, io.Reader) error) error {
	r, err := a.openReader()
	if err != nil || r == nil {
		return err
	}
	defer r.Close()

	index := 0
	for _, f := range r.File {
		if !isSnapshot(f) {
			continue
		}
		if err := a.visit(index, f, fn); err != nil {
			return err
		}
		index++
	}
	return nil
}

func (a *Archive) visit(index int, f *zip.File, fn func(Entry, io.Reader) error) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	return fn(newEntry(index, f), rc)
}

// ReadLast returns the newest entry and its content. ok is false for an empty
// archive.
func (a *Archive) ReadLast() (Entry, []byte, bool, error) {
	r, err := a.openReader()
	if err != nil || r == nil {
		return Entry{}, nil, false, err
	}
	defer r.Close()

	var last *zip.File
	count := 0
	for _, f := range r.File {
		if isSnapshot(f) {
			last = f
			count++
		}
	}
	if last == nil {
		return Entry{}, nil, false, nil
	}
	rc, err := last.Open()
	if err != nil {
		return Entry{}, nil, false, fmt.Errorf("open entry %s: %w", last.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Entry{}, nil, false, fmt.Errorf("read entry %s: %w", last.Name, err)
	}
	return newEntry(count-1, last), data, true, nil
}

// Append adds a snapshot named name at the end of the archive. It returns
// false without writing when an entry with that name already exists.
func (a *Archive) Append(name string, data []byte, modTime time.Time) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, services.Wrap(services.ErrValidation, "recording", "append", "entry name required", nil)
	}

	existing, err := a.openReader()
	if err != nil {
		return false, err
	}
	if existing != nil {
		defer existing.Close()
		for _, f := range existing.File {
			if f.Name == name {
				return false, nil
			}
		}
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(a.path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(a.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return false, fmt.Errorf("create archive temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	if existing != nil {
		for _, f := range existing.File {
			if err := zw.Copy(f); err != nil {
				return false, fmt.Errorf("copy entry %s: %w", f.Name, err)
			}
		}
		if existing.Comment != "" {
			if err := zw.SetComment(existing.Comment); err != nil {
				return false, fmt.Errorf("copy archive comment: %w", err)
			}
		}
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modTime,
		Comment:  modTime.UTC().Format(time.RFC3339Nano),
	}
	header.SetMode(0o644)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return false, fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return false, fmt.Errorf("write entry %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return false, fmt.Errorf("finalize archive: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return false, fmt.Errorf("chmod archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return false, fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close archive: %w", err)
	}
	if existing != nil {
		_ = existing.Close()
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		return false, fmt.Errorf("replace archive: %w", err)
	}
	committed = true
	return true, nil
}

// Lock takes an exclusive advisory lock next to the archive. The returned
// function releases it.
func (a *Archive) Lock() (func() error, error) {
	lock := flock.New(a.path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire archive lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArchiveLocked, a.path)
	}
	return lock.Unlock, nil
}

// openReader returns nil without error when the archive does not exist.
func (a *Archive) openReader() (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(a.path)
	switch {
	case err == nil:
		return r, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "recording", "open", a.path, err)
	}
}

func isSnapshot(f *zip.File) bool {
	return !f.FileInfo().IsDir()
}

func newEntry(index int, f *zip.File) Entry {
	recorded, ok := ParseStamp(f.Name)
	if !ok {
		recorded = f.Modified
	}
	entry := Entry{
		Index:          index,
		Name:           f.Name,
		RecordedAt:     recorded,
		Size:           f.UncompressedSize64,
		CompressedSize: f.CompressedSize64,
		SourceModTime:  f.Modified,
	}
	if mod, err := time.Parse(time.RFC3339Nano, f.Comment); err == nil {
		entry.SourceModTime = mod
		entry.exactMod = true
	}
	return entry
}
