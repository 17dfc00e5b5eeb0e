package recording

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scadrec/internal/logging"
	"scadrec/internal/services"
)

// DefaultInterval is the polling period used when Options.Interval is zero.
const DefaultInterval = 5 * time.Second

// Snapshot describes a stored save event.
type Snapshot struct {
	Index   int
	Name    string
	Size    int
	ModTime time.Time
}

// Options configures a Recorder.
type Options struct {
	Interval time.Duration
	// SkipIdentical drops saves whose content hashes equal the last snapshot.
	SkipIdentical bool
	Logger        *slog.Logger
	// OnSnapshot is invoked after each stored snapshot.
	OnSnapshot func(Snapshot)
}

// Recorder polls a source file and appends a snapshot on every save.
type Recorder struct {
	source   string
	archive  *Archive
	interval time.Duration
	skipSame bool
	logger   *slog.Logger
	notify   func(Snapshot)

	primed   bool
	entries  int
	lastName string
	lastHash [sha256.Size]byte
	hasHash  bool
	count    int

	seenMod   time.Time
	seenSize  int64
	seenExact bool
	seen      bool
}

// NewRecorder builds a recorder for source writing into archive.
func NewRecorder(source string, archive *Archive, opts Options) (*Recorder, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "recorder", "init", "source file required", nil)
	}
	if archive == nil {
		return nil, services.Wrap(services.ErrValidation, "recorder", "init", "archive required", nil)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	if abs == archive.Path() {
		return nil, services.Wrap(services.ErrValidation, "recorder", "init", "source and archive are the same file", nil)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{
		source:   abs,
		archive:  archive,
		interval: interval,
		skipSame: opts.SkipIdentical,
		logger:   logger,
		notify:   opts.OnSnapshot,
	}, nil
}

// Source returns the absolute path of the watched file.
func (r *Recorder) Source() string {
	return r.source
}

// Stored reports how many snapshots this recorder appended.
func (r *Recorder) Stored() int {
	return r.count
}

// Prime loads the archive's last snapshot so a restarted recorder neither
// duplicates nor reorders entries. The source counts as already seen when it
// still has the mtime and size the last snapshot was taken at.
func (r *Recorder) Prime() error {
	entries, err := r.archive.Entries()
	if err != nil {
		return err
	}
	r.entries = len(entries)
	if len(entries) > 0 {
		last, data, ok, err := r.archive.ReadLast()
		if err != nil {
			return err
		}
		if ok {
			r.lastName = last.Name
			r.lastHash = sha256.Sum256(data)
			r.hasHash = true
			r.seen = true
			r.seenMod = last.SourceModTime
			r.seenSize = int64(last.Size)
			r.seenExact = last.exactMod
		}
	}
	r.primed = true
	return nil
}

func (r *Recorder) unchanged(info fs.FileInfo) bool {
	if !r.seen || info.Size() != r.seenSize {
		return false
	}
	if !r.seenExact {
		return info.ModTime().Truncate(time.Second).Equal(r.seenMod.Truncate(time.Second))
	}
	return info.ModTime().Equal(r.seenMod)
}

// Check polls the source once. It returns the stored snapshot, or nil when
// nothing changed.
func (r *Recorder) Check(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.primed {
		if err := r.Prime(); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(r.source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "recorder", "stat", r.source, err)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, services.Wrap(services.ErrValidation, "recorder", "stat", r.source+" is not a regular file", nil)
	}
	if r.unchanged(info) {
		return nil, nil
	}

	data, err := os.ReadFile(r.source)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	// An editor still writing moves the mtime or size; retry next tick.
	after, err := os.Stat(r.source)
	if err != nil || !after.ModTime().Equal(info.ModTime()) || after.Size() != int64(len(data)) {
		r.logger.Debug("source changed while reading; retrying next poll")
		return nil, nil
	}
	r.seen = true
	r.seenMod = info.ModTime()
	r.seenSize = info.Size()
	r.seenExact = true

	hash := sha256.Sum256(data)
	if r.skipSame && r.hasHash && bytes.Equal(hash[:], r.lastHash[:]) {
		r.logger.Debug("content unchanged; snapshot skipped")
		return nil, nil
	}

	name := NextName(r.lastName, info.ModTime())
	added, err := r.archive.Append(name, data, info.ModTime())
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, nil
	}

	r.entries++
	r.lastName = name
	r.lastHash = hash
	r.hasHash = true
	r.count++

	snapshot := &Snapshot{
		Index:   r.entries - 1,
		Name:    name,
		Size:    len(data),
		ModTime: info.ModTime(),
	}
	r.logger.Info("snapshot stored",
		logging.String(logging.FieldEntry, name),
		logging.Int("size", snapshot.Size),
		logging.Int("index", snapshot.Index),
	)
	if r.notify != nil {
		r.notify(*snapshot)
	}
	return snapshot, nil
}

// Run checks immediately and then on every interval until ctx is done. A
// missing source on the first check is fatal; later it is logged and polling
// continues so editors that save by rename are tolerated.
func (r *Recorder) Run(ctx context.Context) error {
	if _, err := r.Check(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("recording stopped", logging.Int("stored", r.count))
			return nil
		case <-ticker.C:
			if _, err := r.Check(ctx); err != nil {
				switch {
				case ctx.Err() != nil:
					r.logger.Info("recording stopped", logging.Int("stored", r.count))
					return nil
				case errors.Is(err, services.ErrNotFound):
					logging.WarnWithContext(r.logger, "source file missing; waiting for it to reappear", "source_missing",
						logging.String("source", r.source),
						logging.String(logging.FieldErrorHint, "check that the editor saves to the same path"),
					)
				default:
					return err
				}
			}
		}
	}
}
