package recording

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// SnapshotExt is the extension of every archive entry.
const SnapshotExt = ".scad"

const stampDigits = 16

// SnapshotName returns the entry name for a snapshot modified at t.
func SnapshotName(t time.Time) string {
	return formatStamp(t.UnixMilli())
}

// ParseStamp extracts the timestamp encoded in an entry name.
func ParseStamp(name string) (time.Time, bool) {
	ms, ok := stampMillis(name)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// NextName returns the name for a snapshot modified at t that sorts after
// last. When the clock went backwards or two saves share a millisecond, the
// name is bumped to one millisecond after last.
func NextName(last string, t time.Time) string {
	ms := t.UnixMilli()
	if prev, ok := stampMillis(last); ok && ms <= prev {
		ms = prev + 1
	}
	return formatStamp(ms)
}

// Stem returns the entry name without directory or extension.
func Stem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

func formatStamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%0*d%s", stampDigits, ms, SnapshotExt)
}

func stampMillis(name string) (int64, bool) {
	stem := Stem(name)
	if stem == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(stem, 10, 64)
	if err != nil || ms < 0 {
		return 0, false
	}
	return ms, true
}
