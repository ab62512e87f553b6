package tle

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrArchiveEmpty is returned by Latest when no catalog has been archived.
var ErrArchiveEmpty = errors.New("no archived catalogs")

const (
	archivePrefix = "catalog_"
	archiveSuffix = ".tle"
)

// Archive keeps the raw text of recently accepted catalogs on disk so a
// restarted server can resume from the last good catalog. Files are named
// by save time in nanoseconds and are written through a temporary file, so
// a partially written catalog is never listed.
type Archive struct {
	dir  string
	keep int
}

// NewArchive returns an Archive in dir that retains the newest keep files
// (five when keep is not positive).
func NewArchive(dir string, keep int) *Archive {
	return &Archive{dir: dir, keep: cmp.Or(max(keep, 0), 5)}
}

// Dir returns the archive directory.
func (a *Archive) Dir() string { return a.dir }

// Save archives data as saved at ts, then drops files beyond the retention
// count.
func (a *Archive) Save(data []byte, ts time.Time) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}
	tmp, err := os.CreateTemp(a.dir, archivePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	final := a.path(ts.UnixNano())
	if werr == nil {
		werr = os.Rename(tmp.Name(), final)
	}
	if werr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing archive file: %w", werr)
	}
	return a.prune()
}

// Latest returns the newest archived catalog and the time it was saved.
func (a *Archive) Latest() ([]byte, time.Time, error) {
	stamps, err := a.stamps()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(stamps) == 0 {
		return nil, time.Time{}, ErrArchiveEmpty
	}
	newest := stamps[len(stamps)-1]
	data, err := os.ReadFile(a.path(newest))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading archive file: %w", err)
	}
	return data, time.Unix(0, newest).UTC(), nil
}

func (a *Archive) path(stamp int64) string {
	return filepath.Join(a.dir, archivePrefix+strconv.FormatInt(stamp, 10)+archiveSuffix)
}

// stamps lists the save times of archived files, oldest first. A missing
// directory is an empty archive.
func (a *Archive) stamps() ([]int64, error) {
	entries, err := os.ReadDir(a.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing archive dir: %w", err)
	}

	var stamps []int64
	for _, e := range entries {
		if e.Type().IsRegular() {
			if stamp, ok := parseArchiveName(e.Name()); ok {
				stamps = append(stamps, stamp)
			}
		}
	}
	slices.Sort(stamps)
	return stamps, nil
}

func parseArchiveName(name string) (int64, bool) {
	s, ok := strings.CutPrefix(name, archivePrefix)
	if !ok {
		return 0, false
	}
	if s, ok = strings.CutSuffix(s, archiveSuffix); !ok {
		return 0, false
	}
	stamp, err := strconv.ParseInt(s, 10, 64)
	return stamp, err == nil
}

func (a *Archive) prune() error {
	stamps, err := a.stamps()
	if err != nil {
		return err
	}
	for _, stamp := range stamps[:max(len(stamps)-a.keep, 0)] {
		if err := os.Remove(a.path(stamp)); err != nil {
			return fmt.Errorf("pruning archive: %w", err)
		}
	}
	return nil
}
