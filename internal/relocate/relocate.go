// Package relocate moves one file at a time into the organized tree.
//
// Bytes are always copied, never renamed across trees, so an interruption
// leaves either the old or the new state. The only in-place renames are the
// rollover shifts between siblings inside the output tree.
package relocate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/folder"
	"github.com/sagshome/ImageClean-sub000/internal/infra/fsx"
	"github.com/sagshome/ImageClean-sub000/internal/media"
	"github.com/sagshome/ImageClean-sub000/internal/registry"
)

// Side areas under the output root.
const (
	NoDateDir     = "no_date"
	DuplicatesDir = "duplicates"
	MigratedDir   = "migrated"
	SmallDir      = "small"
	StateDir      = ".imageclean"
)

// DefaultMaxVersions is the number of numbered historical siblings kept.
const DefaultMaxVersions = 20

var (
	ErrSourceMissing = errors.New("relocate: source no longer exists")
	ErrSameLocation  = errors.New("relocate: destination is the source")
	ErrOccupied      = errors.New("relocate: destination occupied and rollover disabled")
)

// DateWriter writes an inferred date into a file's embedded metadata.
type DateWriter interface {
	WriteDate(path string, d time.Time) error
}

// Options is the per-call policy.
type Options struct {
	Keep      bool // leave the source in place
	Rollover  bool // shift an occupying file to _0 instead of aborting
	FixDate   bool // write the inferred date into images lacking one
	MatchDate bool // set filesystem times to the embedded date
}

// Relocator executes single-file moves into OutputRoot.
type Relocator struct {
	Fs         afero.Fs
	Inspector  *media.Inspector
	Dates      DateWriter   // optional
	Tree       *folder.Tree // output tree; new entries attach to it when set
	Log        *slog.Logger
	OutputRoot string

	MaxVersions int

	// OnMove, when set, is told about every rollover rename. to is empty
	// when the oldest version is dropped.
	OnMove func(from, to string)
}

func (r *Relocator) maxVersions() int {
	if r.MaxVersions > 0 {
		return r.MaxVersions
	}
	return DefaultMaxVersions
}

func (r *Relocator) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// Destination computes where f belongs in the organized tree:
//
//	<YYYY>[/<MM>]/<description chain>/<name>   folder carries a date
//	<YYYY>/<MM>/<description chain>/<name>      image with its own date
//	no_date/<description chain>/<name>          otherwise
//
// The month level is added only for month-specific folders.
func (r *Relocator) Destination(f *media.File) string {
	parts := []string{r.OutputRoot}
	switch d, spec, ok := folderDate(f); {
	case ok:
		parts = append(parts, d.Format("2006"))
		if spec == folder.Month {
			parts = append(parts, d.Format("01"))
		}
	default:
		if d, ok := ownDate(f); ok {
			parts = append(parts, d.Format("2006"), d.Format("01"))
		} else {
			parts = append(parts, NoDateDir)
		}
	}
	if f.Folder != nil {
		parts = append(parts, f.Folder.Chain()...)
	}
	parts = append(parts, f.Name)
	return filepath.Join(parts...)
}

// Area returns OutputRoot/area/rel.
func (r *Relocator) Area(area, rel string) string {
	return filepath.Join(r.OutputRoot, area, rel)
}

func folderDate(f *media.File) (time.Time, folder.Specificity, bool) {
	if f.Folder == nil {
		return time.Time{}, folder.None, false
	}
	d, ok := f.Folder.Date()
	return d, f.Folder.Specificity(), ok
}

// ownDate is the image's embedded date, falling back to a date in its name.
func ownDate(f *media.File) (time.Time, bool) {
	if !f.IsImage() {
		return time.Time{}, false
	}
	if d, ok := f.EmbeddedDate(); ok {
		return d, true
	}
	return media.DateFromName(f.Name)
}

// Relocate copies f to dst under opts and returns the entry now living at
// dst. When cache is non-nil the stale entry for f is detached and the new
// one inserted. Failures leave the source untouched.
func (r *Relocator) Relocate(f *media.File, dst string, opts Options, cache *registry.Cache) (*media.File, error) {
	dst = filepath.Clean(dst)
	if _, err := r.Fs.Stat(f.Path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, f.Path)
		}
		return nil, err
	}
	if dst == filepath.Clean(f.Path) {
		return nil, fmt.Errorf("%w: %s", ErrSameLocation, dst)
	}
	if err := r.Fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("relocate: create %s: %w", filepath.Dir(dst), err)
	}

	if fi, err := r.Fs.Stat(dst); err == nil {
		if fi.IsDir() {
			return nil, &fsx.PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		if !opts.Rollover {
			return nil, fmt.Errorf("%w: %s", ErrOccupied, dst)
		}
		if err := r.Rollover(dst, cache); err != nil {
			return nil, err
		}
	}

	if err := fsx.CopyFile(r.Fs, f.Path, dst); err != nil {
		return nil, fmt.Errorf("relocate: copy %s: %w", f.Path, err)
	}
	r.syncDate(f, dst, opts)

	moved, err := r.Inspector.Stat(dst, r.folderFor(dst))
	if err != nil {
		return nil, fmt.Errorf("relocate: stat %s: %w", dst, err)
	}
	if cache != nil {
		cache.Remove(f)
		cache.Insert(moved)
	}
	r.log().Debug("relocated", "src", f.Path, "dst", dst, "keep", opts.Keep)

	if !opts.Keep {
		if err := r.Fs.Remove(f.Path); err != nil {
			r.log().Warn("remove source failed", "src", f.Path, "error", err)
		}
	}
	return moved, nil
}

// syncDate applies the fix-date and match-date policies to the fresh copy.
// Only images carry embedded metadata, so standard files are left alone.
// Failures are logged; the copy itself stands.
func (r *Relocator) syncDate(f *media.File, dst string, opts Options) {
	switch {
	case opts.FixDate && f.IsImage() && !f.Metadate():
		d, ok := f.Date()
		if !ok {
			return
		}
		if r.Dates != nil {
			if err := r.Dates.WriteDate(dst, d); err != nil {
				r.log().Warn("write date failed", "dst", dst, "error", err)
			}
		}
		if err := fsx.SetTimes(r.Fs, dst, d); err != nil {
			r.log().Warn("set times failed", "dst", dst, "error", err)
		}
	case opts.MatchDate && f.Metadate():
		d, _ := f.EmbeddedDate()
		if err := fsx.SetTimes(r.Fs, dst, d); err != nil {
			r.log().Warn("set times failed", "dst", dst, "error", err)
		}
	}
}

func (r *Relocator) folderFor(path string) *folder.Folder {
	if r.Tree == nil {
		return nil
	}
	return r.Tree.Folder(filepath.Dir(path))
}
