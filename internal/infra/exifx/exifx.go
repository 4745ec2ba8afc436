// Package exifx is the metadata collaborator. Embedded dates are read with
// goexif first; exiftool covers containers goexif cannot parse (HEIC, most
// RAW formats) and is the only writer.
package exifx

import (
	"errors"
	"fmt"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/spf13/afero"
)

// ExifLayout is the date layout used by EXIF date fields.
const ExifLayout = "2006:01:02 15:04:05"

// DateTags are the embedded date fields read and written, most authoritative
// first.
var DateTags = []string{"DateTimeOriginal", "CreateDate", "ModifyDate"}

// CarriedTags are copied from a legacy image onto its converted replacement.
var CarriedTags = append([]string{"Make", "Model", "Orientation"}, DateTags...)

// ErrNoDate is returned when a file carries no usable embedded date.
var ErrNoDate = errors.New("exifx: no embedded date")

// Reader reads embedded capture dates. Tool is optional.
type Reader struct {
	Fs   afero.Fs
	Tool *Tool
}

// ReadDate returns the capture date embedded in the file at path. Any error
// means "no metadata"; callers treat the file as dateless.
func (r *Reader) ReadDate(path string) (time.Time, error) {
	t, err := r.readExif(path)
	if err == nil {
		return t, nil
	}
	if r.Tool == nil {
		return time.Time{}, err
	}
	return r.Tool.ReadDate(path)
}

func (r *Reader) readExif(path string) (time.Time, error) {
	f, err := r.Fs.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	t, err := x.DateTime()
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() || t.Year() < 1900 {
		return time.Time{}, ErrNoDate
	}
	return t, nil
}

// Tool wraps a running exiftool process. It operates on OS paths only.
type Tool struct {
	et *exiftool.Exiftool
}

// Open starts exiftool. It fails when the binary is not installed; callers
// treat that as a capability gap.
func Open() (*Tool, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("exifx: start exiftool: %w", err)
	}
	return &Tool{et: et}, nil
}

func (t *Tool) Close() error { return t.et.Close() }

// ReadTags returns the string value of each requested tag present in path.
func (t *Tool) ReadTags(path string, tags []string) (map[string]string, error) {
	fm := t.et.ExtractMetadata(path)[0]
	if fm.Err != nil {
		return nil, fm.Err
	}
	out := make(map[string]string, len(tags))
	for _, k := range tags {
		if v, err := fm.GetString(k); err == nil && v != "" {
			out[k] = v
		}
	}
	return out, nil
}

// WriteTags writes tags into path in place.
func (t *Tool) WriteTags(path string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	for k, v := range tags {
		fm.SetString(k, v)
	}
	batch := []exiftool.FileMetadata{fm}
	t.et.WriteMetadata(batch)
	return batch[0].Err
}

// ReadDate returns the first parseable date among DateTags.
func (t *Tool) ReadDate(path string) (time.Time, error) {
	tags, err := t.ReadTags(path, DateTags)
	if err != nil {
		return time.Time{}, err
	}
	for _, k := range DateTags {
		if v, ok := tags[k]; ok {
			if d, err := ParseDate(v); err == nil {
				return d, nil
			}
		}
	}
	return time.Time{}, ErrNoDate
}

// WriteDate stores d in every date tag of path.
func (t *Tool) WriteDate(path string, d time.Time) error {
	v := d.Format(ExifLayout)
	tags := make(map[string]string, len(DateTags))
	for _, k := range DateTags {
		tags[k] = v
	}
	return t.WriteTags(path, tags)
}

// ParseDate parses an EXIF date value, tolerating a trailing sub-second or
// zone suffix.
func ParseDate(v string) (time.Time, error) {
	if len(v) < len(ExifLayout) {
		return time.Time{}, fmt.Errorf("exifx: short date %q", v)
	}
	d, err := time.ParseInLocation(ExifLayout, v[:len(ExifLayout)], time.Local)
	if err != nil {
		return time.Time{}, err
	}
	if d.Year() < 1900 {
		return time.Time{}, ErrNoDate
	}
	return d, nil
}
