// Package media defines the identity, equality and ordering contract for files
// found while walking a tree.
package media

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// File Kinds
// =============================================================================

// Kind is the closed set of entries a walk can produce.
type Kind uint8

const (
	KindFolder Kind = iota
	KindStandard
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindImage:
		return "image"
	default:
		return "standard"
	}
}

// imageExts contains extensions that get perceptual and embedded-date handling.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".heic": true,
	".heif": true,
	".hif":  true, // Apple HEIF (alternate extension)
	".dng":  true, // Adobe Digital Negative
	".arw":  true, // Sony RAW
	".cr2":  true, // Canon RAW
	".nef":  true, // Nikon RAW
	".raf":  true, // Fujifilm RAW
	".tif":  true,
	".tiff": true,
}

// Classify maps a path to its variant. Directories are folders, known image
// extensions are images and everything else is a standard file.
func Classify(path string, isDir bool) Kind {
	if isDir {
		return KindFolder
	}
	if IsImageExt(filepath.Ext(path)) {
		return KindImage
	}
	return KindStandard
}

// IsImageExt reports whether ext (with the dot, any case) is an image extension.
func IsImageExt(ext string) bool {
	return imageExts[strings.ToLower(ext)]
}

// =============================================================================
// Filename Dates
// =============================================================================

// namePatterns extract dates from camera and export filenames.
// Patterns are tried in order; first match wins.
var namePatterns = []struct {
	regex  *regexp.Regexp
	layout string
}{
	// DJI drone: DJI_20250619224111_0001_D.MP4
	{regexp.MustCompile(`DJI_(\d{8})`), "20060102"},
	// Sony video: 20250616_C0416.MP4
	{regexp.MustCompile(`^(\d{8})_C\d+`), "20060102"},
	// Generic timestamp: IMG_20250619_123456.jpg
	{regexp.MustCompile(`(\d{8})_\d{6}`), "20060102"},
	// ISO date: 2025-06-19_photo.jpg
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},
}

// DateFromName attempts to extract a date from a filename.
func DateFromName(name string) (time.Time, bool) {
	for _, p := range namePatterns {
		m := p.regex.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}
		if t, err := time.Parse(p.layout, m[1]); err == nil && t.Year() >= 1900 {
			return t, true
		}
	}
	return time.Time{}, false
}
