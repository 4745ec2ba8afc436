package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/folder"
)

// DateReader reads the embedded capture date of an image. Any failure means
// "no metadata".
type DateReader interface {
	ReadDate(path string) (time.Time, error)
}

// Hasher computes a perceptual hash of a decoded image.
type Hasher interface {
	Hash(path string) (*goimagehash.ImageHash, error)
}

// File is a StandardFile or an ImageFile depending on Kind. Image facts are
// computed at most once and only on demand.
type File struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Norm    string
	Kind    Kind
	Folder  *folder.Folder // non-owning; may be nil

	info os.FileInfo

	embedded func() (time.Time, bool)
	hash     func() *goimagehash.ImageHash
}

func (f *File) String() string { return f.Path }

// IsImage reports whether the file is an ImageFile.
func (f *File) IsImage() bool { return f.Kind == KindImage }

// EmbeddedDate returns the capture date stored in the image itself.
func (f *File) EmbeddedDate() (time.Time, bool) {
	if f.embedded == nil {
		return time.Time{}, false
	}
	return f.embedded()
}

// Metadate reports whether the image's date came from embedded metadata.
func (f *File) Metadate() bool {
	_, ok := f.EmbeddedDate()
	return ok
}

// Date returns the best date known for an image: embedded metadata first,
// then the folder's inferred date, then a date in the filename. Standard
// files only ever inherit the folder date.
func (f *File) Date() (time.Time, bool) {
	if t, ok := f.EmbeddedDate(); ok {
		return t, true
	}
	if f.Folder != nil {
		if t, ok := f.Folder.Date(); ok {
			return t, true
		}
	}
	if f.IsImage() {
		return DateFromName(f.Name)
	}
	return time.Time{}, false
}

// Hash returns the perceptual hash, or nil when it is absent (not an image,
// no hasher, or decode failure).
func (f *File) Hash() *goimagehash.ImageHash {
	if f.hash == nil {
		return nil
	}
	return f.hash()
}

// SameFile reports whether both entries refer to the same inode.
func (f *File) SameFile(o *File) bool {
	if f.info != nil && o.info != nil && os.SameFile(f.info, o.info) {
		return true
	}
	return filepath.Clean(f.Path) == filepath.Clean(o.Path)
}

// Inspector builds File values. Dates and Hasher are optional.
type Inspector struct {
	Fs     afero.Fs
	Dates  DateReader
	Hasher Hasher
}

// Stat builds the File at path, attached to dir.
func (in *Inspector) Stat(path string, dir *folder.Folder) (*File, error) {
	info, err := in.Fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("media: %q is a directory", path)
	}
	return in.New(path, info, dir), nil
}

// New builds a File from an already obtained FileInfo.
func (in *Inspector) New(path string, info os.FileInfo, dir *folder.Folder) *File {
	name := filepath.Base(path)
	f := &File{
		Path:    filepath.Clean(path),
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Norm:    Normalize(name),
		Kind:    Classify(path, false),
		Folder:  dir,
		info:    info,
	}
	if f.Kind != KindImage {
		return f
	}
	if in.Dates != nil {
		dates := in.Dates
		f.embedded = sync.OnceValues(func() (time.Time, bool) {
			t, err := dates.ReadDate(f.Path)
			if err != nil || t.IsZero() {
				return time.Time{}, false
			}
			return t, true
		})
	}
	if in.Hasher != nil {
		hasher := in.Hasher
		f.hash = sync.OnceValue(func() *goimagehash.ImageHash {
			h, err := hasher.Hash(f.Path)
			if err != nil {
				return nil
			}
			return h
		})
	}
	return f
}
