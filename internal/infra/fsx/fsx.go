// Package fsx holds the filesystem primitives every writer in the module goes
// through. All functions operate on an afero.Fs so the same code runs against
// the OS and against in-memory trees in tests.
package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// PathTypeConflictError reports a path that exists with the wrong type
// (for example a directory where a file is expected).
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("path type conflict: %q (want %s, got %s)", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// Exists reports whether path exists. Errors other than not-exist count as
// existing so callers never write over something they could not inspect.
func Exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

// CopyFile copies src to dst through a temporary sibling of dst followed by a
// rename, so dst is either absent or complete. The source is never modified.
// dst is replaced if it exists; callers that must not overwrite check first.
// The destination keeps the source modification time.
func CopyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &PathTypeConflictError{Path: src, Want: "file", Got: "dir"}
	}
	if fi, err := fs.Stat(dst); err == nil && fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}

	dir := filepath.Dir(dst)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	done := false
	defer func() {
		if !done {
			_ = tmp.Close()
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	done = true
	if err := fs.Rename(tmpName, dst); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}
	mt := info.ModTime()
	return fs.Chtimes(dst, mt, mt)
}

// WriteFileAtomic writes data to dir/name via a temporary file and rename,
// replacing any existing file.
func WriteFileAtomic(fs afero.Fs, dir, name string, data []byte) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, name)
	if fi, err := fs.Stat(dst); err == nil && fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}

	tmp, err := afero.TempFile(fs, dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	done := false
	defer func() {
		if !done {
			_ = tmp.Close()
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	done = true
	if err := fs.Rename(tmpName, dst); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}
	return nil
}

// SetTimes sets both access and modification time of path to t.
func SetTimes(fs afero.Fs, path string, t time.Time) error {
	return fs.Chtimes(path, t, t)
}

// ProbeWritable creates and removes a scratch file in dir, creating dir when
// missing.
func ProbeWritable(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := afero.TempFile(fs, dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return fs.Remove(name)
}

// junkFiles are system droppings that never hold user data. They are the
// only files removed on the way to deleting an emptied directory.
var junkFiles = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

// RemoveEmptyDirs removes every directory under root that is empty once junk
// files are gone, deepest first. root itself, hidden directories and the skip
// subtrees are kept. It returns the removed paths.
func RemoveEmptyDirs(fs afero.Fs, root string, skip ...string) ([]string, error) {
	var dirs []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() || path == root {
			return nil
		}
		if slices.Contains(skip, path) || strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var removed []string
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := afero.ReadDir(fs, dirs[i])
		if err != nil {
			continue
		}
		if slices.ContainsFunc(entries, func(e os.FileInfo) bool { return e.IsDir() || !junkFiles[e.Name()] }) {
			continue
		}
		for _, e := range entries {
			_ = fs.Remove(filepath.Join(dirs[i], e.Name()))
		}
		if err := fs.Remove(dirs[i]); err == nil {
			removed = append(removed, dirs[i])
		}
	}
	return removed, nil
}
