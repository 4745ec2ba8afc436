// Package scan walks a tree once and produces the folder arena and the file
// entries the caches are built from.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/folder"
	"github.com/sagshome/ImageClean-sub000/internal/media"
)

// skipFolders are system or camera directories that never hold user files.
var skipFolders = map[string]bool{
	"PRIVATE":      true, // camera system folder
	"AVF_INFO":     true, // Sony AVCHD info
	"THMBNL":       true, // Sony thumbnails
	"@eaDir":       true, // Synology thumbnails
	"$RECYCLE.BIN": true,
}

// Options controls one walk.
type Options struct {
	// Exclude lists directories to skip entirely. Relative entries are
	// resolved against the root.
	Exclude []string
	// IgnoreFolders are extra names treated as non-descriptive.
	IgnoreFolders []string
}

// Result is one walked tree. Files are sorted by path.
type Result struct {
	Tree  *folder.Tree
	Files []*media.File
}

// Tree walks root with in. Hidden files and directories are skipped, as are
// excluded and system directories. Unreadable entries are skipped, not fatal;
// only a missing or unreadable root is an error.
func Tree(fs afero.Fs, in *media.Inspector, root string, opts Options) (*Result, error) {
	root = filepath.Clean(root)
	if _, err := fs.Stat(root); err != nil {
		return nil, err
	}
	excluded := buildExcluded(root, opts.Exclude)
	res := &Result{Tree: folder.NewTree(root, opts.IgnoreFolders)}

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if path != root && (strings.HasPrefix(info.Name(), ".") || isExcluded(path, excluded)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if skipFolders[info.Name()] {
				return filepath.SkipDir
			}
			res.Tree.Folder(path)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		res.Files = append(res.Files, in.New(path, info, res.Tree.Folder(filepath.Dir(path))))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	return res, nil
}

// Contains reports whether path is base or lies below it.
func Contains(base, path string) bool {
	base, path = filepath.Clean(base), filepath.Clean(path)
	if path == base {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(base, string(filepath.Separator))+string(filepath.Separator))
}

func buildExcluded(root string, dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, x := range dirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if !filepath.IsAbs(x) {
			x = filepath.Join(root, x)
		}
		out = append(out, filepath.Clean(x))
	}
	sort.Strings(out)
	return out
}

func isExcluded(path string, excluded []string) bool {
	for _, base := range excluded {
		if Contains(base, path) {
			return true
		}
	}
	return false
}
