package folder

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Folder is one directory visited by a walk. Its classification is computed on
// first use and memoized for the Folder's lifetime.
type Folder struct {
	Path   string  // absolute, clean
	Rel    string  // significant path, slash separated, "" for the root
	Parent *Folder // non-owning; nil for the root

	class func() Classification
}

// Date returns the inferred date, if any.
func (f *Folder) Date() (time.Time, bool) {
	c := f.class()
	return c.Date, c.HasDate()
}

func (f *Folder) Specificity() Specificity { return f.class().Specificity }

// Description is what this folder's own name contributes.
func (f *Folder) Description() string { return f.class().Own() }

func (f *Folder) Score() int { return f.class().Score }

// IsRoot reports whether the folder is the base root of its tree.
func (f *Folder) IsRoot() bool { return f.Parent == nil }

// Chain returns the descriptions of this folder and every descriptive
// ancestor, outermost first. The root never contributes.
func (f *Folder) Chain() []string {
	var rev []string
	for cur := f; cur != nil && !cur.IsRoot(); cur = cur.Parent {
		if d := cur.Description(); d != "" {
			rev = append(rev, d)
		}
	}
	out := make([]string, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// Tree owns every Folder created under one base root, indexed by path.
// Files hold borrowed *Folder pointers into it; folders never point at files.
type Tree struct {
	Root    string
	ignored map[string]bool
	byPath  map[string]*Folder
}

// NewTree creates the arena for root. extraIgnored names are treated as
// non-descriptive in addition to the defaults.
func NewTree(root string, extraIgnored []string) *Tree {
	t := &Tree{
		Root:    filepath.Clean(root),
		ignored: IgnoreSet(extraIgnored),
		byPath:  make(map[string]*Folder, 64),
	}
	t.byPath[t.Root] = t.newFolder(t.Root, "", nil)
	return t
}

// Folder returns the Folder for dir, creating it and any missing ancestors.
// Paths outside the root resolve to the root folder.
func (t *Tree) Folder(dir string) *Folder {
	dir = filepath.Clean(dir)
	if f, ok := t.byPath[dir]; ok {
		return f
	}
	rel, err := filepath.Rel(t.Root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return t.byPath[t.Root]
	}
	parent := t.Folder(filepath.Dir(dir))
	f := t.newFolder(dir, filepath.ToSlash(rel), parent)
	t.byPath[dir] = f
	return f
}

// RootFolder returns the folder for the base root.
func (t *Tree) RootFolder() *Folder { return t.byPath[t.Root] }

// Len returns the number of folders created so far.
func (t *Tree) Len() int { return len(t.byPath) }

func (t *Tree) newFolder(path, rel string, parent *Folder) *Folder {
	ignored := t.ignored
	return &Folder{
		Path:   path,
		Rel:    rel,
		Parent: parent,
		class:  sync.OnceValue(func() Classification { return classify(rel, ignored) }),
	}
}
