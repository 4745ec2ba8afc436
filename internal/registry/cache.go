// Package registry holds the per-run lookup structure over known files.
package registry

import (
	"path/filepath"
	"sort"

	"github.com/sagshome/ImageClean-sub000/internal/media"
)

// Cache maps identity name -> literal filename -> entries. It is built per
// tree per run and passed explicitly; there is no process-wide instance.
//
// Every entry is expected to exist at the path it was inserted under. Callers
// that move a file must Remove the stale entry and Insert the new one.
type Cache struct {
	byNorm map[string]map[string][]*media.File
	byPath map[string]*media.File
	n      int
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		byNorm: make(map[string]map[string][]*media.File),
		byPath: make(map[string]*media.File),
	}
}

// Build returns a cache holding files in the given order.
func Build(files []*media.File) *Cache {
	c := New()
	for _, f := range files {
		c.Insert(f)
	}
	return c
}

// Insert adds f. Re-inserting an entry already cached at the same path
// replaces it.
func (c *Cache) Insert(f *media.File) {
	if f == nil {
		return
	}
	if old, ok := c.byPath[f.Path]; ok {
		c.Remove(old)
	}
	names := c.byNorm[f.Norm]
	if names == nil {
		names = make(map[string][]*media.File)
		c.byNorm[f.Norm] = names
	}
	names[f.Name] = append(names[f.Name], f)
	c.byPath[f.Path] = f
	c.n++
}

// Remove detaches f. The exact entry is removed when present; otherwise the
// first entry under the same literal name that tests Equal and lives at the
// same path. An unrelated file sharing the identity name is never removed.
// Remove reports whether anything was detached.
func (c *Cache) Remove(f *media.File) bool {
	if f == nil {
		return false
	}
	names := c.byNorm[f.Norm]
	if names == nil {
		return false
	}
	bucket := names[f.Name]
	idx := -1
	for i, e := range bucket {
		if e == f {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i, e := range bucket {
			if filepath.Clean(e.Path) == filepath.Clean(f.Path) && media.Equal(e, f) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return false
	}
	gone := bucket[idx]
	bucket = append(bucket[:idx:idx], bucket[idx+1:]...)
	if len(bucket) == 0 {
		delete(names, f.Name)
		if len(names) == 0 {
			delete(c.byNorm, f.Norm)
		}
	} else {
		names[f.Name] = bucket
	}
	if c.byPath[gone.Path] == gone {
		delete(c.byPath, gone.Path)
	}
	c.n--
	return true
}

// BestMatch returns the highest-ordered cached entry equal to probe, or nil.
// Candidates are every entry sharing probe's identity name, across all
// literal filenames. The probe itself is never returned.
func (c *Cache) BestMatch(probe *media.File) *media.File {
	var best *media.File
	for _, e := range c.Entries(probe.Norm) {
		if e == probe || !media.Equal(e, probe) {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		best = media.Better(best, e)
	}
	return best
}

// LookupByPath returns the entry cached at exactly path.
func (c *Cache) LookupByPath(path string) (*media.File, bool) {
	f, ok := c.byPath[filepath.Clean(path)]
	return f, ok
}

// Names returns every identity name in sorted order.
func (c *Cache) Names() []string {
	out := make([]string, 0, len(c.byNorm))
	for k := range c.byNorm {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Entries returns every entry for an identity name, sorted by path.
func (c *Cache) Entries(norm string) []*media.File {
	var out []*media.File
	for _, bucket := range c.byNorm[norm] {
		out = append(out, bucket...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.n }
