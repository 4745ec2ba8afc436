package relocate

import (
	"fmt"
	"path/filepath"

	"github.com/sagshome/ImageClean-sub000/internal/infra/fsx"
	"github.com/sagshome/ImageClean-sub000/internal/media"
	"github.com/sagshome/ImageClean-sub000/internal/registry"
)

// Rollover frees the canonical name dst by shifting its history one step:
// the oldest sibling (_N-1) is dropped, _i becomes _i+1, and the current
// occupant becomes _0. Cache entries for shifted files are re-pointed.
//
// Afterwards dst is free and at most N numbered siblings remain.
func (r *Relocator) Rollover(dst string, cache *registry.Cache) error {
	dir, name := filepath.Split(dst)
	version := func(i int) string { return filepath.Join(dir, media.VersionName(name, i)) }
	n := r.maxVersions()

	oldest := version(n - 1)
	if fsx.Exists(r.Fs, oldest) {
		if err := r.Fs.Remove(oldest); err != nil {
			return fmt.Errorf("relocate: drop %s: %w", oldest, err)
		}
		r.forget(cache, oldest)
		r.moved(oldest, "")
		r.log().Debug("rollover dropped", "path", oldest)
	}
	for i := n - 2; i >= 0; i-- {
		from := version(i)
		if !fsx.Exists(r.Fs, from) {
			continue
		}
		if err := r.shift(from, version(i+1), cache); err != nil {
			return err
		}
	}
	return r.shift(dst, version(0), cache)
}

func (r *Relocator) shift(from, to string, cache *registry.Cache) error {
	if err := r.Fs.Rename(from, to); err != nil {
		return fmt.Errorf("relocate: rollover %s: %w", from, err)
	}
	r.moved(from, to)
	if cache == nil {
		return nil
	}
	if old, ok := cache.LookupByPath(from); ok {
		cache.Remove(old)
		if moved, err := r.Inspector.Stat(to, r.folderFor(to)); err == nil {
			cache.Insert(moved)
		}
	}
	return nil
}

func (r *Relocator) forget(cache *registry.Cache, path string) {
	if cache == nil {
		return
	}
	if old, ok := cache.LookupByPath(path); ok {
		cache.Remove(old)
	}
}

func (r *Relocator) moved(from, to string) {
	if r.OnMove != nil {
		r.OnMove(from, to)
	}
}
