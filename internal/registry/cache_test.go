package registry

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagshome/ImageClean-sub000/internal/folder"
	"github.com/sagshome/ImageClean-sub000/internal/media"
)

type env struct {
	fs   afero.Fs
	tree *folder.Tree
	in   *media.Inspector
}

func newEnv() *env {
	fs := afero.NewMemMapFs()
	return &env{fs: fs, tree: folder.NewTree("/out", nil), in: &media.Inspector{Fs: fs}}
}

func (e *env) add(t *testing.T, rel, body string) *media.File {
	t.Helper()
	path := filepath.Join("/out", rel)
	require.NoError(t, afero.WriteFile(e.fs, path, []byte(body), 0o644))
	f, err := e.in.Stat(path, e.tree.Folder(filepath.Dir(path)))
	require.NoError(t, err)
	return f
}

func TestCache_InsertLookupRemove(t *testing.T) {
	e := newEnv()
	a := e.add(t, "2020/a.jpg", "one")
	b := e.add(t, "Trip/A (1).jpg", "one")
	c := Build([]*media.File{a, b})

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a.jpg"}, c.Names())
	assert.Equal(t, []*media.File{a, b}, c.Entries("a.jpg"))

	got, ok := c.LookupByPath("/out/2020/a.jpg")
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, c.Remove(a))
	assert.False(t, c.Remove(a))
	_, ok = c.LookupByPath("/out/2020/a.jpg")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestCache_RemoveIgnoresUnrelatedSameName(t *testing.T) {
	e := newEnv()
	a := e.add(t, "x/a.jpg", "short")
	other := e.add(t, "y/a.jpg", "a much longer body")
	c := Build([]*media.File{other})

	assert.False(t, c.Remove(a))
	assert.Equal(t, 1, c.Len())
}

func TestCache_RemoveByEqualEntryAtSamePath(t *testing.T) {
	e := newEnv()
	a := e.add(t, "x/a.jpg", "body")
	c := Build([]*media.File{a})

	again, err := e.in.Stat("/out/x/a.jpg", a.Folder)
	require.NoError(t, err)
	assert.True(t, c.Remove(again))
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Names())
}

func TestCache_InsertSamePathReplaces(t *testing.T) {
	e := newEnv()
	a := e.add(t, "x/a.jpg", "body")
	c := Build([]*media.File{a})
	again, err := e.in.Stat("/out/x/a.jpg", a.Folder)
	require.NoError(t, err)

	c.Insert(again)
	assert.Equal(t, 1, c.Len())
	got, _ := c.LookupByPath("/out/x/a.jpg")
	assert.Same(t, again, got)
}

func TestCache_BestMatch(t *testing.T) {
	e := newEnv()
	low := e.add(t, "2020/05/a.jpg", "same")
	high := e.add(t, "2020/05/Party/a.jpg", "same")
	diff := e.add(t, "2020/06/a.jpg", "different size")
	c := Build([]*media.File{low, high, diff})

	probe := newEnv().add(t, "import/a.jpg", "same")
	assert.Same(t, high, c.BestMatch(probe))

	assert.Nil(t, c.BestMatch(newEnv().add(t, "import/b.jpg", "same")))
	assert.Same(t, low, c.BestMatch(high), "probe never matches itself")
}
