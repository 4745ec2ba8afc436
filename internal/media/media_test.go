package media

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagshome/ImageClean-sub000/internal/folder"
)

type fakeDates map[string]time.Time

func (d fakeDates) ReadDate(path string) (time.Time, error) {
	if t, ok := d[path]; ok {
		return t, nil
	}
	return time.Time{}, errors.New("no exif")
}

type fakeHasher struct {
	hashes map[string]uint64
	calls  map[string]int
}

func (h *fakeHasher) Hash(path string) (*goimagehash.ImageHash, error) {
	if h.calls == nil {
		h.calls = map[string]int{}
	}
	h.calls[path]++
	v, ok := h.hashes[path]
	if !ok {
		return nil, errors.New("decode failed")
	}
	return goimagehash.NewImageHash(v, goimagehash.PHash), nil
}

type fixture struct {
	fs   afero.Fs
	tree *folder.Tree
	in   *Inspector
}

func newFixture(t *testing.T, dates fakeDates, hasher *fakeHasher) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	in := &Inspector{Fs: fs}
	if dates != nil {
		in.Dates = dates
	}
	if hasher != nil {
		in.Hasher = hasher
	}
	return &fixture{fs: fs, tree: folder.NewTree("/in", nil), in: in}
}

func (fx *fixture) file(t *testing.T, rel, content string, mtime time.Time) *File {
	t.Helper()
	path := filepath.Join("/in", rel)
	require.NoError(t, afero.WriteFile(fx.fs, path, []byte(content), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, fx.fs.Chtimes(path, mtime, mtime))
	}
	f, err := fx.in.Stat(path, fx.tree.Folder(filepath.Dir(path)))
	require.NoError(t, err)
	return f
}

func TestNormalize_Stability(t *testing.T) {
	base := Normalize("IMG_1234.JPG")
	for _, name := range []string{
		"IMG_1234.jpg",
		"IMG_1234 (1).jpg",
		"IMG_1234_0.jpg",
		"IMG_1234_19.jpg",
		"IMG_1234 (2)_3.jpg",
		"/some/where/IMG_1234.jpg",
	} {
		assert.Equal(t, base, Normalize(name), name)
	}
	assert.Equal(t, "img_1234.jpg", base)
}

func TestNormalize_Strips(t *testing.T) {
	assert.Equal(t, "beach day.jpg", Normalize("Beach Day!.jpg"))
	assert.Equal(t, "hidden.png", Normalize("..hidden.png"))
	assert.Equal(t, "a_21.jpg", Normalize("a_21.jpg"))
	assert.Equal(t, "a_1.jpg", Normalize("a_1_1.jpg"))
	assert.Equal(t, "a 1.jpg", Normalize("a (1) (2).jpg"))
	assert.Equal(t, "_3.jpg", Normalize("_3.jpg"))
	assert.NotEqual(t, Normalize("a.jpg"), Normalize("b.jpg"))
}

func TestVersionName(t *testing.T) {
	assert.Equal(t, "a_3.jpg", VersionName("a.jpg", 3))
	assert.Equal(t, "notes_0", VersionName("notes", 0))
}

func TestClassifyKind(t *testing.T) {
	assert.Equal(t, KindFolder, Classify("/x/2020", true))
	assert.Equal(t, KindImage, Classify("/x/a.HEIC", false))
	assert.Equal(t, KindStandard, Classify("/x/a.mov", false))
	assert.Equal(t, "image", KindImage.String())
}

func TestDateFromName(t *testing.T) {
	d, ok := DateFromName("IMG_20250619_123456.jpg")
	require.True(t, ok)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.June, d.Month())

	_, ok = DateFromName("IMG_1234.jpg")
	assert.False(t, ok)
}

func TestEqual_Standard(t *testing.T) {
	fx := newFixture(t, nil, nil)
	a := fx.file(t, "x/notes.txt", "hello", time.Time{})
	b := fx.file(t, "y/Notes (1).txt", "world", time.Time{})
	c := fx.file(t, "z/notes.txt", "longer body", time.Time{})

	assert.True(t, Equal(a, a))
	assert.True(t, Equal(a, b), "same size and identity name")
	assert.False(t, Equal(a, c), "size differs")
}

func TestEqual_KindsNeverMix(t *testing.T) {
	fx := newFixture(t, nil, nil)
	a := fx.file(t, "x/a.jpg", "12345", time.Time{})
	b := fx.file(t, "x/a.txt", "12345", time.Time{})
	assert.False(t, Equal(a, b))
}

func TestEqual_PerceptualHash(t *testing.T) {
	h := &fakeHasher{hashes: map[string]uint64{
		"/in/x/one.jpg":   0xdeadbeef,
		"/in/y/two.jpg":   0xdeadbeef,
		"/in/z/three.jpg": 0xdeadbeee,
	}}
	fx := newFixture(t, nil, h)
	one := fx.file(t, "x/one.jpg", "aaaa", time.Time{})
	two := fx.file(t, "y/two.jpg", "bbbbbbbb", time.Time{})
	three := fx.file(t, "z/three.jpg", "cc", time.Time{})
	broken := fx.file(t, "z/broken.jpg", "d", time.Time{})

	assert.True(t, Equal(one, two))
	assert.False(t, Equal(one, three))
	assert.False(t, Equal(one, broken), "absent hash degrades to name and size")

	Equal(one, two)
	assert.Equal(t, 1, h.calls["/in/x/one.jpg"], "hash is computed once")
}

func TestCompare_FolderScoreFirst(t *testing.T) {
	fx := newFixture(t, nil, nil)
	party := fx.file(t, "2020/05/Party/a.jpg", "x", time.Time{})
	plain := fx.file(t, "2020/05/a.jpg", "x", time.Time{})

	assert.Positive(t, Compare(party, plain))
	assert.Negative(t, Compare(plain, party))
	assert.Same(t, party, Better(plain, party))
}

func TestCompare_OlderImageWins(t *testing.T) {
	dates := fakeDates{
		"/in/a/first.jpg":  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		"/in/b/second.jpg": time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	h := &fakeHasher{hashes: map[string]uint64{"/in/a/first.jpg": 7, "/in/b/second.jpg": 7}}
	fx := newFixture(t, dates, h)
	first := fx.file(t, "a/first.jpg", "x", time.Time{})
	second := fx.file(t, "b/second.jpg", "yy", time.Time{})

	require.True(t, Equal(first, second))
	assert.True(t, first.Metadate())
	assert.Positive(t, Compare(first, second))
	assert.Same(t, first, Better(second, first))
}

func TestCompare_DatedImageBeatsUndated(t *testing.T) {
	dates := fakeDates{"/in/a/x.jpg": time.Date(2018, 3, 1, 0, 0, 0, 0, time.UTC)}
	fx := newFixture(t, dates, nil)
	dated := fx.file(t, "a/x.jpg", "x", time.Time{})
	undated := fx.file(t, "b/x.jpg", "x", time.Time{})

	assert.False(t, undated.Metadate())
	assert.Positive(t, Compare(dated, undated))
}

func TestCompare_StandardLaterMtimeWins(t *testing.T) {
	fx := newFixture(t, nil, nil)
	old := fx.file(t, "a/notes.txt", "x", time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))
	recent := fx.file(t, "b/notes.txt", "x", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Positive(t, Compare(recent, old))
	assert.Same(t, recent, Better(old, recent))
}

func TestBetter_TieBreaksOnPath(t *testing.T) {
	fx := newFixture(t, nil, nil)
	a := fx.file(t, "a/x.jpg", "x", time.Time{})
	b := fx.file(t, "b/x.jpg", "x", time.Time{})

	assert.Zero(t, Compare(a, b))
	assert.Same(t, a, Better(a, b))
	assert.Same(t, a, Better(b, a))
}

func TestFileDate_Fallbacks(t *testing.T) {
	fx := newFixture(t, nil, nil)
	inFolder := fx.file(t, "2019/07/x.jpg", "x", time.Time{})
	d, ok := inFolder.Date()
	require.True(t, ok)
	assert.Equal(t, 2019, d.Year())
	assert.False(t, inFolder.Metadate())

	byName := fx.file(t, "misc/IMG_20210304_101010.jpg", "x", time.Time{})
	d, ok = byName.Date()
	require.True(t, ok)
	assert.Equal(t, 2021, d.Year())

	_, ok = fx.file(t, "misc/notes_20210304_101010.txt", "x", time.Time{}).Date()
	assert.False(t, ok, "standard files only inherit folder dates")
}
