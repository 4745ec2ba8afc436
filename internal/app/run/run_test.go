package run

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagshome/ImageClean-sub000/internal/config"
	"github.com/sagshome/ImageClean-sub000/internal/domain"
	"github.com/sagshome/ImageClean-sub000/internal/infra/imgx"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testDeps(fs afero.Fs) Deps {
	return Deps{
		Fs:       fs,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return fixedNow },
		NewRunID: func() string { return "run-1" },
	}
}

func testConfig(execute bool) config.EffectiveConfig {
	return config.EffectiveConfig{
		Input:    "/in",
		Output:   "/out",
		Execute:  execute,
		Rollover: true,
	}
}

func put(t *testing.T, fs afero.Fs, path, body string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
}

func read(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(b)
}

func exists(fs afero.Fs, path string) bool {
	ok, _ := afero.Exists(fs, path)
	return ok
}

func item(t *testing.T, rr domain.RunReport, src string) domain.ItemResult {
	t.Helper()
	for _, it := range rr.Items {
		if it.Src == src {
			return it
		}
	}
	require.Failf(t, "no item", "src %s not in report", src)
	return domain.ItemResult{}
}

func TestExecute_DryRunTouchesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/2021/09/MyTrip/a.jpg", "pixels")
	put(t, fs, "/in/Trip/notes.txt", "words")

	rr, err := Execute(context.Background(), testConfig(false), testDeps(fs), nil)
	require.NoError(t, err)

	assert.True(t, rr.DryRun)
	assert.Equal(t, "run-1", rr.RunID)
	assert.Equal(t, 2, rr.Summary.Planned)
	assert.Equal(t, "/out/2021/09/MyTrip/a.jpg", item(t, rr, "/in/2021/09/MyTrip/a.jpg").Dst)
	assert.Equal(t, "/out/no_date/Trip/notes.txt", item(t, rr, "/in/Trip/notes.txt").Dst)

	assert.False(t, exists(fs, "/out"))
	assert.True(t, exists(fs, "/in/2021/09/MyTrip/a.jpg"))
	assert.True(t, exists(fs, "/in/Trip/notes.txt"))
}

func TestExecute_BetterFolderWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/2020-05-06 Party/a.jpg", "same bytes")
	put(t, fs, "/in/Party/a.jpg", "same bytes")

	rr, err := Execute(context.Background(), testConfig(true), testDeps(fs), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, rr.Summary.Imported)
	assert.Equal(t, 1, rr.Summary.Duplicate)

	win := item(t, rr, "/in/2020-05-06 Party/a.jpg")
	assert.Equal(t, domain.StatusImported, win.Status)
	assert.Equal(t, "/out/2020/Party/a.jpg", win.Dst)

	dup := item(t, rr, "/in/Party/a.jpg")
	assert.Equal(t, domain.StatusDuplicate, dup.Status)
	assert.Equal(t, "/in/2020-05-06 Party/a.jpg", dup.Kept)
	assert.Equal(t, "/out/duplicates/Party/a.jpg", dup.Dst)

	assert.Equal(t, "same bytes", read(t, fs, "/out/2020/Party/a.jpg"))
	assert.True(t, exists(fs, "/out/duplicates/Party/a.jpg"))
	assert.False(t, exists(fs, "/in/Party"), "emptied input folders are removed")
	assert.False(t, exists(fs, "/in/2020-05-06 Party"))
	assert.True(t, exists(fs, "/in"))
}

func TestExecute_MoveKeepsHiddenFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/Trip/a.jpg", "pixels")
	put(t, fs, "/in/Trip/.archive/secret.jpg", "private")
	put(t, fs, "/in/Notes/.todo", "remember")

	rr, err := Execute(context.Background(), testConfig(true), testDeps(fs), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusImported, item(t, rr, "/in/Trip/a.jpg").Status)
	assert.False(t, exists(fs, "/in/Trip/a.jpg"))
	assert.Equal(t, "private", read(t, fs, "/in/Trip/.archive/secret.jpg"))
	assert.Equal(t, "remember", read(t, fs, "/in/Notes/.todo"))
}

func TestExecute_KeepOriginals(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/2020-05-06 Party/a.jpg", "same bytes")
	put(t, fs, "/in/Party/a.jpg", "same bytes")
	eff := testConfig(true)
	eff.KeepOriginals = true

	rr, err := Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, rr.Summary.Imported)
	assert.True(t, exists(fs, "/in/2020-05-06 Party/a.jpg"))
	assert.True(t, exists(fs, "/in/Party/a.jpg"))
	assert.False(t, exists(fs, "/out/duplicates/Party/a.jpg"))
	assert.Empty(t, item(t, rr, "/in/Party/a.jpg").Dst)
}

func TestExecute_AlreadyOrganized(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/out/2021/09/MyTrip/a.jpg", "pixels")
	put(t, fs, "/in/MyTrip/a.jpg", "pixels")

	rr, err := Execute(context.Background(), testConfig(true), testDeps(fs), nil)
	require.NoError(t, err)

	it := item(t, rr, "/in/MyTrip/a.jpg")
	assert.Equal(t, domain.StatusSkipped, it.Status)
	assert.Equal(t, "already_organized", it.Reason)
	assert.Equal(t, "/out/2021/09/MyTrip/a.jpg", it.Kept)
	assert.Equal(t, "/out/duplicates/MyTrip/a.jpg", it.Dst)
	assert.False(t, exists(fs, "/out/no_date/MyTrip/a.jpg"))
}

func TestExecute_OccupiedWithoutRollover(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/out/no_date/Trip/a.jpg", "old")
	put(t, fs, "/in/Trip/a.jpg", "newer and longer")
	eff := testConfig(true)
	eff.Rollover = false

	rr, err := Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	it := item(t, rr, "/in/Trip/a.jpg")
	assert.Equal(t, domain.StatusFailed, it.Status)
	assert.Equal(t, domain.ErrCodeOccupied, it.ErrorCode)
	assert.Equal(t, 1, rr.Summary.Failed)
	assert.Equal(t, "old", read(t, fs, "/out/no_date/Trip/a.jpg"))
	assert.Equal(t, "newer and longer", read(t, fs, "/in/Trip/a.jpg"))
}

func TestExecute_RolloverKeepsHistory(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/out/no_date/Trip/a.jpg", "old")
	put(t, fs, "/in/Trip/a.jpg", "newer and longer")

	_, err := Execute(context.Background(), testConfig(true), testDeps(fs), nil)
	require.NoError(t, err)

	assert.Equal(t, "newer and longer", read(t, fs, "/out/no_date/Trip/a.jpg"))
	assert.Equal(t, "old", read(t, fs, "/out/no_date/Trip/a_0.jpg"))
}

func TestExecute_OutputNotWritable(t *testing.T) {
	base := afero.NewMemMapFs()
	put(t, base, "/in/Trip/a.jpg", "pixels")
	fs := afero.NewReadOnlyFs(base)

	rr, err := Execute(context.Background(), testConfig(true), testDeps(fs), nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FatalOutputNotWritable, fe.Code)
	assert.Empty(t, rr.Items)
	assert.True(t, exists(base, "/in/Trip/a.jpg"))
}

func TestExecute_InputMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Execute(context.Background(), testConfig(false), testDeps(fs), nil)

	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FatalInputUnreadable, fe.Code)
}

func TestExecute_RecreateOverlap(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/lib/a.jpg", "pixels")
	eff := config.EffectiveConfig{Input: "/lib", Output: "/lib/organized", Recreate: true}

	_, err := Execute(context.Background(), eff, testDeps(fs), nil)

	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FatalRecreateOverlap, fe.Code)
	assert.True(t, exists(fs, "/lib/a.jpg"))
}

func TestExecute_InPlaceLibrary(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/lib/2021/09/MyTrip/a.jpg", "organized")
	put(t, fs, "/lib/Trip/b.jpg", "loose")
	eff := config.EffectiveConfig{Input: "/lib", Output: "/lib", Execute: true, Rollover: true}

	rr, err := Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	a := item(t, rr, "/lib/2021/09/MyTrip/a.jpg")
	assert.Equal(t, domain.StatusSkipped, a.Status)
	assert.Equal(t, "in_place", a.Reason)
	assert.Equal(t, "organized", read(t, fs, "/lib/2021/09/MyTrip/a.jpg"))

	b := item(t, rr, "/lib/Trip/b.jpg")
	assert.Equal(t, domain.StatusImported, b.Status)
	assert.Equal(t, "/lib/no_date/Trip/b.jpg", b.Dst)
	assert.False(t, exists(fs, "/lib/Trip"))
}

func TestExecute_OutputInsideInput(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/lib/Trip/a.jpg", "pixels")
	put(t, fs, "/lib/organized/no_date/Old/b.jpg", "kept")
	eff := config.EffectiveConfig{Input: "/lib", Output: "/lib/organized", Execute: true, Rollover: true}

	rr, err := Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	require.Len(t, rr.Items, 1)
	assert.Equal(t, "/lib/organized/no_date/Trip/a.jpg", rr.Items[0].Dst)
	assert.Equal(t, "kept", read(t, fs, "/lib/organized/no_date/Old/b.jpg"))
}

type fakeCodec struct{ fail bool }

func (c fakeCodec) Decode(string) (image.Image, error) {
	if c.fail {
		return nil, errors.New("corrupt container")
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.RGBA{10, 200, 10, 255})
	return img, nil
}

func (c fakeCodec) Encode(w io.Writer, img image.Image) error { return imgx.EncodeJPEG(w, img) }

func TestExecute_ConvertsAndArchives(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/2016/08/Camp/IMG_1.HEIC", "legacy container")
	eff := testConfig(true)
	eff.Convert = true
	eff.ArchiveConverted = true
	deps := testDeps(fs)
	deps.Codec = fakeCodec{}

	rr, err := Execute(context.Background(), eff, deps, nil)
	require.NoError(t, err)

	it := item(t, rr, "/in/2016/08/Camp/IMG_1.HEIC")
	assert.Equal(t, domain.StatusConverted, it.Status)
	assert.Equal(t, "/out/2016/08/Camp/IMG_1.jpg", it.Dst)
	assert.Equal(t, 1, rr.Summary.Converted)

	b, err := afero.ReadFile(fs, "/out/2016/08/Camp/IMG_1.jpg")
	require.NoError(t, err)
	_, format, err := image.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	assert.Equal(t, "legacy container", read(t, fs, "/out/migrated/2016/08/Camp/IMG_1.HEIC"))
	assert.False(t, exists(fs, "/out/2016/08/Camp/IMG_1.HEIC"))
	assert.False(t, exists(fs, "/out/.imageclean/work"))
	assert.False(t, exists(fs, "/in/2016/08/Camp/IMG_1.HEIC"))
}

func TestExecute_ConvertFailureImportsOriginal(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/2016/08/Camp/IMG_1.heic", "legacy container")
	eff := testConfig(true)
	eff.Convert = true
	deps := testDeps(fs)
	deps.Codec = fakeCodec{fail: true}

	rr, err := Execute(context.Background(), eff, deps, nil)
	require.NoError(t, err)

	it := item(t, rr, "/in/2016/08/Camp/IMG_1.heic")
	assert.Equal(t, domain.StatusImported, it.Status)
	assert.Equal(t, "/out/2016/08/Camp/IMG_1.heic", it.Dst)
}

func TestExecute_ConvertUnavailable(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/2016/08/Camp/IMG_1.heic", "legacy container")
	eff := testConfig(false)
	eff.Convert = true

	rr, err := Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	it := item(t, rr, "/in/2016/08/Camp/IMG_1.heic")
	assert.Equal(t, domain.StatusPlanned, it.Status)
	assert.Empty(t, it.Reason)
	assert.Equal(t, "/out/2016/08/Camp/IMG_1.heic", it.Dst)
}

func TestExecute_CheckSmall(t *testing.T) {
	fs := afero.NewMemMapFs()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))))
	put(t, fs, "/in/2020-05-06 Party/icon.png", buf.String())
	put(t, fs, "/in/2020-05-06 Party/broken.png", "not an image")
	eff := testConfig(false)
	eff.CheckSmall = true

	rr, err := Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	assert.Equal(t, "/out/small/2020/Party/icon.png", item(t, rr, "/in/2020-05-06 Party/icon.png").Dst)
	assert.Equal(t, "/out/2020/Party/broken.png", item(t, rr, "/in/2020-05-06 Party/broken.png").Dst)
}

func TestExecute_ManifestAndReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/2021/09/MyTrip/a.jpg", "pixels")
	eff := testConfig(true)
	eff.Manifest = true

	rr, err := Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	csv := read(t, fs, "/out/.imageclean/manifest.csv")
	assert.Contains(t, csv, "run-1,a.jpg,2021/09/MyTrip/a.jpg,2021,")

	var saved domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(read(t, fs, "/out/.imageclean/report.json")), &saved))
	assert.Equal(t, rr.RunID, saved.RunID)
	assert.Equal(t, rr.Summary, saved.Summary)
	assert.Len(t, saved.Items, 1)
}

func TestExecute_ManifestFollowsRollover(t *testing.T) {
	fs := afero.NewMemMapFs()
	eff := testConfig(true)
	eff.Manifest = true

	put(t, fs, "/in/Trip/a.jpg", "first")
	_, err := Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	put(t, fs, "/in/Trip/a.jpg", "second version")
	_, err = Execute(context.Background(), eff, testDeps(fs), nil)
	require.NoError(t, err)

	assert.Equal(t, "second version", read(t, fs, "/out/no_date/Trip/a.jpg"))
	assert.Equal(t, "first", read(t, fs, "/out/no_date/Trip/a_0.jpg"))

	csv := read(t, fs, "/out/.imageclean/manifest.csv")
	assert.Contains(t, csv, "run-1,a.jpg,no_date/Trip/a.jpg,Trip,14,")
	assert.Contains(t, csv, "run-1,a_0.jpg,no_date/Trip/a_0.jpg,Trip,5,")
	assert.Equal(t, 3, strings.Count(csv, "\n"))
}

func TestExecute_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	put(t, fs, "/in/Trip/a.jpg", "pixels")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rr, err := Execute(ctx, testConfig(true), testDeps(fs), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsFatal(err))
	assert.Empty(t, rr.Items)
	assert.True(t, exists(fs, "/in/Trip/a.jpg"))
}

func TestInit(t *testing.T) {
	fs := afero.NewMemMapFs()
	eff := testConfig(false)
	eff.KeepOriginals = true

	created, err := Init(fs, eff, "/work/imageclean.json")
	require.NoError(t, err)
	assert.Contains(t, created, "/out/.imageclean")
	assert.Contains(t, created, "/work/imageclean.json")

	var fc config.FileConfig
	require.NoError(t, json.Unmarshal([]byte(read(t, fs, "/work/imageclean.json")), &fc))
	assert.Equal(t, "/in", fc.Input)
	require.NotNil(t, fc.KeepOriginals)
	assert.True(t, *fc.KeepOriginals)

	again, err := Init(fs, eff, "/work/imageclean.json")
	require.NoError(t, err)
	assert.Empty(t, again)
}
