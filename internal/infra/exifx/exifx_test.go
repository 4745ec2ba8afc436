package exifx

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2019:06:01 10:11:12")
	require.NoError(t, err)
	assert.Equal(t, 2019, d.Year())
	assert.Equal(t, time.June, d.Month())
	assert.Equal(t, 12, d.Second())

	d, err = ParseDate("2020:01:05 08:00:00.123+02:00")
	require.NoError(t, err)
	assert.Equal(t, 5, d.Day())

	_, err = ParseDate("0000:00:00 00:00:00")
	assert.Error(t, err)
	_, err = ParseDate("2019")
	assert.Error(t, err)
}

func TestReader_NoExifWithoutTool(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.jpg", []byte("no exif here"), 0o644))

	r := &Reader{Fs: fs}
	_, err := r.ReadDate("/a.jpg")
	assert.Error(t, err)

	_, err = r.ReadDate("/missing.jpg")
	assert.Error(t, err)
}

func TestCarriedTagsIncludeDates(t *testing.T) {
	for _, k := range DateTags {
		assert.Contains(t, CarriedTags, k)
	}
}
