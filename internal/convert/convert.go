// Package convert turns legacy HEIC images into JPEG files that then
// continue through the normal relocation pipeline.
package convert

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/infra/exifx"
	"github.com/sagshome/ImageClean-sub000/internal/infra/imgx"
	"github.com/sagshome/ImageClean-sub000/internal/media"
)

// LegacyExt is the only container suffix that is converted.
const LegacyExt = ".heic"

// ErrUnavailable reports that this binary carries no decoder for the legacy
// container. It is a capability gap, not a failure.
var ErrUnavailable = errors.New("convert: legacy image codec unavailable on this platform")

// Codec is the pixel collaborator.
type Codec interface {
	Decode(path string) (image.Image, error)
	Encode(w io.Writer, img image.Image) error
}

// TagCopier is the metadata collaborator used to carry tags across.
type TagCopier interface {
	ReadTags(path string, tags []string) (map[string]string, error)
	WriteTags(path string, tags map[string]string) error
}

// Converter writes converted files into WorkDir, never into the organized
// tree. Codec nil means conversion is unavailable; Tags is optional.
type Converter struct {
	Fs        afero.Fs
	WorkDir   string
	Codec     Codec
	Tags      TagCopier
	Inspector *media.Inspector
	Log       *slog.Logger

	gap sync.Once
}

func (c *Converter) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// Applies reports whether f should be converted. Without a codec it is always
// false and the capability gap is logged once.
func (c *Converter) Applies(f *media.File) bool {
	if !strings.EqualFold(filepath.Ext(f.Name), LegacyExt) {
		return false
	}
	if c.Codec == nil {
		c.gap.Do(func() {
			c.log().Warn("heic conversion unavailable; originals are organized unconverted", "error", ErrUnavailable)
		})
		return false
	}
	return true
}

// Convert decodes f and writes <stem>.jpg into WorkDir carrying f's date and
// camera tags. The returned entry keeps f's folder, so it is organized as if
// it had been found where f was. A stale scratch file of the same name is
// replaced.
func (c *Converter) Convert(f *media.File) (*media.File, error) {
	if c.Codec == nil {
		return nil, ErrUnavailable
	}
	if err := c.Fs.MkdirAll(c.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("convert: work dir: %w", err)
	}
	out := filepath.Join(c.WorkDir, strings.TrimSuffix(f.Name, filepath.Ext(f.Name))+".jpg")
	if err := c.Fs.Remove(out); err == nil {
		c.log().Debug("removed stale conversion", "path", out)
	}

	img, err := c.Codec.Decode(f.Path)
	if err != nil {
		return nil, fmt.Errorf("convert: decode %s: %w", f.Path, err)
	}
	if err := c.write(out, img); err != nil {
		_ = c.Fs.Remove(out)
		return nil, err
	}
	c.carryTags(f.Path, out)
	if err := c.Fs.Chtimes(out, f.ModTime, f.ModTime); err != nil {
		c.log().Warn("set times failed", "dst", out, "error", err)
	}

	conv, err := c.Inspector.Stat(out, f.Folder)
	if err != nil {
		return nil, fmt.Errorf("convert: stat %s: %w", out, err)
	}
	c.log().Debug("converted", "src", f.Path, "dst", out)
	return conv, nil
}

func (c *Converter) write(path string, img image.Image) error {
	w, err := c.Fs.Create(path)
	if err != nil {
		return fmt.Errorf("convert: create %s: %w", path, err)
	}
	if err := c.Codec.Encode(w, img); err != nil {
		_ = w.Close()
		return fmt.Errorf("convert: encode %s: %w", path, err)
	}
	return w.Close()
}

func (c *Converter) carryTags(src, dst string) {
	if c.Tags == nil {
		return
	}
	tags, err := c.Tags.ReadTags(src, exifx.CarriedTags)
	if err != nil {
		c.log().Warn("read tags failed", "src", src, "error", err)
		return
	}
	if err := c.Tags.WriteTags(dst, tags); err != nil {
		c.log().Warn("write tags failed", "dst", dst, "error", err)
	}
}

// ImageCodec decodes through the image registry and encodes JPEG.
type ImageCodec struct {
	Fs afero.Fs
}

func (c ImageCodec) Decode(path string) (image.Image, error) {
	img, _, err := imgx.Decode(c.Fs, path)
	return img, err
}

func (c ImageCodec) Encode(w io.Writer, img image.Image) error { return imgx.EncodeJPEG(w, img) }

// PlatformCodec returns the codec for this build, or nil when the legacy
// decoder is not compiled in.
func PlatformCodec(fs afero.Fs) Codec {
	if !imgx.HEIFSupported() {
		return nil
	}
	return ImageCodec{Fs: fs}
}
