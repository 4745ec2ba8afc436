// Package imgx decodes and encodes pixel data for the codec and hashing
// collaborators. Decoders for JPEG, PNG and GIF are always registered; HEIF is
// registered only where the platform codec is built in.
package imgx

import (
	"errors"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"io"

	"github.com/spf13/afero"
)

// SmallEdge is the longest-edge threshold, in pixels, below which an image is
// treated as a thumbnail.
const SmallEdge = 360

// ErrInvalidSize is returned for images with a zero or negative dimension.
var ErrInvalidSize = errors.New("imgx: invalid image size")

// HEIFSupported reports whether the HEIF decoder is built into this binary.
func HEIFSupported() bool { return heifSupported }

// Decode reads and decodes the image at path.
func Decode(fs afero.Fs, path string) (image.Image, string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", err
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", ErrInvalidSize
	}
	return img, format, nil
}

// Dimensions returns the pixel size of the image at path without decoding
// the full pixel data.
func Dimensions(fs afero.Fs, path string) (w, h int, err error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, ErrInvalidSize
	}
	return cfg.Width, cfg.Height, nil
}

// IsSmall reports whether the image at path has a longest edge below
// SmallEdge. Undecodable images are never small.
func IsSmall(fs afero.Fs, path string) bool {
	w, h, err := Dimensions(fs, path)
	if err != nil {
		return false
	}
	return max(w, h) < SmallEdge
}

// EncodeJPEG writes img as a JPEG at quality 95.
func EncodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
}
