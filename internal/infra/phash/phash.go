// Package phash is the perceptual-hash collaborator: a fixed-width value per
// decoded image where a distance of zero means visual identity.
package phash

import (
	"fmt"

	"github.com/corona10/goimagehash"
	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/infra/imgx"
)

// Hasher computes 64-bit DCT perception hashes.
type Hasher struct {
	Fs afero.Fs
}

func New(fs afero.Fs) *Hasher { return &Hasher{Fs: fs} }

// Hash decodes the image at path and returns its perception hash. Decode
// failures are returned so callers can fall back to name and size equality.
func (h *Hasher) Hash(path string) (*goimagehash.ImageHash, error) {
	img, _, err := imgx.Decode(h.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("phash: decode %s: %w", path, err)
	}
	v, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("phash: %s: %w", path, err)
	}
	return v, nil
}
