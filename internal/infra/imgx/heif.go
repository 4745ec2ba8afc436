//go:build cgo && !windows

package imgx

import (
	_ "github.com/vegidio/heif-go" // register HEIF/HEVC decoder
)

const heifSupported = true
