//go:build !cgo || windows

package imgx

const heifSupported = false
