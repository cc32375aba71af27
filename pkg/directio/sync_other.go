//go:build !linux
// +build !linux

package directio

import "os"

func datasync(f *os.File) error {
	return f.Sync()
}

// Preallocate extends f to size bytes. Only Linux reserves the blocks
// eagerly.
func Preallocate(f *os.File, size int64) error {
	return f.Truncate(size)
}
