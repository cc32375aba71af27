//go:build linux
// +build linux

package directio

import (
	"os"

	"golang.org/x/sys/unix"
)

func datasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}

// Preallocate reserves size bytes of storage for f so later aligned writes
// cannot fail with ENOSPC. Filesystems without fallocate support fall back
// to extending the file.
func Preallocate(f *os.File, size int64) error {
	err := unix.Fallocate(int(f.Fd()), 0, 0, size)
	if err == unix.EOPNOTSUPP || err == unix.ENOSYS {
		return f.Truncate(size)
	}
	return err
}
