// Package directio provides strictly aligned positioned I/O over files and
// block devices. Offsets and buffer lengths must be multiples of BlockSize;
// reads and writes bypass or flush the page cache so that data observed and
// written is always the data on storage, never a stale or delayed copy.
package directio

import (
	"errors"
	"fmt"

	ncwio "github.com/ncw/directio"
)

// BlockSize is the alignment unit for every offset and buffer length.
const BlockSize = 512

// ErrUnaligned is returned when an offset or buffer violates BlockSize
// alignment.
var ErrUnaligned = errors.New("unaligned offset or buffer size")

// File is positioned I/O over one storage path. Implementations differ in
// how the calling goroutine relates to the I/O: DirectFile runs syscalls
// inline, PoolFile delegates them to worker goroutines so callers can stop
// waiting on faulty storage.
//
// Writes are synchronous: when Pwrite returns, the data is on storage.
// Pread returns fewer bytes than requested only when the file itself ends
// before the buffer does.
type File interface {
	Name() string
	Size() (int64, error)
	Pread(offset int64, buf []byte) (int, error)
	Pwrite(offset int64, buf []byte) error
	Close() error
}

// AlignedBuffer allocates a zeroed size-byte buffer whose memory alignment
// satisfies O_DIRECT requirements. Buffers passed to a File opened in
// direct mode must come from here.
func AlignedBuffer(size int) []byte {
	return ncwio.AlignedBlock(size)
}

func checkAligned(offset int64, buf []byte) error {
	if offset%BlockSize != 0 || len(buf) == 0 || len(buf)%BlockSize != 0 {
		return fmt.Errorf("%w: offset=%d len=%d", ErrUnaligned, offset, len(buf))
	}
	return nil
}
