package directio

import (
	"fmt"
	"io"
	"os"

	ncwio "github.com/ncw/directio"
)

// DirectFile runs positioned I/O on the calling goroutine.
type DirectFile struct {
	name   string
	file   *os.File
	direct bool
}

// OpenFile opens path for aligned positioned I/O. In direct mode the file
// is opened with O_DIRECT and buffers must come from AlignedBuffer. Without
// direct mode I/O goes through the page cache and every Pwrite is followed
// by fdatasync, for filesystems that do not support O_DIRECT.
func OpenFile(path string, direct bool) (*DirectFile, error) {
	var f *os.File
	var err error
	if direct {
		f, err = ncwio.OpenFile(path, os.O_RDWR, 0)
	} else {
		f, err = os.OpenFile(path, os.O_RDWR, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DirectFile{name: path, file: f, direct: direct}, nil
}

func (f *DirectFile) Name() string {
	return f.name
}

// Size reports the current size by seeking to the end, so block devices
// report their real capacity instead of zero.
func (f *DirectFile) Size() (int64, error) {
	size, err := f.file.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", f.name, err)
	}
	return size, nil
}

func (f *DirectFile) Pread(offset int64, buf []byte) (int, error) {
	if err := checkAligned(offset, buf); err != nil {
		return 0, err
	}
	n, err := f.file.ReadAt(buf, offset)
	if err == io.EOF {
		// The file ends before the buffer does.
		return n, nil
	}
	if err != nil {
		return n, fmt.Errorf("read %s at %d: %w", f.name, offset, err)
	}
	return n, nil
}

func (f *DirectFile) Pwrite(offset int64, buf []byte) error {
	if err := checkAligned(offset, buf); err != nil {
		return err
	}
	if _, err := f.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("write %s at %d: %w", f.name, offset, err)
	}
	if !f.direct {
		// Page cache mode must still be durable when Pwrite returns.
		if err := datasync(f.file); err != nil {
			return fmt.Errorf("sync %s: %w", f.name, err)
		}
	}
	return nil
}

func (f *DirectFile) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", f.name, err)
	}
	return nil
}
