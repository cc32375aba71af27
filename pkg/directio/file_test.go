package directio_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvol/xleases/pkg/directio"
)

// All tests open files without O_DIRECT: temp dirs commonly live on tmpfs,
// which rejects the flag. PoolFile and DirectFile share the same alignment
// and durability contract either way.

type openFunc func(t *testing.T, path string) directio.File

func fileKinds() map[string]openFunc {
	return map[string]openFunc{
		"direct": func(t *testing.T, path string) directio.File {
			f, err := directio.OpenFile(path, false)
			require.NoError(t, err)
			t.Cleanup(func() { _ = f.Close() })
			return f
		},
		"pool": func(t *testing.T, path string) directio.File {
			pool := directio.NewPool("test", 2)
			t.Cleanup(pool.Close)
			f, err := pool.OpenFile(path, false, time.Minute)
			require.NoError(t, err)
			t.Cleanup(func() { _ = f.Close() })
			return f
		},
	}
}

// blockFile writes one 512 byte block per pattern byte, so "abc" becomes
// 512 a's, 512 b's and 512 c's.
func blockFile(t *testing.T, pattern string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data")
	var buf bytes.Buffer
	for i := 0; i < len(pattern); i++ {
		buf.Write(bytes.Repeat([]byte{pattern[i]}, directio.BlockSize))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func expandPattern(pattern string) []byte {
	var buf bytes.Buffer
	for i := 0; i < len(pattern); i++ {
		buf.Write(bytes.Repeat([]byte{pattern[i]}, directio.BlockSize))
	}
	return buf.Bytes()
}

func TestFileName(t *testing.T) {
	for kind, open := range fileKinds() {
		t.Run(kind, func(t *testing.T) {
			path := blockFile(t, "a")
			f := open(t, path)
			assert.Equal(t, path, f.Name())
		})
	}
}

func TestFileSize(t *testing.T) {
	for kind, open := range fileKinds() {
		t.Run(kind, func(t *testing.T) {
			path := blockFile(t, "abcd")
			f := open(t, path)
			size, err := f.Size()
			require.NoError(t, err)
			assert.Equal(t, int64(4*directio.BlockSize), size)
		})
	}
}

func TestFileSizeSparse(t *testing.T) {
	path := blockFile(t, "a")
	require.NoError(t, os.Truncate(path, 1<<30))
	f, err := directio.OpenFile(path, false)
	require.NoError(t, err)
	defer f.Close()
	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), size)
}

func TestPread(t *testing.T) {
	tests := []struct {
		offset int64
		want   string
	}{
		{0, "ab"},
		{0, "abcd"},
		{512, "bc"},
		{1024, "cd"},
		{1536, "d"},
	}

	for kind, open := range fileKinds() {
		t.Run(kind, func(t *testing.T) {
			f := open(t, blockFile(t, "abcd"))
			for _, tt := range tests {
				buf := make([]byte, len(tt.want)*directio.BlockSize)
				n, err := f.Pread(tt.offset, buf)
				require.NoError(t, err)
				assert.Equal(t, len(buf), n)
				assert.Equal(t, expandPattern(tt.want), buf)
			}
		})
	}
}

func TestPreadShort(t *testing.T) {
	for kind, open := range fileKinds() {
		t.Run(kind, func(t *testing.T) {
			f := open(t, blockFile(t, "ab"))
			buf := make([]byte, 2*directio.BlockSize)
			n, err := f.Pread(512, buf)
			require.NoError(t, err)
			assert.Equal(t, directio.BlockSize, n)
			assert.Equal(t, expandPattern("b"), buf[:n])
		})
	}
}

func TestPreadBeyondEnd(t *testing.T) {
	for kind, open := range fileKinds() {
		t.Run(kind, func(t *testing.T) {
			f := open(t, blockFile(t, "ab"))
			n, err := f.Pread(2*directio.BlockSize, make([]byte, directio.BlockSize))
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestPwrite(t *testing.T) {
	tests := []struct {
		offset int64
		data   string
		want   string
	}{
		{0, "xy", "xyaa"},
		{0, "wxyz", "wxyz"},
		{512, "xy", "axya"},
		{1024, "xy", "aaxy"},
	}

	for kind, open := range fileKinds() {
		t.Run(kind, func(t *testing.T) {
			for _, tt := range tests {
				path := blockFile(t, "aaaa")
				f := open(t, path)
				require.NoError(t, f.Pwrite(tt.offset, expandPattern(tt.data)))
				got, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, expandPattern(tt.want), got)
			}
		})
	}
}

func TestUnaligned(t *testing.T) {
	for kind, open := range fileKinds() {
		t.Run(kind, func(t *testing.T) {
			f := open(t, blockFile(t, "abcd"))

			_, err := f.Pread(100, make([]byte, directio.BlockSize))
			assert.ErrorIs(t, err, directio.ErrUnaligned)
			_, err = f.Pread(0, make([]byte, 100))
			assert.ErrorIs(t, err, directio.ErrUnaligned)
			_, err = f.Pread(0, nil)
			assert.ErrorIs(t, err, directio.ErrUnaligned)

			err = f.Pwrite(100, make([]byte, directio.BlockSize))
			assert.ErrorIs(t, err, directio.ErrUnaligned)
			err = f.Pwrite(0, make([]byte, 100))
			assert.ErrorIs(t, err, directio.ErrUnaligned)
		})
	}
}

func TestAlignedBuffer(t *testing.T) {
	buf := directio.AlignedBuffer(directio.BlockSize)
	assert.Len(t, buf, directio.BlockSize)
	assert.Equal(t, make([]byte, directio.BlockSize), buf)
}

func TestOpenMissing(t *testing.T) {
	_, err := directio.OpenFile(filepath.Join(t.TempDir(), "missing"), false)
	assert.Error(t, err)
}
