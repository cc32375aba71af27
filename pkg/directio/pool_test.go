package directio_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openvol/xleases/pkg/directio"
)

// blockingFile parks every read and write until release is closed, standing
// in for storage that stopped responding.
type blockingFile struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingFile() *blockingFile {
	return &blockingFile{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (f *blockingFile) Name() string { return "blocking" }

func (f *blockingFile) Size() (int64, error) { return 0, nil }

func (f *blockingFile) Pread(offset int64, buf []byte) (int, error) {
	f.entered <- struct{}{}
	<-f.release
	return len(buf), nil
}

func (f *blockingFile) Pwrite(offset int64, buf []byte) error {
	f.entered <- struct{}{}
	<-f.release
	return nil
}

func (f *blockingFile) Close() error { return nil }

func TestPoolTimeout(t *testing.T) {
	bf := newBlockingFile()
	pool := directio.NewPool("test", 1)
	f := pool.Wrap(bf, 50*time.Millisecond)

	_, err := f.Pread(0, make([]byte, directio.BlockSize))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = f.Pwrite(0, make([]byte, directio.BlockSize))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(bf.release)
	pool.Close()
}

func TestPoolContextCancel(t *testing.T) {
	bf := newBlockingFile()
	pool := directio.NewPool("test", 1)
	f := pool.Wrap(bf, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.PreadContext(ctx, 0, make([]byte, directio.BlockSize))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(bf.release)
	pool.Close()
}

func TestPoolBusyWorker(t *testing.T) {
	bf := newBlockingFile()
	pool := directio.NewPool("test", 1)
	f := pool.Wrap(bf, 0)

	first := make(chan error, 1)
	go func() {
		_, err := f.Pread(0, make([]byte, directio.BlockSize))
		first <- err
	}()
	<-bf.entered // the only worker is now stuck

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.PreadContext(ctx, 0, make([]byte, directio.BlockSize))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(bf.release)
	require.NoError(t, <-first)
	pool.Close()
}

func TestPoolClosed(t *testing.T) {
	bf := newBlockingFile()
	close(bf.release)
	pool := directio.NewPool("test", 1)
	f := pool.Wrap(bf, time.Minute)

	pool.Close()
	_, err := f.Pread(0, make([]byte, directio.BlockSize))
	require.ErrorIs(t, err, directio.ErrPoolClosed)
}

func TestPoolCloseIdempotent(t *testing.T) {
	pool := directio.NewPool("test", 2)
	pool.Close()
	pool.Close()
}
