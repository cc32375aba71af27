package directio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openvol/xleases/util"
)

// ErrPoolClosed is returned for operations submitted after Close.
var ErrPoolClosed = errors.New("i/o pool is closed")

// Pool runs positioned I/O on dedicated worker goroutines so a caller can
// stop waiting for an operation stuck on faulty storage. An abandoned
// operation keeps running on its worker until the syscall returns; its
// completion is logged and the result dropped.
type Pool struct {
	name string
	ops  chan func()
	done chan struct{}

	closeOnce sync.Once
	workers   sync.WaitGroup
}

// NewPool starts size worker goroutines. A pool with one worker serializes
// all I/O submitted through it.
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		name: name,
		ops:  make(chan func()),
		done: make(chan struct{}),
	}
	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	util.Debug("i/o pool %s started with %d workers", name, size)
	return p
}

func (p *Pool) worker() {
	defer p.workers.Done()
	for {
		select {
		case op := <-p.ops:
			op()
		case <-p.done:
			return
		}
	}
}

// Close stops the workers. Operations already running complete; new
// submissions fail with ErrPoolClosed.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.workers.Wait()
		util.Debug("i/o pool %s closed", p.name)
	})
}

// submit runs op on a pool worker and waits for it until ctx is done. When
// the wait is abandoned the operation still completes on its worker; the
// caller must treat any buffer passed to op as in use until then.
func (p *Pool) submit(ctx context.Context, op func()) error {
	opDone := make(chan struct{})
	wrapped := func() {
		defer close(opDone)
		op()
	}

	select {
	case p.ops <- wrapped:
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-opDone:
		return nil
	case <-ctx.Done():
		go func() {
			<-opDone
			util.Warn("i/o pool %s: abandoned operation completed", p.name)
		}()
		return ctx.Err()
	}
}

// Wrap returns a File whose operations are delegated to the pool. A zero
// timeout waits indefinitely; PreadContext and PwriteContext take an
// explicit context instead.
func (p *Pool) Wrap(file File, timeout time.Duration) *PoolFile {
	return &PoolFile{file: file, pool: p, timeout: timeout}
}

// OpenFile opens path like the package level OpenFile and serves its I/O
// from the pool.
func (p *Pool) OpenFile(path string, direct bool, timeout time.Duration) (*PoolFile, error) {
	f, err := OpenFile(path, direct)
	if err != nil {
		return nil, err
	}
	return p.Wrap(f, timeout), nil
}

// PoolFile is a File served by a Pool. Callers must serialize writes on a
// handle; reads may run concurrently when the pool has several workers.
type PoolFile struct {
	file    File
	pool    *Pool
	timeout time.Duration
}

func (f *PoolFile) Name() string {
	return f.file.Name()
}

func (f *PoolFile) opContext() (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), f.timeout)
}

func (f *PoolFile) Size() (int64, error) {
	ctx, cancel := f.opContext()
	defer cancel()
	var size int64
	var err error
	if serr := f.pool.submit(ctx, func() { size, err = f.file.Size() }); serr != nil {
		return 0, serr
	}
	return size, err
}

func (f *PoolFile) Pread(offset int64, buf []byte) (int, error) {
	ctx, cancel := f.opContext()
	defer cancel()
	return f.PreadContext(ctx, offset, buf)
}

// PreadContext reads like Pread but stops waiting when ctx is done. An
// abandoned read may still fill buf later; the buffer must not be reused.
func (f *PoolFile) PreadContext(ctx context.Context, offset int64, buf []byte) (int, error) {
	var n int
	var err error
	if serr := f.pool.submit(ctx, func() { n, err = f.file.Pread(offset, buf) }); serr != nil {
		return 0, serr
	}
	return n, err
}

func (f *PoolFile) Pwrite(offset int64, buf []byte) error {
	ctx, cancel := f.opContext()
	defer cancel()
	return f.PwriteContext(ctx, offset, buf)
}

// PwriteContext writes like Pwrite but stops waiting when ctx is done. An
// abandoned write may still reach storage later.
func (f *PoolFile) PwriteContext(ctx context.Context, offset int64, buf []byte) error {
	var err error
	if serr := f.pool.submit(ctx, func() { err = f.file.Pwrite(offset, buf) }); serr != nil {
		return serr
	}
	return err
}

func (f *PoolFile) Close() error {
	ctx, cancel := f.opContext()
	defer cancel()
	var err error
	if serr := f.pool.submit(ctx, func() { err = f.file.Close() }); serr != nil {
		return serr
	}
	return err
}
