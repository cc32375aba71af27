package sanlock

import (
	"fmt"
	"sync"
)

// FakeStore is an in-memory ResourceStore for tests. Every write is
// recorded, including empty-identity invalidations, and reading an offset
// that was never written fails with LeaderMagic, like uninitialized
// storage would.
type FakeStore struct {
	mu        sync.Mutex
	resources map[string]ResourceInfo

	// WriteErr and ReadErr, when set, fail the corresponding operation
	// before it takes effect.
	WriteErr error
	ReadErr  error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{resources: make(map[string]ResourceInfo)}
}

func storeKey(path string, offset int64) string {
	return fmt.Sprintf("%s:%d", path, offset)
}

func (s *FakeStore) WriteResource(lockspace, resource string, disks []Disk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	for _, d := range disks {
		s.resources[storeKey(d.Path, d.Offset)] = ResourceInfo{
			Lockspace: lockspace,
			Resource:  resource,
		}
	}
	return nil
}

func (s *FakeStore) ReadResource(path string, offset int64) (ResourceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return ResourceInfo{}, s.ReadErr
	}
	info, ok := s.resources[storeKey(path, offset)]
	if !ok {
		return ResourceInfo{}, &StoreError{Op: "read_resource", Errno: LeaderMagic}
	}
	return info, nil
}
