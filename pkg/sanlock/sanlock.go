// Package sanlock defines the boundary to the resource store that holds
// the ground truth for every lease slot. The index engine consumes the
// ResourceStore interface; a production binding talks to the sanlock
// daemon and lives with the orchestration layer. FakeStore is the
// injectable test double.
package sanlock

import (
	"errors"
	"fmt"
)

// LeaderMagic is the errno the daemon reports when a slot holds no valid
// resource header, as opposed to a real I/O or protocol failure.
const LeaderMagic = -223

// Disk locates one extent of a resource on shared storage.
type Disk struct {
	Path   string
	Offset int64
}

// ResourceInfo is the identity stored in a slot's resource header. Both
// names are empty for a slot that was invalidated.
type ResourceInfo struct {
	Lockspace string
	Resource  string
}

// ResourceStore is the subset of the lock manager API the lease index
// needs: writing resource identities and reading them back.
type ResourceStore interface {
	// WriteResource stores the lockspace/resource identity at the given
	// disks, overwriting any previous occupant. Writing empty names
	// invalidates the slot; there is no native delete.
	WriteResource(lockspace, resource string, disks []Disk) error

	// ReadResource reads back the identity stored at offset in path.
	ReadResource(path string, offset int64) (ResourceInfo, error)
}

// StoreError is a failure reported by the resource store, carrying the
// daemon errno.
type StoreError struct {
	Op    string
	Errno int
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("sanlock %s failed: errno %d", e.Op, e.Errno)
}

// IsNotResource reports whether err means the slot holds no valid resource
// header. Rebuild treats such slots as free; any other error aborts it.
func IsNotResource(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Errno == LeaderMagic
}
