// Package xlease maintains the lease index of a shared volume: a mapping
// from resource names to fixed 1 MiB lease slots, kept on the volume
// itself and readable by every host attached to the storage.
//
// Volume layout, in 1 MiB slots:
//
//	slot 0   lockspace, host ids
//	slot 1   this index
//	slot 2   reserved
//	slot 3+  user leases, one resource per slot
//
// The index uses the first 501 blocks of its slot: one 512 byte header
// block followed by 500 blocks of 64 byte records, 8 records per block.
// Record N describes the lease at UserResourceBase + N*SlotSize.
//
// The index is an optimization. The ground truth for every slot is the
// resource header the lock manager keeps at the slot itself, so a lost or
// corrupt index is rebuilt from those headers, never trusted blindly: any
// validation failure surfaces ErrInvalidIndex and leaves the volume
// untouched until an operator runs a rebuild.
//
// Mutating operations on one volume handle must be serialized by the
// caller. Different hosts are expected to mutate different slots under an
// external coordination scheme; the index itself does not lock anything.
package xlease

import (
	"bytes"
	"errors"
	"fmt"
)

// Volume geometry. All sizes are in bytes.
const (
	// BlockSize is the alignment unit of index I/O.
	BlockSize = 512

	// SlotSize is the storage allocated to one lease, matching the lock
	// manager resource alignment.
	SlotSize = 2048 * BlockSize

	// LockspaceBase is the offset of the lockspace slot.
	LockspaceBase = 0

	// IndexBase is the offset of the index slot.
	IndexBase = SlotSize

	// UserResourceBase is the offset of the first user lease slot.
	UserResourceBase = 3 * SlotSize

	// RecordSize is the on-disk size of one index record.
	RecordSize = 64

	// RecordsPerBlock is how many records share one block, and therefore
	// one write.
	RecordsPerBlock = BlockSize / RecordSize

	// MaxRecords caps how many leases one volume can hold.
	MaxRecords = 4000

	// IndexSize is the size of the record area, which starts one block
	// after IndexBase.
	IndexSize = MaxRecords * RecordSize

	// MinVolumeSize is the smallest volume that can hold a valid index.
	MinVolumeSize = IndexBase + BlockSize + IndexSize

	// IndexVersion is the only supported index format version.
	IndexVersion = 1

	// nameSize is the fixed width of lockspace and resource name fields.
	nameSize = 48
)

var (
	// ErrInvalidIndex means the on-disk index failed validation and must
	// be rebuilt before the volume can be used.
	ErrInvalidIndex = errors.New("invalid lease index")

	// ErrNoSuchLease means no slot holds the requested resource.
	ErrNoSuchLease = errors.New("no such lease")

	// ErrLeaseExists means the resource already holds a slot.
	ErrLeaseExists = errors.New("lease already exists")

	// ErrLeaseUpdating means the record was written but its lease never
	// finished being added or removed.
	ErrLeaseUpdating = errors.New("lease is updating")

	// ErrNoSpace means every record in the index is occupied.
	ErrNoSpace = errors.New("no free slot in lease index")

	// ErrReadOnly means the volume was opened without a resource store
	// and cannot mutate leases.
	ErrReadOnly = errors.New("volume is read-only: no resource store")
)

// LeaseInfo identifies a lease and the storage backing it. Path and Offset
// are what a client passes to the lock manager to acquire the lease.
type LeaseInfo struct {
	Lockspace string
	Resource  string
	Path      string
	Offset    int64
}

// LeaseStatus is one entry in the enumeration of a volume's leases.
type LeaseStatus struct {
	Offset   int64
	Updating bool
}

// leaseOffset maps a record number to its lease slot offset.
func leaseOffset(recnum int) int64 {
	return UserResourceBase + int64(recnum)*SlotSize
}

// parseName decodes a fixed-width NUL-padded name field. Anything outside
// printable ASCII in the used portion is rejected.
func parseName(field []byte) (string, error) {
	name := string(bytes.TrimRight(field, "\x00"))
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7e {
			return "", fmt.Errorf("cannot decode name %q", field)
		}
	}
	return name, nil
}

// encodeName writes name into a pre-zeroed fixed-width field.
func encodeName(field []byte, name string) error {
	if len(name) > len(field) {
		return fmt.Errorf("name %q longer than %d bytes", name, len(field))
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] > 0x7e {
			return fmt.Errorf("cannot encode name %q", name)
		}
	}
	copy(field, name)
	return nil
}
