package xlease

import (
	"errors"
	"fmt"
	"time"

	"github.com/openvol/xleases/pkg/directio"
	"github.com/openvol/xleases/pkg/metrics"
	"github.com/openvol/xleases/pkg/sanlock"
	"github.com/openvol/xleases/util"
)

// LeasesVolume provides lookup, enumeration and crash-safe add/remove of
// leases over one open volume. Mutating operations on a handle must be
// serialized by the caller.
type LeasesVolume struct {
	file  directio.File
	store sanlock.ResourceStore
	md    IndexMetadata
	index *VolumeIndex

	ownsFile bool
	closed   bool
}

// Open opens the volume at path and owns the file handle end to end. With
// direct set the volume is accessed with O_DIRECT. A nil store opens the
// volume read-only: lookups work, Add and Remove fail.
func Open(path string, store sanlock.ResourceStore, direct bool) (*LeasesVolume, error) {
	file, err := directio.OpenFile(path, direct)
	if err != nil {
		return nil, err
	}
	vol, err := NewVolume(file, store)
	if err != nil {
		if cerr := file.Close(); cerr != nil {
			util.Error("closing %s: %v", path, cerr)
		}
		return nil, err
	}
	vol.ownsFile = true
	return vol, nil
}

// NewVolume loads and validates the index backed by a caller-owned file.
// The caller closes file after closing the volume.
func NewVolume(file directio.File, store sanlock.ResourceStore) (*LeasesVolume, error) {
	util.Debug("loading index from %s", file.Name())
	index, err := NewVolumeIndex(file)
	if err != nil {
		return nil, err
	}
	md, err := readMetadata(file)
	if err != nil {
		return nil, err
	}
	return &LeasesVolume{
		file:  file,
		store: store,
		md:    md,
		index: index,
	}, nil
}

func readMetadata(file directio.File) (IndexMetadata, error) {
	block := directio.AlignedBuffer(BlockSize)
	n, err := file.Pread(IndexBase, block)
	if err != nil {
		return IndexMetadata{}, fmt.Errorf("reading index header: %w", err)
	}
	if n < BlockSize {
		return IndexMetadata{}, fmt.Errorf("%w: short header read: %d bytes", ErrInvalidIndex, n)
	}
	return ParseMetadata(block)
}

func (v *LeasesVolume) Path() string {
	return v.file.Name()
}

func (v *LeasesVolume) Lockspace() string {
	return v.md.Lockspace
}

func (v *LeasesVolume) Version() int {
	return v.md.Version
}

func (v *LeasesVolume) MTime() int64 {
	return v.md.MTime
}

// Lookup resolves resource to its lease. A lease whose record carries the
// updating flag is not usable and is reported as ErrLeaseUpdating.
func (v *LeasesVolume) Lookup(resource string) (LeaseInfo, error) {
	util.Debug("looking up lease %s in lockspace %s", resource, v.md.Lockspace)
	recnum, rec, err := v.index.LookupSlot(resource)
	if err != nil {
		return LeaseInfo{}, err
	}
	if rec.Updating {
		return LeaseInfo{}, fmt.Errorf("%w: %s", ErrLeaseUpdating, resource)
	}
	return v.leaseInfo(resource, recnum), nil
}

// Leases enumerates every occupied slot, including updating ones. When
// the same resource somehow occupies several slots only the first is
// reported; the duplicates are logged, since they mean the index and the
// resource area disagree.
func (v *LeasesVolume) Leases() (map[string]LeaseStatus, error) {
	util.Debug("listing leases in lockspace %s", v.md.Lockspace)
	leases := make(map[string]LeaseStatus)
	for recnum := 0; recnum < MaxRecords; recnum++ {
		rec, err := v.index.recordAt(recnum)
		if err != nil {
			return nil, err
		}
		if rec.IsFree() {
			continue
		}
		if _, ok := leases[rec.Resource]; ok {
			util.Warn("duplicate record for resource %s at slot %d in %s",
				rec.Resource, recnum, v.file.Name())
			continue
		}
		leases[rec.Resource] = LeaseStatus{
			Offset:   leaseOffset(recnum),
			Updating: rec.Updating,
		}
	}
	return leases, nil
}

// Add allocates the first free slot for resource, registers the resource
// with the lock manager and only then marks the record valid. A failure
// after the first flush leaves a durable updating record; such a lease is
// not usable until it is removed and added again, or the index rebuilt.
func (v *LeasesVolume) Add(resource string) (LeaseInfo, error) {
	if v.store == nil {
		return LeaseInfo{}, ErrReadOnly
	}
	if err := checkResourceName(resource); err != nil {
		return LeaseInfo{}, err
	}
	util.Info("adding lease %s in lockspace %s", resource, v.md.Lockspace)
	start := time.Now()

	if _, _, err := v.index.LookupSlot(resource); err == nil {
		return LeaseInfo{}, fmt.Errorf("%w: %s", ErrLeaseExists, resource)
	} else if !errors.Is(err, ErrNoSuchLease) {
		return LeaseInfo{}, err
	}
	recnum, err := v.index.FirstFreeSlot()
	if err != nil {
		return LeaseInfo{}, err
	}
	offset := leaseOffset(recnum)
	util.Debug("using slot %d offset %d for lease %s", recnum, offset, resource)

	if err := v.writeRecord(recnum, Record{Resource: resource, Updating: true}); err != nil {
		return LeaseInfo{}, err
	}
	disks := []sanlock.Disk{{Path: v.file.Name(), Offset: offset}}
	if err := v.store.WriteResource(v.md.Lockspace, resource, disks); err != nil {
		return LeaseInfo{}, fmt.Errorf("registering resource %s: %w", resource, err)
	}
	if err := v.writeRecord(recnum, Record{Resource: resource}); err != nil {
		return LeaseInfo{}, err
	}

	metrics.RecordOp("add", time.Since(start).Seconds())
	return v.leaseInfo(resource, recnum), nil
}

// Remove deletes resource's lease. The resource is invalidated at the
// lock manager by overwriting its identity with empty names, as there is
// no native delete. A failure after the first flush leaves a durable
// updating record until the remove is retried or the index rebuilt.
func (v *LeasesVolume) Remove(resource string) error {
	if v.store == nil {
		return ErrReadOnly
	}
	util.Info("removing lease %s in lockspace %s", resource, v.md.Lockspace)
	start := time.Now()
	recnum, _, err := v.index.LookupSlot(resource)
	if err != nil {
		return err
	}

	if err := v.writeRecord(recnum, Record{Resource: resource, Updating: true}); err != nil {
		return err
	}
	disks := []sanlock.Disk{{Path: v.file.Name(), Offset: leaseOffset(recnum)}}
	if err := v.store.WriteResource("", "", disks); err != nil {
		return fmt.Errorf("invalidating resource %s: %w", resource, err)
	}
	if err := v.writeRecord(recnum, Record{}); err != nil {
		return err
	}

	metrics.RecordOp("remove", time.Since(start).Seconds())
	return nil
}

// Close releases the volume. The backing file is closed only when the
// volume opened it itself.
func (v *LeasesVolume) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	if v.ownsFile {
		return v.file.Close()
	}
	return nil
}

func (v *LeasesVolume) leaseInfo(resource string, recnum int) LeaseInfo {
	return LeaseInfo{
		Lockspace: v.md.Lockspace,
		Resource:  resource,
		Path:      v.file.Name(),
		Offset:    leaseOffset(recnum),
	}
}

// writeRecord updates one record on storage and then in the cache: copy
// the containing block, change the record, flush the block, and commit to
// the cache only after the flush succeeded. A failed flush leaves the
// in-memory index exactly as it was.
func (v *LeasesVolume) writeRecord(recnum int, rec Record) error {
	block, err := v.index.CopyRecordBlock(recnum)
	if err != nil {
		return err
	}
	if err := block.WriteRecord(recnum, rec); err != nil {
		return err
	}
	if err := block.Dump(v.file); err != nil {
		metrics.IndexIOErrors.Inc()
		return err
	}
	return v.index.WriteRecord(recnum, rec)
}

func checkResourceName(resource string) error {
	if resource == "" {
		return fmt.Errorf("empty resource name")
	}
	if len(resource) > nameSize {
		return fmt.Errorf("resource name %q longer than %d bytes", resource, nameSize)
	}
	return nil
}
