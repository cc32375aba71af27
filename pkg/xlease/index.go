package xlease

import (
	"fmt"

	"github.com/openvol/xleases/pkg/directio"
)

// recordAreaBase is the offset of the first record block.
const recordAreaBase = IndexBase + BlockSize

// VolumeIndex caches the on-disk record area one block at a time and
// resolves resource names to record numbers. Blocks are read on first use
// and mutated only through WriteRecord, after the containing block was
// flushed, so the cache never runs ahead of storage.
type VolumeIndex struct {
	file   directio.File
	blocks map[int][]byte
}

// NewVolumeIndex prepares a lazily populated index over file, verifying
// that the file is large enough to hold the whole index region.
func NewVolumeIndex(file directio.File) (*VolumeIndex, error) {
	size, err := file.Size()
	if err != nil {
		return nil, fmt.Errorf("checking size of %s: %w", file.Name(), err)
	}
	if size < MinVolumeSize {
		return nil, fmt.Errorf("%w: volume %s truncated to %d bytes, need %d",
			ErrInvalidIndex, file.Name(), size, int64(MinVolumeSize))
	}
	return &VolumeIndex{
		file:   file,
		blocks: make(map[int][]byte),
	}, nil
}

func blockFor(recnum int) (blockNum, offsetInBlock int) {
	return recnum / RecordsPerBlock, (recnum % RecordsPerBlock) * RecordSize
}

// loadBlock returns the cached block, reading it from storage on first
// use.
func (x *VolumeIndex) loadBlock(blockNum int) ([]byte, error) {
	if block, ok := x.blocks[blockNum]; ok {
		return block, nil
	}
	block := directio.AlignedBuffer(BlockSize)
	offset := recordAreaBase + int64(blockNum)*BlockSize
	n, err := x.file.Pread(offset, block)
	if err != nil {
		return nil, fmt.Errorf("reading index block %d: %w", blockNum, err)
	}
	if n < BlockSize {
		return nil, fmt.Errorf("%w: short read of index block %d: %d bytes", ErrInvalidIndex, blockNum, n)
	}
	x.blocks[blockNum] = block
	return block, nil
}

// recordAt decodes the record at recnum.
func (x *VolumeIndex) recordAt(recnum int) (Record, error) {
	blockNum, off := blockFor(recnum)
	block, err := x.loadBlock(blockNum)
	if err != nil {
		return Record{}, err
	}
	rec, err := ParseRecord(block[off : off+RecordSize])
	if err != nil {
		return Record{}, fmt.Errorf("record %d: %w", recnum, err)
	}
	return rec, nil
}

// LookupSlot finds the slot holding resource, scanning records in slot
// order and returning the first match. Free records never match.
func (x *VolumeIndex) LookupSlot(resource string) (int, Record, error) {
	if resource == "" {
		return 0, Record{}, fmt.Errorf("%w: empty resource name", ErrNoSuchLease)
	}
	for recnum := 0; recnum < MaxRecords; recnum++ {
		rec, err := x.recordAt(recnum)
		if err != nil {
			return 0, Record{}, err
		}
		if rec.Resource == resource {
			return recnum, rec, nil
		}
	}
	return 0, Record{}, fmt.Errorf("%w: %s", ErrNoSuchLease, resource)
}

// FirstFreeSlot returns the lowest-numbered free slot, so freed slots are
// reused before the index grows towards its record cap.
func (x *VolumeIndex) FirstFreeSlot() (int, error) {
	for recnum := 0; recnum < MaxRecords; recnum++ {
		rec, err := x.recordAt(recnum)
		if err != nil {
			return 0, err
		}
		if rec.IsFree() {
			return recnum, nil
		}
	}
	return 0, ErrNoSpace
}

// WriteRecord commits rec to the in-memory cache. Call only after the
// containing block was dumped to storage.
func (x *VolumeIndex) WriteRecord(recnum int, rec Record) error {
	blockNum, off := blockFor(recnum)
	block, err := x.loadBlock(blockNum)
	if err != nil {
		return err
	}
	data, err := rec.Bytes()
	if err != nil {
		return fmt.Errorf("record %d: %w", recnum, err)
	}
	copy(block[off:], data)
	return nil
}

// RecordBlock is a copy-on-write snapshot of one index block. A record
// mutation goes into a snapshot and reaches storage as a single aligned
// write, so the unrelated records sharing the block are never exposed
// half-written and the cache stays untouched until the write succeeds.
type RecordBlock struct {
	blockNum int
	buf      []byte
}

// CopyRecordBlock snapshots the block containing recnum.
func (x *VolumeIndex) CopyRecordBlock(recnum int) (*RecordBlock, error) {
	blockNum, _ := blockFor(recnum)
	block, err := x.loadBlock(blockNum)
	if err != nil {
		return nil, err
	}
	buf := directio.AlignedBuffer(BlockSize)
	copy(buf, block)
	return &RecordBlock{blockNum: blockNum, buf: buf}, nil
}

// WriteRecord writes rec at recnum inside the snapshot. recnum must fall
// within the snapshotted block.
func (b *RecordBlock) WriteRecord(recnum int, rec Record) error {
	blockNum, off := blockFor(recnum)
	if blockNum != b.blockNum {
		return fmt.Errorf("record %d outside block %d", recnum, b.blockNum)
	}
	data, err := rec.Bytes()
	if err != nil {
		return fmt.Errorf("record %d: %w", recnum, err)
	}
	copy(b.buf[off:], data)
	return nil
}

// Dump flushes the snapshot to storage in one aligned write.
func (b *RecordBlock) Dump(file directio.File) error {
	offset := recordAreaBase + int64(b.blockNum)*BlockSize
	if err := file.Pwrite(offset, b.buf); err != nil {
		return fmt.Errorf("writing index block %d: %w", b.blockNum, err)
	}
	return nil
}
