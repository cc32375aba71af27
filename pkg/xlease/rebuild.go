package xlease

import (
	"fmt"
	"time"

	"github.com/openvol/xleases/pkg/directio"
	"github.com/openvol/xleases/pkg/metrics"
	"github.com/openvol/xleases/pkg/sanlock"
	"github.com/openvol/xleases/util"
)

// FormatIndex writes a fresh, empty index for lockspace to file. Existing
// records are lost; the volume must not be in use by anyone.
func FormatIndex(lockspace string, file directio.File) error {
	util.Info("formatting index for lockspace %s on %s", lockspace, file.Name())
	arena := directio.AlignedBuffer(IndexSize)
	return writeIndex(lockspace, file, arena)
}

// RebuildIndex reconstructs the index from the resource headers in the
// lease slots, ignoring any existing index content. Slots holding no valid
// resource header or a resource of another lockspace come out free. The
// volume must not be in use while rebuilding.
func RebuildIndex(lockspace string, file directio.File, store sanlock.ResourceStore) error {
	util.Info("rebuilding index for lockspace %s on %s", lockspace, file.Name())
	start := time.Now()
	if store == nil {
		return ErrReadOnly
	}

	arena := directio.AlignedBuffer(IndexSize)
	found := 0
	for recnum := 0; recnum < MaxRecords; recnum++ {
		info, err := store.ReadResource(file.Name(), leaseOffset(recnum))
		if err != nil {
			if sanlock.IsNotResource(err) {
				continue
			}
			return fmt.Errorf("reading resource at slot %d: %w", recnum, err)
		}
		if info.Lockspace != lockspace {
			util.Debug("skipping resource %s of lockspace %s at slot %d",
				info.Resource, info.Lockspace, recnum)
			continue
		}
		data, err := (Record{Resource: info.Resource}).Bytes()
		if err != nil {
			return fmt.Errorf("slot %d resource %q: %w", recnum, info.Resource, err)
		}
		copy(arena[recnum*RecordSize:], data)
		found++
	}

	if err := writeIndex(lockspace, file, arena); err != nil {
		return err
	}
	util.Info("rebuilt index on %s with %d leases", file.Name(), found)
	metrics.RecordOp("rebuild", time.Since(start).Seconds())
	return nil
}

// writeIndex replaces the whole on-disk index with arena. The header goes
// out first with the updating flag set and last with it clear, so a crash
// anywhere in between leaves an index that fails validation instead of one
// mixing old and new records.
func writeIndex(lockspace string, file directio.File, arena []byte) error {
	md := NewMetadata(lockspace)
	md.Updating = true
	if err := writeMetadata(file, md); err != nil {
		return err
	}
	if err := file.Pwrite(recordAreaBase, arena); err != nil {
		metrics.IndexIOErrors.Inc()
		return fmt.Errorf("writing record area: %w", err)
	}
	md.Updating = false
	return writeMetadata(file, md)
}

func writeMetadata(file directio.File, md IndexMetadata) error {
	block, err := md.Bytes()
	if err != nil {
		return fmt.Errorf("encoding index header: %w", err)
	}
	if err := file.Pwrite(IndexBase, block); err != nil {
		metrics.IndexIOErrors.Inc()
		return fmt.Errorf("writing index header: %w", err)
	}
	return nil
}
