package xlease

import "fmt"

// Record is one slot's entry in the index. An empty resource name marks a
// free slot; the updating flag marks a lease whose add or remove was not
// completed.
type Record struct {
	Resource string
	Updating bool
}

const recordUpdatingOffset = nameSize

// IsFree reports whether the record marks an unallocated slot.
func (r Record) IsFree() bool {
	return r.Resource == ""
}

// Bytes serializes r into RecordSize zero-padded bytes.
func (r Record) Bytes() ([]byte, error) {
	buf := make([]byte, RecordSize)
	if err := encodeName(buf[:nameSize], r.Resource); err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}
	if r.Updating {
		buf[recordUpdatingOffset] = 1
	}
	return buf, nil
}

// ParseRecord decodes one record. A record that cannot be decoded wraps
// ErrInvalidIndex, since it can only come from a corrupt index.
func ParseRecord(buf []byte) (Record, error) {
	if len(buf) < RecordSize {
		return Record{}, fmt.Errorf("%w: record truncated to %d bytes", ErrInvalidIndex, len(buf))
	}
	resource, err := parseName(buf[:nameSize])
	if err != nil {
		return Record{}, fmt.Errorf("%w: resource: %v", ErrInvalidIndex, err)
	}
	return Record{
		Resource: resource,
		Updating: buf[recordUpdatingOffset] != 0,
	}, nil
}
