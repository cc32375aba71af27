package xlease

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/openvol/xleases/pkg/directio"
)

// IndexMagic marks the header block of a lease index, stored big-endian at
// the start of the block.
const IndexMagic uint32 = 0x12152016

// Header block field layout.
const (
	magicOffset     = 0
	versionOffset   = 4
	lockspaceOffset = 10
	updatingOffset  = 58
	mtimeOffset     = 59

	mtimeSize = 10
)

// IndexMetadata is the decoded header block of an index.
type IndexMetadata struct {
	Version   int
	Lockspace string
	MTime     int64
	Updating  bool
}

// NewMetadata returns metadata for a freshly written index, stamped with
// the current time.
func NewMetadata(lockspace string) IndexMetadata {
	return IndexMetadata{
		Version:   IndexVersion,
		Lockspace: lockspace,
		MTime:     time.Now().Unix(),
	}
}

// Bytes serializes m into one aligned, zero-padded block. Only values that
// cannot be represented in the on-disk fields are rejected; whether the
// result would parse back as a valid index is the parser's business.
func (m IndexMetadata) Bytes() ([]byte, error) {
	if m.Version < 0 || m.Version > 0xff {
		return nil, fmt.Errorf("index version %d out of range", m.Version)
	}
	if m.Lockspace == "" {
		return nil, fmt.Errorf("empty lockspace name")
	}
	if m.MTime < 0 || m.MTime >= 1e10 {
		return nil, fmt.Errorf("mtime %d not encodable in %d digits", m.MTime, mtimeSize)
	}

	block := directio.AlignedBuffer(BlockSize)
	binary.BigEndian.PutUint32(block[magicOffset:], IndexMagic)
	block[versionOffset] = byte(m.Version)
	if err := encodeName(block[lockspaceOffset:lockspaceOffset+nameSize], m.Lockspace); err != nil {
		return nil, fmt.Errorf("lockspace: %w", err)
	}
	if m.Updating {
		block[updatingOffset] = 1
	}
	copy(block[mtimeOffset:], fmt.Sprintf("%0*d", mtimeSize, m.MTime))
	return block, nil
}

// ParseMetadata decodes and validates a header block. Every failure wraps
// ErrInvalidIndex: an index with a bad header must be rebuilt, not read
// around.
func ParseMetadata(block []byte) (IndexMetadata, error) {
	if len(block) < BlockSize {
		return IndexMetadata{}, fmt.Errorf("%w: header block truncated to %d bytes", ErrInvalidIndex, len(block))
	}
	if magic := binary.BigEndian.Uint32(block[magicOffset:]); magic != IndexMagic {
		return IndexMetadata{}, fmt.Errorf("%w: wrong magic %#08x", ErrInvalidIndex, magic)
	}
	version := int(block[versionOffset])
	if version != IndexVersion {
		return IndexMetadata{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidIndex, version)
	}
	lockspace, err := parseName(block[lockspaceOffset : lockspaceOffset+nameSize])
	if err != nil {
		return IndexMetadata{}, fmt.Errorf("%w: lockspace: %v", ErrInvalidIndex, err)
	}
	if lockspace == "" {
		return IndexMetadata{}, fmt.Errorf("%w: empty lockspace", ErrInvalidIndex)
	}
	mtimeField := block[mtimeOffset : mtimeOffset+mtimeSize]
	for _, c := range mtimeField {
		if c < '0' || c > '9' {
			return IndexMetadata{}, fmt.Errorf("%w: bad mtime %q", ErrInvalidIndex, mtimeField)
		}
	}
	mtime, err := strconv.ParseInt(string(mtimeField), 10, 64)
	if err != nil {
		return IndexMetadata{}, fmt.Errorf("%w: bad mtime %q", ErrInvalidIndex, mtimeField)
	}
	if block[updatingOffset] != 0 {
		// A crash mid-format or mid-rebuild left the flag set; the record
		// area cannot be trusted.
		return IndexMetadata{}, fmt.Errorf("%w: index write was interrupted", ErrInvalidIndex)
	}
	return IndexMetadata{Version: version, Lockspace: lockspace, MTime: mtime}, nil
}
