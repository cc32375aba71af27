package xlease_test

import (
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvol/xleases/pkg/xlease"
)

func validHeader(t *testing.T) []byte {
	t.Helper()
	md := xlease.IndexMetadata{
		Version:   xlease.IndexVersion,
		Lockspace: "lockspace",
		MTime:     123456789,
	}
	block, err := md.Bytes()
	require.NoError(t, err)
	return block
}

func TestMetadataRoundTrip(t *testing.T) {
	md := xlease.IndexMetadata{
		Version:   xlease.IndexVersion,
		Lockspace: "lockspace",
		MTime:     123456789,
	}
	block, err := md.Bytes()
	require.NoError(t, err)
	require.Len(t, block, xlease.BlockSize)

	parsed, err := xlease.ParseMetadata(block)
	require.NoError(t, err)
	assert.Equal(t, md, parsed)
}

func TestMetadataLayout(t *testing.T) {
	md := xlease.IndexMetadata{Version: 1, Lockspace: "ls", MTime: 123456789}
	block, err := md.Bytes()
	require.NoError(t, err)

	assert.Equal(t, []byte{0x12, 0x15, 0x20, 0x16}, block[0:4])
	assert.Equal(t, xlease.IndexMagic, binary.BigEndian.Uint32(block[0:4]))
	assert.Equal(t, byte(1), block[4])
	assert.Equal(t, make([]byte, 5), block[5:10])
	assert.Equal(t, append([]byte("ls"), make([]byte, 46)...), block[10:58])
	assert.Equal(t, byte(0), block[58])
	assert.Equal(t, []byte("0123456789"), block[59:69])
	assert.Equal(t, make([]byte, xlease.BlockSize-69), block[69:])
}

func TestMetadataUpdatingSerializable(t *testing.T) {
	md := xlease.IndexMetadata{Version: 1, Lockspace: "ls", MTime: 1, Updating: true}
	block, err := md.Bytes()
	require.NoError(t, err)
	assert.Equal(t, byte(1), block[58])

	_, err = xlease.ParseMetadata(block)
	assert.ErrorIs(t, err, xlease.ErrInvalidIndex)
}

func TestNewMetadata(t *testing.T) {
	before := time.Now().Unix()
	md := xlease.NewMetadata("lockspace")
	after := time.Now().Unix()

	assert.Equal(t, xlease.IndexVersion, md.Version)
	assert.Equal(t, "lockspace", md.Lockspace)
	assert.False(t, md.Updating)
	assert.GreaterOrEqual(t, md.MTime, before)
	assert.LessOrEqual(t, md.MTime, after)
}

func TestMetadataBytesErrors(t *testing.T) {
	tests := []struct {
		name string
		md   xlease.IndexMetadata
	}{
		{"empty lockspace", xlease.IndexMetadata{Version: 1, MTime: 1}},
		{"long lockspace", xlease.IndexMetadata{Version: 1, Lockspace: strings.Repeat("x", 49), MTime: 1}},
		{"non-ascii lockspace", xlease.IndexMetadata{Version: 1, Lockspace: "lock\x01space", MTime: 1}},
		{"negative mtime", xlease.IndexMetadata{Version: 1, Lockspace: "ls", MTime: -1}},
		{"huge mtime", xlease.IndexMetadata{Version: 1, Lockspace: "ls", MTime: 10000000000}},
		{"negative version", xlease.IndexMetadata{Version: -1, Lockspace: "ls", MTime: 1}},
		{"huge version", xlease.IndexMetadata{Version: 256, Lockspace: "ls", MTime: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.md.Bytes()
			assert.Error(t, err)
		})
	}
}

func TestParseMetadataErrors(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(block []byte)
	}{
		{"zero magic", func(b []byte) { copy(b[0:4], make([]byte, 4)) }},
		{"wrong magic", func(b []byte) { b[0] = 0x99 }},
		{"wrong version", func(b []byte) { b[4] = 0xff }},
		{"version zero", func(b []byte) { b[4] = 0 }},
		{"corrupt lockspace", func(b []byte) { b[10] = 0xf0 }},
		{"nul in lockspace", func(b []byte) { b[10] = 0 }},
		{"empty lockspace", func(b []byte) { copy(b[10:58], make([]byte, 48)) }},
		{"bad mtime", func(b []byte) { copy(b[59:69], "not a numb") }},
		{"negative mtime", func(b []byte) { copy(b[59:69], "-123456789") }},
		{"updating", func(b []byte) { b[58] = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := validHeader(t)
			tt.corrupt(block)
			_, err := xlease.ParseMetadata(block)
			assert.ErrorIs(t, err, xlease.ErrInvalidIndex)
		})
	}

	t.Run("truncated", func(t *testing.T) {
		_, err := xlease.ParseMetadata(validHeader(t)[:100])
		assert.ErrorIs(t, err, xlease.ErrInvalidIndex)
	})
}

func TestMetadataUnsupportedVersionEncodable(t *testing.T) {
	// Serializing a future version must work so tests and tools can write
	// one; parsing it back must fail.
	md := xlease.IndexMetadata{Version: 2, Lockspace: "ls", MTime: 1}
	block, err := md.Bytes()
	require.NoError(t, err)
	_, err = xlease.ParseMetadata(block)
	assert.ErrorIs(t, err, xlease.ErrInvalidIndex)
}
