package views

import "encoding/binary"

// Offsets is the offsets vector for a variable-length column: one signed
// 32-bit offset per row, pointing at a 2-byte little-endian length prefix
// followed by that many payload bytes in the column's data region. A value
// of -1 marks the row null.
type Offsets []int32

const nullOffset = -1

// OffsetsFromBytes decodes a `4*rows`-byte little-endian i32 array, as
// found verbatim in a v3 VarChar/NChar/Json column.
func OffsetsFromBytes(b []byte) Offsets {
	n := len(b) / 4
	out := make(Offsets, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Bytes re-encodes the offsets vector to its little-endian wire form.
func (o Offsets) Bytes() []byte {
	out := make([]byte, len(o)*4)
	for i, v := range o {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
	}
	return out
}

// IsNull reports whether row's offset is the null sentinel.
func (o Offsets) IsNull(row int) bool {
	return o[row] == nullOffset
}

// Payload returns the length-prefixed payload bytes for row, given the
// column's data region. Returns (nil, false) for a null row.
func (o Offsets) Payload(row int, data []byte) ([]byte, bool) {
	if o.IsNull(row) {
		return nil, false
	}
	off := int(o[row])
	n := int(binary.LittleEndian.Uint16(data[off : off+2]))
	return data[off+2 : off+2+n], true
}
