package raw

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/taosdata/taosws-go/common"
	"github.com/taosdata/taosws-go/common/raw/views"
)

// DecodeV2 decodes a headerless v2 block. Unlike v3, v2 carries no schema
// of its own: the caller supplies fields (name/type/declared width), an
// externally-known per-column byte stride, and a row count, exactly as
// the reply metadata that preceded this block on the wire would.
//
// The stride for a fixed-width column always equals its type's natural
// size; for VarChar/NChar/Json it is the fixed per-row slot width
// (typically the declared field width plus a 2-byte length prefix) and
// can differ from fields[i].Bytes, which only records the column's
// declared schema width.
//
// v2 columns are dense fixed-stride slots with no null bitmap; nullity is
// signalled by a type-specific sentinel value (fixed-width columns) or a
// reserved length+payload marker (variable-length columns) occupying the
// slot.
func DecodeV2(data []byte, fields []common.Field, strides []uint32, rows int, precision common.Precision) (*RawBlock, error) {
	if len(fields) != len(strides) {
		return nil, fmt.Errorf("raw: v2 fields/strides length mismatch: %w", ErrDecodeInvariant)
	}
	cols := len(fields)
	schemas := make([]common.ColSchema, cols)
	lengths := make([]uint32, cols)
	columns := make([]views.ColumnView, cols)

	offset := 0
	for col, f := range fields {
		schemas[col] = common.ColSchema{Ty: f.Ty, Len: f.Bytes}
		stride := int(strides[col])

		if width, ok := f.Ty.FixedWidth(); ok {
			end := offset + rows*width
			if end > len(data) {
				return nil, fmt.Errorf("raw: v2 column %d payload truncated: %w", col, ErrDecodeInvariant)
			}
			raw := data[offset:end]
			nulls := views.NewNullsMut(rows)
			for r := 0; r < rows; r++ {
				if isFixedNullV2(f.Ty, raw[r*width:(r+1)*width]) {
					nulls.SetNull(r)
				}
			}
			cv, err := buildFixedView(f.Ty, nulls.IntoNullBits(), raw, precision)
			if err != nil {
				return nil, err
			}
			columns[col] = cv
			lengths[col] = uint32(len(raw))
			offset = end
			continue
		}

		switch f.Ty {
		case common.VarChar, common.NChar, common.Json:
			end := offset + rows*stride
			if end > len(data) {
				return nil, fmt.Errorf("raw: v2 column %d payload truncated: %w", col, ErrDecodeInvariant)
			}
			region := data[offset:end]
			offs := v2SlotOffsets(f.Ty, region, rows, stride)
			var cv views.ColumnView
			switch f.Ty {
			case common.VarChar:
				cv = views.NewVarCharView(offs, region)
			case common.NChar:
				cv = views.NewNCharView(offs, region, false)
			case common.Json:
				cv = views.NewJsonView(offs, region)
			}
			columns[col] = cv
			lengths[col] = uint32(len(region))
			offset = end
		case common.VarBinary, common.Decimal, common.Blob, common.MediumBlob:
			return nil, fmt.Errorf("raw: v2 column %d type %s: %w", col, f.Ty, ErrUnsupportedType)
		default:
			return nil, fmt.Errorf("raw: v2 column %d unknown type %d: %w", col, f.Ty, ErrDecodeInvariant)
		}
	}

	names := make([]string, cols)
	for i, f := range fields {
		names[i] = f.Name
	}

	return &RawBlock{
		Data:       data,
		Rows:       rows,
		Precision:  precision,
		Schemas:    schemas,
		Lengths:    lengths,
		Columns:    columns,
		FieldNames: names,
	}, nil
}

// EncodeV2 re-emits the block as dense fixed-stride v2 slots per fields
// and strides, the inverse of DecodeV2.
func (b *RawBlock) EncodeV2(fields []common.Field, strides []uint32) ([]byte, error) {
	if len(fields) != b.NCols() || len(strides) != b.NCols() {
		return nil, fmt.Errorf("raw: v2 field/stride count mismatch: %w", ErrDecodeInvariant)
	}
	rows := b.Rows
	var out []byte
	for col, f := range fields {
		cv := b.Columns[col]
		if width, ok := f.Ty.FixedWidth(); ok {
			fr, ok := cv.(fixedRaw)
			if !ok {
				return nil, fmt.Errorf("raw: v2 column %d type %s has no raw encoder: %w", col, f.Ty, ErrUnsupportedType)
			}
			nulls := fr.RawNulls()
			data := fr.RawData()
			for r := 0; r < rows; r++ {
				if nulls.IsNull(r) {
					out = append(out, sentinelBytes(f.Ty, width)...)
				} else {
					out = append(out, data[r*width:(r+1)*width]...)
				}
			}
			continue
		}

		switch f.Ty {
		case common.VarChar, common.NChar, common.Json:
			vr, ok := cv.(varRaw)
			if !ok {
				return nil, fmt.Errorf("raw: v2 column %d type %s has no raw encoder: %w", col, f.Ty, ErrUnsupportedType)
			}
			stride := int(strides[col])
			offs := vr.RawOffsets()
			data := vr.RawData()
			for r := 0; r < rows; r++ {
				slot := make([]byte, stride)
				if offs.IsNull(r) {
					writeV2NullMarker(f.Ty, slot)
				} else {
					payload, _ := offs.Payload(r, data)
					binary.LittleEndian.PutUint16(slot[0:2], uint16(len(payload)))
					copy(slot[2:], payload)
				}
				out = append(out, slot...)
			}
		default:
			return nil, fmt.Errorf("raw: v2 column %d type %s has no raw encoder: %w", col, f.Ty, ErrUnsupportedType)
		}
	}
	return out, nil
}

func buildFixedView(ty common.Ty, nulls views.NullBits, raw []byte, precision common.Precision) (views.ColumnView, error) {
	switch ty {
	case common.Bool:
		return views.NewBoolView(nulls, raw), nil
	case common.TinyInt:
		return views.NewTinyIntView(nulls, raw), nil
	case common.UTinyInt:
		return views.NewUTinyIntView(nulls, raw), nil
	case common.SmallInt:
		return views.NewSmallIntView(nulls, raw), nil
	case common.USmallInt:
		return views.NewUSmallIntView(nulls, raw), nil
	case common.Int:
		return views.NewIntView(nulls, raw), nil
	case common.UInt:
		return views.NewUIntView(nulls, raw), nil
	case common.BigInt:
		return views.NewBigIntView(nulls, raw), nil
	case common.UBigInt:
		return views.NewUBigIntView(nulls, raw), nil
	case common.Float:
		return views.NewFloatView(nulls, raw), nil
	case common.Double:
		return views.NewDoubleView(nulls, raw), nil
	case common.Timestamp:
		return views.NewTimestampView(nulls, raw, precision), nil
	default:
		return nil, fmt.Errorf("raw: type %s is not fixed-width: %w", ty, ErrDecodeInvariant)
	}
}

// isFixedNullV2 reports whether raw (exactly FixedWidth(ty) bytes) holds
// the type's v2 null sentinel.
func isFixedNullV2(ty common.Ty, raw []byte) bool {
	switch ty {
	case common.Bool:
		return raw[0] == 0x02
	case common.TinyInt:
		return int8(raw[0]) == -128
	case common.UTinyInt:
		return raw[0] == 0xFF
	case common.SmallInt:
		return int16(binary.LittleEndian.Uint16(raw)) == -32768
	case common.USmallInt:
		return binary.LittleEndian.Uint16(raw) == 0xFFFF
	case common.Int:
		return int32(binary.LittleEndian.Uint32(raw)) == math.MinInt32
	case common.UInt:
		return binary.LittleEndian.Uint32(raw) == 0xFFFFFFFF
	case common.BigInt, common.Timestamp:
		return int64(binary.LittleEndian.Uint64(raw)) == math.MinInt64
	case common.UBigInt:
		return binary.LittleEndian.Uint64(raw) == 0xFFFFFFFFFFFFFFFF
	case common.Float:
		return binary.LittleEndian.Uint32(raw) == 0x7FF00000
	case common.Double:
		return binary.LittleEndian.Uint64(raw) == 0x7FFFFF0000000000
	default:
		return false
	}
}

// sentinelBytes returns the width-byte v2 null sentinel for ty.
func sentinelBytes(ty common.Ty, width int) []byte {
	b := make([]byte, width)
	switch ty {
	case common.Bool:
		b[0] = 0x02
	case common.TinyInt:
		b[0] = 0x80
	case common.UTinyInt:
		b[0] = 0xFF
	case common.SmallInt:
		binary.LittleEndian.PutUint16(b, 0x8000)
	case common.USmallInt:
		binary.LittleEndian.PutUint16(b, 0xFFFF)
	case common.Int:
		binary.LittleEndian.PutUint32(b, 0x80000000)
	case common.UInt:
		binary.LittleEndian.PutUint32(b, 0xFFFFFFFF)
	case common.BigInt, common.Timestamp:
		binary.LittleEndian.PutUint64(b, 0x8000000000000000)
	case common.UBigInt:
		binary.LittleEndian.PutUint64(b, 0xFFFFFFFFFFFFFFFF)
	case common.Float:
		binary.LittleEndian.PutUint32(b, 0x7FF00000)
	case common.Double:
		binary.LittleEndian.PutUint64(b, 0x7FFFFF0000000000)
	}
	return b
}

// writeV2NullMarker writes the VarChar/NChar/Json v2 null marker into slot
// (already zeroed, stride bytes long).
func writeV2NullMarker(ty common.Ty, slot []byte) {
	switch ty {
	case common.VarChar:
		binary.LittleEndian.PutUint16(slot[0:2], 1)
		slot[2] = 0xFF
	case common.NChar, common.Json:
		binary.LittleEndian.PutUint16(slot[0:2], 4)
		binary.LittleEndian.PutUint32(slot[2:6], 0xFFFFFFFF)
	}
}

// v2SlotOffsets builds an offsets vector pointing directly into region, one
// dense stride-byte slot per row: offs[r] = r*stride unless that row's
// slot holds the type's null marker, in which case offs[r] = -1. This
// lets a v2 column share the same offsets+payload view implementation
// a v3 VarChar/NChar/Json column uses, with no repacking.
func v2SlotOffsets(ty common.Ty, region []byte, rows, stride int) views.Offsets {
	offs := make(views.Offsets, rows)
	for r := 0; r < rows; r++ {
		o := r * stride
		slot := region[o : o+stride]
		length := int(binary.LittleEndian.Uint16(slot[0:2]))
		if isV2NullMarker(ty, length, slot[2:]) {
			offs[r] = -1
		} else {
			offs[r] = int32(o)
		}
	}
	return offs
}

func isV2NullMarker(ty common.Ty, length int, rest []byte) bool {
	switch ty {
	case common.VarChar:
		return length == 1 && len(rest) >= 1 && rest[0] == 0xFF
	case common.NChar, common.Json:
		return length == 4 && len(rest) >= 4 && binary.LittleEndian.Uint32(rest[:4]) == 0xFFFFFFFF
	default:
		return false
	}
}
