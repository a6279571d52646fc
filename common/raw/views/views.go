package views

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf8"

	"github.com/taosdata/taosws-go/common"
)

// ColumnView is the tagged variant over a decoded block's columns. Every
// implementation is immutable and backed by slices of the block's shared
// byte buffer — no copying happens on decode.
type ColumnView interface {
	Type() common.Ty
	Len() int
	IsNull(row int) bool
	// Value returns the row's value boxed as the matching Go type, or nil
	// when the row is null.
	Value(row int) any
}

func boundsOK(row, n int) bool { return row >= 0 && row < n }

// fixedView is the shared shape of every fixed-width numeric/bool column:
// a null bitmap plus a raw little-endian payload slice.
type fixedView struct {
	nulls NullBits
	data  []byte
	ty    common.Ty
	width int
}

func (v fixedView) Type() common.Ty { return v.ty }
func (v fixedView) Len() int        { return len(v.data) / v.width }
func (v fixedView) IsNull(row int) bool {
	if !boundsOK(row, v.Len()) {
		return true
	}
	return v.nulls.IsNull(row)
}

func (v fixedView) elem(row int) []byte {
	return v.data[row*v.width : (row+1)*v.width]
}

// RawNulls returns the column's null bitmap, for re-encoding.
func (v fixedView) RawNulls() NullBits { return v.nulls }

// RawData returns the column's raw fixed-width payload bytes.
func (v fixedView) RawData() []byte { return v.data }

type BoolView struct{ fixedView }

func NewBoolView(nulls NullBits, data []byte) BoolView {
	return BoolView{fixedView{nulls, data, common.Bool, 1}}
}
func (v BoolView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return v.elem(row)[0] != 0
}

type TinyIntView struct{ fixedView }

func NewTinyIntView(nulls NullBits, data []byte) TinyIntView {
	return TinyIntView{fixedView{nulls, data, common.TinyInt, 1}}
}
func (v TinyIntView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return int8(v.elem(row)[0])
}

type UTinyIntView struct{ fixedView }

func NewUTinyIntView(nulls NullBits, data []byte) UTinyIntView {
	return UTinyIntView{fixedView{nulls, data, common.UTinyInt, 1}}
}
func (v UTinyIntView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return v.elem(row)[0]
}

type SmallIntView struct{ fixedView }

func NewSmallIntView(nulls NullBits, data []byte) SmallIntView {
	return SmallIntView{fixedView{nulls, data, common.SmallInt, 2}}
}
func (v SmallIntView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return int16(binary.LittleEndian.Uint16(v.elem(row)))
}

type USmallIntView struct{ fixedView }

func NewUSmallIntView(nulls NullBits, data []byte) USmallIntView {
	return USmallIntView{fixedView{nulls, data, common.USmallInt, 2}}
}
func (v USmallIntView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return binary.LittleEndian.Uint16(v.elem(row))
}

type IntView struct{ fixedView }

func NewIntView(nulls NullBits, data []byte) IntView {
	return IntView{fixedView{nulls, data, common.Int, 4}}
}
func (v IntView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return int32(binary.LittleEndian.Uint32(v.elem(row)))
}

type UIntView struct{ fixedView }

func NewUIntView(nulls NullBits, data []byte) UIntView {
	return UIntView{fixedView{nulls, data, common.UInt, 4}}
}
func (v UIntView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return binary.LittleEndian.Uint32(v.elem(row))
}

type BigIntView struct{ fixedView }

func NewBigIntView(nulls NullBits, data []byte) BigIntView {
	return BigIntView{fixedView{nulls, data, common.BigInt, 8}}
}
func (v BigIntView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return int64(binary.LittleEndian.Uint64(v.elem(row)))
}

type UBigIntView struct{ fixedView }

func NewUBigIntView(nulls NullBits, data []byte) UBigIntView {
	return UBigIntView{fixedView{nulls, data, common.UBigInt, 8}}
}
func (v UBigIntView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return binary.LittleEndian.Uint64(v.elem(row))
}

type FloatView struct{ fixedView }

func NewFloatView(nulls NullBits, data []byte) FloatView {
	return FloatView{fixedView{nulls, data, common.Float, 4}}
}
func (v FloatView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(v.elem(row)))
}

type DoubleView struct{ fixedView }

func NewDoubleView(nulls NullBits, data []byte) DoubleView {
	return DoubleView{fixedView{nulls, data, common.Double, 8}}
}
func (v DoubleView) Value(row int) any {
	if v.IsNull(row) {
		return nil
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.elem(row)))
}

// TimestampView carries a precision alongside the raw epoch-tick payload.
type TimestampView struct {
	fixedView
	precision common.Precision
}

func NewTimestampView(nulls NullBits, data []byte, precision common.Precision) TimestampView {
	return TimestampView{fixedView{nulls, data, common.Timestamp, 8}, precision}
}

func (v TimestampView) Precision() common.Precision { return v.precision }

// Raw returns the row's raw epoch-tick count in the view's precision.
func (v TimestampView) Raw(row int) (int64, bool) {
	if v.IsNull(row) {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(v.elem(row))), true
}

func (v TimestampView) Value(row int) any {
	raw, ok := v.Raw(row)
	if !ok {
		return nil
	}
	return v.Time(raw)
}

// Time converts a raw epoch-tick count in this view's precision to a
// time.Time in UTC.
func (v TimestampView) Time(raw int64) time.Time {
	div := v.precision.Divisor()
	sec := raw / div
	rem := raw % div
	nsecPerUnit := int64(1_000_000_000) / div
	return time.Unix(sec, rem*nsecPerUnit).UTC()
}

// varView is the shared shape of VarChar/NChar/Json: an offsets vector
// plus a payload region.
type varView struct {
	offsets Offsets
	data    []byte
	ty      common.Ty
}

func (v varView) Type() common.Ty { return v.ty }
func (v varView) Len() int        { return len(v.offsets) }
func (v varView) IsNull(row int) bool {
	if !boundsOK(row, v.Len()) {
		return true
	}
	return v.offsets.IsNull(row)
}
func (v varView) bytes(row int) ([]byte, bool) {
	if !boundsOK(row, v.Len()) {
		return nil, false
	}
	return v.offsets.Payload(row, v.data)
}

// RawOffsets returns the column's offsets vector, for re-encoding.
func (v varView) RawOffsets() Offsets { return v.offsets }

// RawData returns the column's raw payload bytes.
func (v varView) RawData() []byte { return v.data }

type VarCharView struct{ varView }

func NewVarCharView(offsets Offsets, data []byte) VarCharView {
	return VarCharView{varView{offsets, data, common.VarChar}}
}
func (v VarCharView) Value(row int) any {
	b, ok := v.bytes(row)
	if !ok {
		return nil
	}
	return string(b)
}

// NCharView holds either UTF-8 (v2, IsChars=false) or UTF-32-LE (v3,
// IsChars=true) payloads per row.
type NCharView struct {
	varView
	IsChars bool
}

func NewNCharView(offsets Offsets, data []byte, isChars bool) NCharView {
	return NCharView{varView{offsets, data, common.NChar}, isChars}
}
func (v NCharView) Value(row int) any {
	b, ok := v.bytes(row)
	if !ok {
		return nil
	}
	if !v.IsChars {
		return string(b)
	}
	runes := make([]rune, 0, len(b)/4)
	for i := 0; i+4 <= len(b); i += 4 {
		cp := binary.LittleEndian.Uint32(b[i:])
		runes = append(runes, rune(cp))
	}
	return string(runes)
}

// utf32LEFromString is the inverse of NCharView's UTF-32-LE decode.
func utf32LEFromString(s string) []byte {
	out := make([]byte, 0, utf8.RuneCountInString(s)*4)
	buf := make([]byte, 4)
	for _, r := range s {
		if r > utf8.MaxRune {
			r = utf8.RuneError
		}
		binary.LittleEndian.PutUint32(buf, uint32(r))
		out = append(out, buf...)
	}
	return out
}

// UTF32LEBytes exposes utf32LEFromString. The encoders in package raw do
// not call it: they copy NChar payload bytes through unchanged.
func UTF32LEBytes(s string) []byte { return utf32LEFromString(s) }

type JsonView struct{ varView }

func NewJsonView(offsets Offsets, data []byte) JsonView {
	return JsonView{varView{offsets, data, common.Json}}
}
func (v JsonView) Value(row int) any {
	b, ok := v.bytes(row)
	if !ok {
		return nil
	}
	return string(b)
}
