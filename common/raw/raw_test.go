package raw

import (
	"testing"

	"github.com/taosdata/taosws-go/common"
	"github.com/taosdata/taosws-go/common/raw/views"
)

// blockParserFixture is a 460-byte v3 block covering all fixed-width
// types plus VarChar/NChar/Json. The timestamp column has no nulls, the
// Json column has row 0 null, and every other column has rows 0 and 1
// null with row 2 populated.
var blockParserFixture = []byte{
	0xcc, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x09, 0x00, 0x08, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00,
	0x02, 0x00, 0x01, 0x00, 0x00, 0x00, 0x03, 0x00, 0x02, 0x00, 0x00, 0x00,
	0x04, 0x00, 0x04, 0x00, 0x00, 0x00, 0x05, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x0b, 0x00, 0x01, 0x00, 0x00, 0x00, 0x0c, 0x00, 0x02, 0x00, 0x00, 0x00,
	0x0d, 0x00, 0x04, 0x00, 0x00, 0x00, 0x0e, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x06, 0x00, 0x04, 0x00, 0x00, 0x00, 0x07, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x08, 0x00, 0x66, 0x00, 0x00, 0x00, 0x0a, 0x00, 0x92, 0x01, 0x00, 0x00,
	0x0f, 0x00, 0x00, 0x40, 0x00, 0x00, 0x18, 0x00, 0x00, 0x00, 0x03, 0x00,
	0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x0c, 0x00,
	0x00, 0x00, 0x18, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0x06, 0x00,
	0x00, 0x00, 0x0c, 0x00, 0x00, 0x00, 0x18, 0x00, 0x00, 0x00, 0x0c, 0x00,
	0x00, 0x00, 0x18, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x16, 0x00,
	0x00, 0x00, 0x34, 0x00, 0x00, 0x00, 0x00, 0x3f, 0x8c, 0xfa, 0x84, 0x81,
	0x01, 0x00, 0x00, 0x3e, 0x8c, 0xfa, 0x84, 0x81, 0x01, 0x00, 0x00, 0x3f,
	0x8c, 0xfa, 0x84, 0x81, 0x01, 0x00, 0x00, 0xc0, 0x00, 0x00, 0x01, 0xc0,
	0x00, 0x00, 0xff, 0xc0, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xc0, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0xc0,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xc0, 0x00, 0x00, 0x01, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0xc0,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
	0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00,
	0x00, 0x00, 0x00, 0x03, 0x00, 0x61, 0x62, 0x63, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x00, 0x14, 0x00, 0x9b, 0x6d,
	0x00, 0x00, 0x1d, 0x60, 0x00, 0x00, 0x1e, 0xd1, 0x01, 0x00, 0x70, 0x65,
	0x00, 0x00, 0x6e, 0x63, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff, 0x00, 0x00,
	0x00, 0x00, 0x1a, 0x00, 0x00, 0x00, 0x18, 0x00, 0x7b, 0x22, 0x61, 0x22,
	0x3a, 0x22, 0xe6, 0xb6, 0x9b, 0xe6, 0x80, 0x9d, 0xf0, 0x9d, 0x84, 0x9e,
	0xe6, 0x95, 0xb0, 0xe6, 0x8d, 0xae, 0x22, 0x7d, 0x18, 0x00, 0x7b, 0x22,
	0x61, 0x22, 0x3a, 0x22, 0xe6, 0xb6, 0x9b, 0xe6, 0x80, 0x9d, 0xf0, 0x9d,
	0x84, 0x9e, 0xe6, 0x95, 0xb0, 0xe6, 0x8d, 0xae, 0x22, 0x7d, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

func TestDecodeV3BlockParser(t *testing.T) {
	block, err := DecodeV3(blockParserFixture, 3, 15, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV3: %v", err)
	}
	if block.NRows() != 3 || block.NCols() != 15 {
		t.Fatalf("got rows=%d cols=%d, want 3/15", block.NRows(), block.NCols())
	}

	// Timestamp column: no nulls.
	for row := 0; row < 3; row++ {
		if block.IsNull(row, 0) {
			t.Errorf("timestamp row %d: want non-null", row)
		}
	}

	// All other fixed-width columns (1..11): rows 0 and 1 are null, row 2
	// is populated.
	for col := 1; col <= 11; col++ {
		if !block.IsNull(0, col) || !block.IsNull(1, col) {
			t.Errorf("col %d: want rows 0,1 null", col)
		}
		if block.IsNull(2, col) {
			t.Errorf("col %d: want row 2 non-null", col)
		}
	}

	if v := block.Value(2, 1); v != true {
		t.Errorf("bool row2 = %v, want true", v)
	}
	if v := block.Value(2, 2); v != int8(-1) {
		t.Errorf("tinyint row2 = %v, want -1", v)
	}
	if v := block.Value(2, 6); v != uint8(1) {
		t.Errorf("utinyint row2 = %v, want 1", v)
	}
	if v := block.Value(2, 10); v != float32(0) {
		t.Errorf("float row2 = %v, want 0", v)
	}

	// VarChar column (12): rows 0,1 null, row2 = "abc".
	if !block.IsNull(0, 12) || !block.IsNull(1, 12) {
		t.Errorf("varchar: want rows 0,1 null")
	}
	if v := block.Value(2, 12); v != "abc" {
		t.Errorf("varchar row2 = %q, want \"abc\"", v)
	}

	// NChar column (13): rows 0,1 null, row2 non-null UTF-32-LE decoded.
	if !block.IsNull(0, 13) || !block.IsNull(1, 13) {
		t.Errorf("nchar: want rows 0,1 null")
	}
	if block.IsNull(2, 13) {
		t.Errorf("nchar row2: want non-null")
	}
	ncharView := block.Column(13).(views.NCharView)
	if !ncharView.IsChars {
		t.Errorf("nchar view: want IsChars=true for v3")
	}
	if s, _ := ncharView.Value(2).(string); len([]rune(s)) != 5 {
		t.Errorf("nchar row2 = %q, want 5 runes", s)
	}

	// Json column (14): row0 null, rows 1,2 populated with the same value.
	if !block.IsNull(0, 14) {
		t.Errorf("json row0: want null")
	}
	if block.IsNull(1, 14) || block.IsNull(2, 14) {
		t.Errorf("json rows 1,2: want non-null")
	}
	v1, _ := block.Value(1, 14).(string)
	v2, _ := block.Value(2, 14).(string)
	if v1 != v2 || v1 == "" {
		t.Errorf("json rows 1,2 = %q / %q, want equal non-empty", v1, v2)
	}
}

func TestEncodeDecodeV3RoundTrip(t *testing.T) {
	block, err := DecodeV3(blockParserFixture, 3, 15, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV3: %v", err)
	}
	encoded, err := block.EncodeV3()
	if err != nil {
		t.Fatalf("EncodeV3: %v", err)
	}
	again, err := DecodeV3(encoded, 3, 15, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV3(EncodeV3(...)): %v", err)
	}
	for col := 0; col < block.NCols(); col++ {
		for row := 0; row < block.NRows(); row++ {
			if block.IsNull(row, col) != again.IsNull(row, col) {
				t.Fatalf("col %d row %d: nullity changed across round trip", col, row)
			}
			if !block.IsNull(row, col) {
				want := block.Value(row, col)
				got := again.Value(row, col)
				if want != got {
					t.Fatalf("col %d row %d: got %v, want %v", col, row, got, want)
				}
			}
		}
	}
}

func TestDecodeV3UnsupportedType(t *testing.T) {
	data := make([]byte, 12+6+4)
	// total length
	data[0] = byte(12 + 6 + 4)
	// schema: VarBinary (16), declared length 0
	data[12] = byte(common.VarBinary)
	_, err := DecodeV3(data, 1, 1, common.Millisecond)
	if err == nil {
		t.Fatalf("want error for unsupported type")
	}
}

func TestDecodeV2IntNull(t *testing.T) {
	fields := []common.Field{{Name: "a", Ty: common.Int, Bytes: 4}}
	block, err := DecodeV2([]byte{0, 0, 0, 0x80}, fields, []uint32{4}, 1, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV2: %v", err)
	}
	if !block.IsNull(0, 0) {
		t.Errorf("want row 0 null")
	}
}

func TestDecodeV2FloatNull(t *testing.T) {
	fields := []common.Field{{Name: "a", Ty: common.Float, Bytes: 4}}
	block, err := DecodeV2([]byte{0, 0, 0xf0, 0x7f}, fields, []uint32{4}, 1, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV2: %v", err)
	}
	if !block.IsNull(0, 0) {
		t.Errorf("want row 0 null")
	}
}

func TestDecodeV2TinyIntAndInt(t *testing.T) {
	fields := []common.Field{{Name: "a", Ty: common.TinyInt, Bytes: 1}}
	block, err := DecodeV2([]byte{1}, fields, []uint32{1}, 1, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV2: %v", err)
	}
	if v := block.Value(0, 0); v != int8(1) {
		t.Errorf("tinyint = %v, want 1", v)
	}

	fields = []common.Field{{Name: "a", Ty: common.Int, Bytes: 4}}
	block, err = DecodeV2([]byte{1, 0, 0, 0}, fields, []uint32{4}, 1, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV2: %v", err)
	}
	if v := block.Value(0, 0); v != int32(1) {
		t.Errorf("int = %v, want 1", v)
	}
}

func TestDecodeV2VarChar(t *testing.T) {
	fields := []common.Field{{Name: "b", Ty: common.VarChar, Bytes: 2}}
	block, err := DecodeV2([]byte{2, 0, 'a', 'b'}, fields, []uint32{4}, 1, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV2: %v", err)
	}
	if v := block.Value(0, 0); v != "ab" {
		t.Errorf("varchar = %v, want \"ab\"", v)
	}
}

func TestDecodeV2MultiColumn(t *testing.T) {
	// Two rows: a=[1.5, 2.5] (float32), b=[10, 20] (int32).
	data := []byte{
		0x00, 0x00, 0xc0, 0x3f, // 1.5
		0x00, 0x00, 0x20, 0x40, // 2.5
		10, 0, 0, 0,
		20, 0, 0, 0,
	}
	fields := []common.Field{
		{Name: "a", Ty: common.Float, Bytes: 4},
		{Name: "b", Ty: common.Int, Bytes: 4},
	}
	block, err := DecodeV2(data, fields, []uint32{4, 4}, 2, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV2: %v", err)
	}
	if v := block.Value(0, 0); v != float32(1.5) {
		t.Errorf("a[0] = %v, want 1.5", v)
	}
	if v := block.Value(1, 1); v != int32(20) {
		t.Errorf("b[1] = %v, want 20", v)
	}
}

func TestEncodeDecodeV2RoundTrip(t *testing.T) {
	fields := []common.Field{
		{Name: "a", Ty: common.Int, Bytes: 4},
		{Name: "b", Ty: common.VarChar, Bytes: 2},
	}
	strides := []uint32{4, 4}
	data := []byte{
		1, 0, 0, 0,
		0x00, 0x00, 0x00, 0x80, // null sentinel
		2, 0, 'a', 'b',
		1, 0, 0xff, 0xff, // null varchar slot (only first byte matters)
	}
	block, err := DecodeV2(data, fields, strides, 2, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV2: %v", err)
	}
	encoded, err := block.EncodeV2(fields, strides)
	if err != nil {
		t.Fatalf("EncodeV2: %v", err)
	}
	again, err := DecodeV2(encoded, fields, strides, 2, common.Millisecond)
	if err != nil {
		t.Fatalf("DecodeV2(EncodeV2(...)): %v", err)
	}
	for col := 0; col < 2; col++ {
		for row := 0; row < 2; row++ {
			if block.IsNull(row, col) != again.IsNull(row, col) {
				t.Fatalf("col %d row %d: nullity changed across round trip", col, row)
			}
		}
	}
	if v := again.Value(0, 0); v != int32(1) {
		t.Errorf("int[0] = %v, want 1", v)
	}
	if v := again.Value(0, 1); v != "ab" {
		t.Errorf("varchar[0] = %v, want \"ab\"", v)
	}
}
