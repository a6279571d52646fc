// Package common holds the type tags, precision, and schema structs shared
// by the raw block codec and its column views.
package common

import "fmt"

// Ty is a column data type tag, matching the server's own numbering so
// schema bytes read off the wire need no translation.
type Ty uint16

const (
	Null Ty = iota
	Bool
	TinyInt
	SmallInt
	Int
	BigInt
	Float
	Double
	VarChar
	Timestamp
	NChar
	UTinyInt
	USmallInt
	UInt
	UBigInt
	Json
	VarBinary
	Decimal
	Blob
	MediumBlob
)

func (t Ty) String() string {
	switch t {
	case Null:
		return "NULL"
	case Bool:
		return "BOOL"
	case TinyInt:
		return "TINYINT"
	case SmallInt:
		return "SMALLINT"
	case Int:
		return "INT"
	case BigInt:
		return "BIGINT"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case VarChar:
		return "VARCHAR"
	case Timestamp:
		return "TIMESTAMP"
	case NChar:
		return "NCHAR"
	case UTinyInt:
		return "TINYINT UNSIGNED"
	case USmallInt:
		return "SMALLINT UNSIGNED"
	case UInt:
		return "INT UNSIGNED"
	case UBigInt:
		return "BIGINT UNSIGNED"
	case Json:
		return "JSON"
	case VarBinary:
		return "VARBINARY"
	case Decimal:
		return "DECIMAL"
	case Blob:
		return "BLOB"
	case MediumBlob:
		return "MEDIUMBLOB"
	default:
		return fmt.Sprintf("Ty(%d)", uint16(t))
	}
}

// FixedWidth returns the element size in bytes for fixed-width types, and
// false for variable-length types (VarChar/NChar/Json/VarBinary/...).
func (t Ty) FixedWidth() (int, bool) {
	switch t {
	case Bool, TinyInt, UTinyInt:
		return 1, true
	case SmallInt, USmallInt:
		return 2, true
	case Int, UInt, Float:
		return 4, true
	case BigInt, UBigInt, Double, Timestamp:
		return 8, true
	default:
		return 0, false
	}
}

// Precision is the timestamp column's time unit.
type Precision uint8

const (
	Millisecond Precision = iota
	Microsecond
	Nanosecond
)

func (p Precision) String() string {
	switch p {
	case Millisecond:
		return "ms"
	case Microsecond:
		return "us"
	case Nanosecond:
		return "ns"
	default:
		return "unknown"
	}
}

// Divisor returns the number of precision units per second.
func (p Precision) Divisor() int64 {
	switch p {
	case Microsecond:
		return 1_000_000
	case Nanosecond:
		return 1_000_000_000
	default:
		return 1_000
	}
}

// ColSchema is the per-column {type, declared length} pair carried in a v3
// block header.
type ColSchema struct {
	Ty  Ty
	Len uint32
}

// Field additionally carries the column name, used to externally supply
// the schema a v2 block lacks.
type Field struct {
	Name  string
	Ty    Ty
	Bytes uint32
}
