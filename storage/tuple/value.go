// Package tuple defines the typed row representation shared by the B+Tree
// index, the catalog's table heaps, and the execution engine: RID, typed
// Value, Column/Schema, and the Tuple, a slice of values with a stable
// binary encoding under a schema supplied by the caller.
package tuple

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// RID identifies a tuple's physical location: the page holding it and its
// slot within that page's slot directory.
type RID struct {
	PageID int32
	Slot   uint16
}

// ColumnType enumerates the value types this engine understands.
type ColumnType uint8

const (
	TypeInteger ColumnType = iota
	TypeVarchar
	TypeBoolean
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeVarchar:
		return "VARCHAR"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return "UNKNOWN"
	}
}

// Value is a typed, possibly-NULL column value.
type Value struct {
	Type    ColumnType
	IsNull  bool
	Integer int64
	Str     string
	Boolean bool
}

// NewInteger constructs a non-null integer value.
func NewInteger(v int64) Value { return Value{Type: TypeInteger, Integer: v} }

// NewVarchar constructs a non-null varchar value.
func NewVarchar(v string) Value { return Value{Type: TypeVarchar, Str: v} }

// NewBoolean constructs a non-null boolean value.
func NewBoolean(v bool) Value { return Value{Type: TypeBoolean, Boolean: v} }

// NewNull constructs a null value of the given type.
func NewNull(t ColumnType) Value { return Value{Type: t, IsNull: true} }

// CompareEquals reports whether a and b are equal. NULL never equals
// anything, including another NULL, matching SQL three-valued-logic
// convention used throughout the join/filter executors.
func CompareEquals(a, b Value) bool {
	if a.IsNull || b.IsNull {
		return false
	}
	switch a.Type {
	case TypeInteger:
		return a.Integer == b.Integer
	case TypeVarchar:
		return a.Str == b.Str
	case TypeBoolean:
		return a.Boolean == b.Boolean
	default:
		return false
	}
}

// CompareLess reports whether a orders strictly before b. NULLs sort first.
func CompareLess(a, b Value) bool {
	if a.IsNull && b.IsNull {
		return false
	}
	if a.IsNull {
		return true
	}
	if b.IsNull {
		return false
	}
	switch a.Type {
	case TypeInteger:
		return a.Integer < b.Integer
	case TypeVarchar:
		return a.Str < b.Str
	case TypeBoolean:
		return !a.Boolean && b.Boolean
	default:
		return false
	}
}

// Compare returns -1, 0, or 1 as a orders before, equal to, or after b.
func Compare(a, b Value) int {
	if CompareEquals(a, b) {
		return 0
	}
	if CompareLess(a, b) {
		return -1
	}
	return 1
}

// String renders the value for debug output.
func (v Value) String() string {
	if v.IsNull {
		return "NULL"
	}
	switch v.Type {
	case TypeInteger:
		return fmt.Sprintf("%d", v.Integer)
	case TypeVarchar:
		return v.Str
	case TypeBoolean:
		return fmt.Sprintf("%t", v.Boolean)
	default:
		return "?"
	}
}

// Encode appends the value's binary form to buf: a null byte, then a
// type-specific payload (skipped when null).
func (v Value) Encode(buf []byte) []byte {
	if v.IsNull {
		return append(buf, 1)
	}
	buf = append(buf, 0)
	switch v.Type {
	case TypeInteger:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.Integer))
		return append(buf, tmp[:]...)
	case TypeVarchar:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(v.Str)))
		buf = append(buf, tmp[:]...)
		return append(buf, v.Str...)
	case TypeBoolean:
		if v.Boolean {
			return append(buf, 1)
		}
		return append(buf, 0)
	default:
		return buf
	}
}

// DecodeValue reads one encoded value of the given type from buf, returning
// the value and the number of bytes consumed.
func DecodeValue(t ColumnType, buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, errors.New("decode value: empty buffer")
	}
	if buf[0] == 1 {
		return NewNull(t), 1, nil
	}
	rest := buf[1:]
	switch t {
	case TypeInteger:
		if len(rest) < 8 {
			return Value{}, 0, errors.New("decode integer: short buffer")
		}
		return NewInteger(int64(binary.BigEndian.Uint64(rest[:8]))), 9, nil
	case TypeVarchar:
		if len(rest) < 4 {
			return Value{}, 0, errors.New("decode varchar: short length")
		}
		n := int(binary.BigEndian.Uint32(rest[:4]))
		if len(rest) < 4+n {
			return Value{}, 0, errors.New("decode varchar: short payload")
		}
		return NewVarchar(string(rest[4 : 4+n])), 1 + 4 + n, nil
	case TypeBoolean:
		if len(rest) < 1 {
			return Value{}, 0, errors.New("decode boolean: short buffer")
		}
		return NewBoolean(rest[0] != 0), 2, nil
	default:
		return Value{}, 0, errors.Errorf("decode value: unknown type %d", t)
	}
}
