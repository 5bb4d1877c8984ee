package tuple

import "github.com/pkg/errors"

// Tuple is a fixed row of values ordered to match some Schema. It carries
// no schema pointer of its own; callers pass the schema they used to
// produce it alongside, the same way plan nodes carry an output schema
// separate from the tuples flowing through them.
type Tuple struct {
	RID    RID
	Values []Value
}

// GetValue returns the value at the given column index.
func (t Tuple) GetValue(idx int) Value {
	if idx < 0 || idx >= len(t.Values) {
		return Value{}
	}
	return t.Values[idx]
}

// Encode serializes the tuple to a byte slice: a count followed by each
// value's own Encode framing.
func (t Tuple) Encode() []byte {
	buf := make([]byte, 0, 64)
	var lenBuf [4]byte
	putU32(lenBuf[:], uint32(len(t.Values)))
	buf = append(buf, lenBuf[:]...)
	for _, v := range t.Values {
		buf = v.Encode(buf)
	}
	return buf
}

// Decode parses a tuple previously produced by Encode, given the column
// types to decode each value as (the schema is not itself encoded).
func Decode(types []ColumnType, buf []byte) (Tuple, error) {
	if len(buf) < 4 {
		return Tuple{}, errors.New("decode tuple: short buffer")
	}
	n := int(getU32(buf))
	buf = buf[4:]
	if n != len(types) {
		return Tuple{}, errors.Errorf("decode tuple: value count %d != schema columns %d", n, len(types))
	}
	values := make([]Value, n)
	for i := 0; i < n; i++ {
		v, consumed, err := DecodeValue(types[i], buf)
		if err != nil {
			return Tuple{}, errors.Wrapf(err, "decode tuple column %d", i)
		}
		values[i] = v
		buf = buf[consumed:]
	}
	return Tuple{Values: values}, nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
