package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTypeMismatch is returned when a Value is read as the wrong type.
var ErrTypeMismatch = errors.New("value type mismatch")

// ValueType tags the payload of a property value. It is the first byte of
// every entry in a property store.
type ValueType uint8

const (
	// TypeInvalid marks an absent value.
	TypeInvalid ValueType = 0
	// TypeInt is an 8-byte little-endian int64.
	TypeInt ValueType = 1
	// TypeFloat is an 8-byte little-endian IEEE 754 float64.
	TypeFloat ValueType = 2
	// TypeChar is a single byte.
	TypeChar ValueType = 3
	// TypeString is raw bytes.
	TypeString ValueType = 4
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeChar:
		return "char"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Value is a typed, variable-length property value.
// The zero Value is absent.
type Value struct {
	Type ValueType
	Data []byte
}

// Int returns an int value.
func Int(v int64) Value {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return Value{Type: TypeInt, Data: b}
}

// Float returns a float value.
func Float(v float64) Value {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return Value{Type: TypeFloat, Data: b}
}

// Char returns a single-byte value.
func Char(c byte) Value {
	return Value{Type: TypeChar, Data: []byte{c}}
}

// String returns a string value.
func String(s string) Value {
	return Value{Type: TypeString, Data: []byte(s)}
}

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool {
	return v.Type == TypeInvalid && len(v.Data) == 0
}

// AsInt decodes an int value.
func (v Value) AsInt() (int64, error) {
	if v.Type != TypeInt || len(v.Data) != 8 {
		return 0, fmt.Errorf("%w: want int, have %s", ErrTypeMismatch, v.Type)
	}
	return int64(binary.LittleEndian.Uint64(v.Data)), nil
}

// AsFloat decodes a float value.
func (v Value) AsFloat() (float64, error) {
	if v.Type != TypeFloat || len(v.Data) != 8 {
		return 0, fmt.Errorf("%w: want float, have %s", ErrTypeMismatch, v.Type)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.Data)), nil
}

// AsString decodes a string or char value.
func (v Value) AsString() (string, error) {
	if v.Type != TypeString && v.Type != TypeChar {
		return "", fmt.Errorf("%w: want string, have %s", ErrTypeMismatch, v.Type)
	}
	return string(v.Data), nil
}

// EncodedLen is the number of entry-heap bytes the value occupies.
func (v Value) EncodedLen() int {
	return len(v.Data) + 1
}

// EncodeTo writes the type tag followed by the payload into dst,
// which must hold EncodedLen bytes.
func (v Value) EncodeTo(dst []byte) {
	dst[0] = byte(v.Type)
	copy(dst[1:], v.Data)
}

// DecodeValue decodes an entry written by EncodeTo. The payload is copied.
func DecodeValue(src []byte) (Value, error) {
	if len(src) == 0 {
		return Value{}, errors.New("value: empty entry")
	}
	data := make([]byte, len(src)-1)
	copy(data, src[1:])
	return Value{Type: ValueType(src[0]), Data: data}, nil
}

func (v Value) String() string {
	switch v.Type {
	case TypeInt:
		n, _ := v.AsInt()
		return fmt.Sprintf("%d", n)
	case TypeFloat:
		f, _ := v.AsFloat()
		return fmt.Sprintf("%g", f)
	case TypeChar, TypeString:
		return fmt.Sprintf("%q", v.Data)
	default:
		return "<absent>"
	}
}
