package delta

import (
	"bytes"
	"fmt"
	"math"
	"strings"
)

// Kind identifies the primitive held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindBytes:   "bytes",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a config name like "uint16" to its Kind.
func ParseKind(raw string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

func (k Kind) Signed() bool {
	return k >= KindInt8 && k <= KindInt64
}

func (k Kind) Unsigned() bool {
	return k >= KindUint8 && k <= KindUint64
}

func (k Kind) Integer() bool {
	return k.Signed() || k.Unsigned()
}

func (k Kind) Float() bool {
	return k == KindFloat32 || k == KindFloat64
}

// Value is a tagged union over the primitive kinds a schema field can hold.
// Numeric payloads live inline; only strings and bytes reference memory.
type Value struct {
	kind Kind
	bits uint64
	str  string
	raw  []byte
}

func BoolValue(v bool) Value {
	var b uint64
	if v {
		b = 1
	}
	return Value{kind: KindBool, bits: b}
}

// IntValue builds a signed value truncated to kind's width.
func IntValue(kind Kind, v int64) Value {
	switch kind {
	case KindInt8:
		v = int64(int8(v))
	case KindInt16:
		v = int64(int16(v))
	case KindInt32:
		v = int64(int32(v))
	}
	return Value{kind: kind, bits: uint64(v)}
}

// UintValue builds an unsigned value truncated to kind's width.
func UintValue(kind Kind, v uint64) Value {
	switch kind {
	case KindUint8:
		v = uint64(uint8(v))
	case KindUint16:
		v = uint64(uint16(v))
	case KindUint32:
		v = uint64(uint32(v))
	}
	return Value{kind: kind, bits: v}
}

func Float32Value(v float32) Value {
	return Value{kind: KindFloat32, bits: math.Float64bits(float64(v))}
}

func Float64Value(v float64) Value {
	return Value{kind: KindFloat64, bits: math.Float64bits(v)}
}

func StringValue(v string) Value {
	return Value{kind: KindString, str: v}
}

func BytesValue(v []byte) Value {
	return Value{kind: KindBytes, raw: v}
}

// Zero returns the zero Value of kind.
func Zero(kind Kind) Value {
	return Value{kind: kind}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) Bool() bool    { return v.bits != 0 }
func (v Value) Int() int64    { return int64(v.bits) }
func (v Value) Uint() uint64  { return v.bits }
func (v Value) Text() string  { return v.str }
func (v Value) Bytes() []byte { return v.raw }

func (v Value) Float() float64 {
	return math.Float64frombits(v.bits)
}

// Equal compares kind and content; floats compare by bit pattern.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	default:
		return v.bits == o.bits
	}
}

func (v Value) String() string {
	switch {
	case v.kind == KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case v.kind.Signed():
		return fmt.Sprintf("%d", v.Int())
	case v.kind.Unsigned():
		return fmt.Sprintf("%d", v.Uint())
	case v.kind.Float():
		return fmt.Sprintf("%g", v.Float())
	case v.kind == KindString:
		return fmt.Sprintf("%q", v.str)
	case v.kind == KindBytes:
		return fmt.Sprintf("%x", v.raw)
	}
	return "<invalid>"
}
