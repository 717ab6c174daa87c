// Package delta encodes values relative to a previously agreed value.
//
// Every converter shares one wire shape: a changed-flag, then the encoded
// delta only when the flag is set. A reader holding a fixed field list can
// therefore skip unchanged fields without knowing their types.
package delta

import (
	"bytes"
	"math"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Converter encodes values of type T as deltas of type D.
//
// Encode reports changed=false exactly when value equals previous, in which
// case the receiver keeps its existing value. Implementations are stateless.
type Converter[T, D any] interface {
	Encode(value, previous T) (D, bool)
	Decode(delta D, previous T) T
	Write(w *Writer, delta D)
	Read(r *Reader) D
}

// Put writes the changed-flag and, when changed, the delta of value
// against previous.
func Put[T, D any](w *Writer, c Converter[T, D], value, previous T) bool {
	d, changed := c.Encode(value, previous)
	w.WriteFlag(changed)
	if changed {
		c.Write(w, d)
	}
	return changed
}

// Get reads one field written by Put. Unchanged fields yield previous.
func Get[T, D any](r *Reader, c Converter[T, D], previous T) T {
	if !r.ReadFlag() {
		return previous
	}
	d := c.Read(r)
	if r.Err() != nil {
		return previous
	}
	return c.Decode(d, previous)
}

// Integer sends the wrapped difference between fixed-width integers.
type Integer[T constraints.Integer] struct{}

func (Integer[T]) Encode(value, previous T) (T, bool) {
	return value - previous, value != previous
}

func (Integer[T]) Decode(delta, previous T) T {
	return previous + delta
}

func (Integer[T]) Write(w *Writer, delta T) {
	writeInteger(w, delta)
}

func (Integer[T]) Read(r *Reader) T {
	return readInteger[T](r)
}

func widthOf[T constraints.Integer]() uint {
	var zero T
	return uint(unsafe.Sizeof(zero)) * 8
}

// writeInteger sign-extends v from its own width so that a wrapped small
// negative delta on an unsigned type costs as little as a signed one.
func writeInteger[T constraints.Integer](w *Writer, v T) {
	shift := 64 - widthOf[T]()
	w.WriteVarint(int64(uint64(v)<<shift) >> shift)
}

func readInteger[T constraints.Integer](r *Reader) T {
	return T(r.ReadVarint())
}

// Bool is an atomic converter: the delta is the new value.
type Bool struct{}

func (Bool) Encode(value, previous bool) (bool, bool) {
	return value, value != previous
}

func (Bool) Decode(delta, _ bool) bool {
	return delta
}

func (Bool) Write(w *Writer, delta bool) {
	w.WriteFlag(delta)
}

func (Bool) Read(r *Reader) bool {
	return r.ReadFlag()
}

type String struct{}

func (String) Encode(value, previous string) (string, bool) {
	return value, value != previous
}

func (String) Decode(delta, _ string) string {
	return delta
}

func (String) Write(w *Writer, delta string) {
	w.WriteString(delta)
}

func (String) Read(r *Reader) string {
	return r.ReadString()
}

type Bytes struct{}

func (Bytes) Encode(value, previous []byte) ([]byte, bool) {
	return value, !bytes.Equal(value, previous)
}

func (Bytes) Decode(delta, _ []byte) []byte {
	return delta
}

func (Bytes) Write(w *Writer, delta []byte) {
	w.WriteBytes(delta)
}

func (Bytes) Read(r *Reader) []byte {
	return r.ReadBytes()
}

// Float32 sends raw IEEE-754 bits. Values are compared by bit pattern so
// NaN and negative zero replicate exactly.
type Float32 struct{}

func (Float32) Encode(value, previous float32) (float32, bool) {
	return value, math.Float32bits(value) != math.Float32bits(previous)
}

func (Float32) Decode(delta, _ float32) float32 {
	return delta
}

func (Float32) Write(w *Writer, delta float32) {
	w.WriteFloat32(delta)
}

func (Float32) Read(r *Reader) float32 {
	return r.ReadFloat32()
}

type Float64 struct{}

func (Float64) Encode(value, previous float64) (float64, bool) {
	return value, math.Float64bits(value) != math.Float64bits(previous)
}

func (Float64) Decode(delta, _ float64) float64 {
	return delta
}

func (Float64) Write(w *Writer, delta float64) {
	w.WriteFloat64(delta)
}

func (Float64) Read(r *Reader) float64 {
	return r.ReadFloat64()
}
