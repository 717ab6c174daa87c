package delta

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

var (
	ErrUnknownKind  = errors.New("delta: unknown kind")
	ErrKindMismatch = errors.New("delta: kind mismatch")
)

// FieldCodec applies one converter to one Value kind. The converter is
// bound when the codec is built, so encoding never inspects types.
type FieldCodec interface {
	Kind() Kind
	Put(w *Writer, value, previous Value) bool
	Get(r *Reader, previous Value) Value
}

type fieldCodec[T, D any] struct {
	kind Kind
	conv Converter[T, D]
	from func(Value) T
	to   func(T) Value
}

func (c fieldCodec[T, D]) Kind() Kind {
	return c.kind
}

func (c fieldCodec[T, D]) Put(w *Writer, value, previous Value) bool {
	return Put(w, c.conv, c.from(value), c.from(previous))
}

func (c fieldCodec[T, D]) Get(r *Reader, previous Value) Value {
	if !r.ReadFlag() {
		return previous
	}
	d := c.conv.Read(r)
	if r.Err() != nil {
		return previous
	}
	return c.to(c.conv.Decode(d, c.from(previous)))
}

func signedCodec[T constraints.Signed](kind Kind) FieldCodec {
	return fieldCodec[T, T]{
		kind: kind,
		conv: Integer[T]{},
		from: func(v Value) T { return T(v.Int()) },
		to:   func(x T) Value { return IntValue(kind, int64(x)) },
	}
}

func unsignedCodec[T constraints.Unsigned](kind Kind) FieldCodec {
	return fieldCodec[T, T]{
		kind: kind,
		conv: Integer[T]{},
		from: func(v Value) T { return T(v.Uint()) },
		to:   func(x T) Value { return UintValue(kind, uint64(x)) },
	}
}

// CodecFor returns the exact (lossless) codec for kind.
func CodecFor(kind Kind) (FieldCodec, error) {
	switch kind {
	case KindBool:
		return fieldCodec[bool, bool]{kind: kind, conv: Bool{}, from: Value.Bool, to: BoolValue}, nil
	case KindInt8:
		return signedCodec[int8](kind), nil
	case KindInt16:
		return signedCodec[int16](kind), nil
	case KindInt32:
		return signedCodec[int32](kind), nil
	case KindInt64:
		return signedCodec[int64](kind), nil
	case KindUint8:
		return unsignedCodec[uint8](kind), nil
	case KindUint16:
		return unsignedCodec[uint16](kind), nil
	case KindUint32:
		return unsignedCodec[uint32](kind), nil
	case KindUint64:
		return unsignedCodec[uint64](kind), nil
	case KindFloat32:
		return fieldCodec[float32, float32]{
			kind: kind,
			conv: Float32{},
			from: func(v Value) float32 { return float32(v.Float()) },
			to:   Float32Value,
		}, nil
	case KindFloat64:
		return fieldCodec[float64, float64]{kind: kind, conv: Float64{}, from: Value.Float, to: Float64Value}, nil
	case KindString:
		return fieldCodec[string, string]{kind: kind, conv: String{}, from: Value.Text, to: StringValue}, nil
	case KindBytes:
		return fieldCodec[[]byte, []byte]{kind: kind, conv: Bytes{}, from: Value.Bytes, to: BytesValue}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}

// QuantizedCodec returns a lossy codec that carries a float kind as an
// integer of the wire kind.
func QuantizedCodec(kind, wire Kind, opts QuantizeOptions) (FieldCodec, error) {
	switch kind {
	case KindFloat32:
		return quantizedFor[float32](kind, wire, opts)
	case KindFloat64:
		return quantizedFor[float64](kind, wire, opts)
	}
	return nil, fmt.Errorf("%w: quantized field must be float32 or float64, got %v", ErrKindMismatch, kind)
}

func quantizedFor[F constraints.Float](kind, wire Kind, opts QuantizeOptions) (FieldCodec, error) {
	switch wire {
	case KindInt8:
		return quantized[F, int8](kind, opts)
	case KindInt16:
		return quantized[F, int16](kind, opts)
	case KindInt32:
		return quantized[F, int32](kind, opts)
	case KindInt64:
		return quantized[F, int64](kind, opts)
	case KindUint8:
		return quantized[F, uint8](kind, opts)
	case KindUint16:
		return quantized[F, uint16](kind, opts)
	case KindUint32:
		return quantized[F, uint32](kind, opts)
	case KindUint64:
		return quantized[F, uint64](kind, opts)
	}
	return nil, fmt.Errorf("%w: quantized wire kind must be an integer, got %v", ErrKindMismatch, wire)
}

func quantized[F constraints.Float, I constraints.Integer](kind Kind, opts QuantizeOptions) (FieldCodec, error) {
	q, err := NewQuantizer[F, I](opts)
	if err != nil {
		return nil, err
	}
	to := func(x F) Value { return Float64Value(float64(x)) }
	if kind == KindFloat32 {
		to = func(x F) Value { return Float32Value(float32(x)) }
	}
	return fieldCodec[F, Quantum[I]]{
		kind: kind,
		conv: q,
		from: func(v Value) F { return F(v.Float()) },
		to:   to,
	}, nil
}
