package delta

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

var ErrInvalidScale = errors.New("delta: invalid quantization scale")

// QuantizeOptions configures a float to integer quantizer.
//
// Scale multiplies the value before truncation and divides it on decode.
// PostScale multiplies the decoded value once more, which allows encode and
// decode to use different units. SignFlag sends the sign as its own flag and
// only the magnitude as an integer, so unsigned wire widths keep negatives.
type QuantizeOptions struct {
	Scale     float64
	PostScale float64
	SignFlag  bool
}

// Quantum is the quantized delta of a floating value.
type Quantum[I constraints.Integer] struct {
	Negative  bool
	Magnitude I
}

// Quantizer trades precision for bandwidth: a value round-trips only to
// within 1/Scale. Magnitudes outside I's range clamp to its bounds.
type Quantizer[F constraints.Float, I constraints.Integer] struct {
	scale    float64
	post     float64
	signFlag bool
	min, max I
}

func NewQuantizer[F constraints.Float, I constraints.Integer](opts QuantizeOptions) (Quantizer[F, I], error) {
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	post := opts.PostScale
	if post == 0 {
		post = 1
	}
	if !validScale(scale) || !validScale(post) {
		return Quantizer[F, I]{}, fmt.Errorf("%w: scale=%v post_scale=%v", ErrInvalidScale, opts.Scale, opts.PostScale)
	}
	lo, hi := integerBounds[I]()
	return Quantizer[F, I]{
		scale:    scale,
		post:     post,
		signFlag: opts.SignFlag,
		min:      lo,
		max:      hi,
	}, nil
}

func validScale(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func integerBounds[I constraints.Integer]() (I, I) {
	var zero I
	w := widthOf[I]()
	if zero-1 > zero {
		return zero, ^zero
	}
	hi := I(uint64(1)<<(w-1) - 1)
	return -hi - 1, hi
}

func (q Quantizer[F, I]) Resolution() float64 {
	return q.post / q.scale
}

func (q Quantizer[F, I]) Encode(value, previous F) (Quantum[I], bool) {
	if math.Float64bits(float64(value)) == math.Float64bits(float64(previous)) {
		return Quantum[I]{}, false
	}
	return q.quantize(value), true
}

func (q Quantizer[F, I]) quantize(value F) Quantum[I] {
	f := float64(value)
	if math.IsNaN(f) {
		return Quantum[I]{}
	}
	neg := f < 0
	if q.signFlag {
		f = math.Abs(f)
	}
	f = math.Trunc(f * q.scale)
	var mag I
	switch {
	case f >= float64(q.max):
		mag = q.max
	case f <= float64(q.min):
		mag = q.min
	default:
		mag = I(f)
	}
	return Quantum[I]{Negative: q.signFlag && neg, Magnitude: mag}
}

func (q Quantizer[F, I]) Decode(delta Quantum[I], _ F) F {
	v := float64(delta.Magnitude) / q.scale * q.post
	if delta.Negative {
		v = -v
	}
	return F(v)
}

func (q Quantizer[F, I]) Write(w *Writer, delta Quantum[I]) {
	if q.signFlag {
		w.WriteFlag(delta.Negative)
	}
	writeInteger(w, delta.Magnitude)
}

func (q Quantizer[F, I]) Read(r *Reader) Quantum[I] {
	var d Quantum[I]
	if q.signFlag {
		d.Negative = r.ReadFlag()
	}
	d.Magnitude = readInteger[I](r)
	return d
}
