package delta

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBlankName      = errors.New("delta: blank name")
	ErrDuplicateField = errors.New("delta: duplicate field")
	ErrNilCodec       = errors.New("delta: nil codec")
	ErrFieldCount     = errors.New("delta: wrong number of values")
	ErrUnknownField   = errors.New("delta: unknown field")
)

// Field is one named slot of a Schema.
type Field struct {
	Name  string
	Codec FieldCodec
}

// NewField builds a lossless field for kind.
func NewField(name string, kind Kind) (Field, error) {
	codec, err := CodecFor(kind)
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	return Field{Name: name, Codec: codec}, nil
}

func NewQuantizedField(name string, kind, wire Kind, opts QuantizeOptions) (Field, error) {
	codec, err := QuantizedCodec(kind, wire, opts)
	if err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	return Field{Name: name, Codec: codec}, nil
}

// Schema is an ordered, named list of fields. It is immutable once built.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
}

func NewSchema(name string, fields ...Field) (*Schema, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}
	s := &Schema{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		fname := strings.TrimSpace(f.Name)
		if fname == "" {
			return nil, fmt.Errorf("schema %q field[%d]: %w", name, i, ErrBlankName)
		}
		if f.Codec == nil {
			return nil, fmt.Errorf("schema %q field %q: %w", name, fname, ErrNilCodec)
		}
		if _, ok := s.index[fname]; ok {
			return nil, fmt.Errorf("schema %q field %q: %w", name, fname, ErrDuplicateField)
		}
		s.index[fname] = i
		s.fields = append(s.fields, Field{Name: fname, Codec: f.Codec})
	}
	return s, nil
}

func (s *Schema) Name() string {
	return s.name
}

func (s *Schema) Len() int {
	return len(s.fields)
}

func (s *Schema) Field(i int) Field {
	return s.fields[i]
}

func (s *Schema) FieldIndex(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Zero returns the baseline every field starts from.
func (s *Schema) Zero() []Value {
	out := make([]Value, len(s.fields))
	for i, f := range s.fields {
		out[i] = Zero(f.Codec.Kind())
	}
	return out
}

// Encode writes every field of values relative to previous and returns how
// many fields changed. Both slices must come from this schema.
func (s *Schema) Encode(w *Writer, values, previous []Value) int {
	changed := 0
	for i, f := range s.fields {
		if f.Codec.Put(w, values[i], previous[i]) {
			changed++
		}
	}
	return changed
}

// Decode reads one record written by Encode. Read failures are reported by
// r.Err; the caller checks it once per record.
func (s *Schema) Decode(r *Reader, previous []Value) []Value {
	out := make([]Value, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Codec.Get(r, previous[i])
	}
	return out
}

// New checks values against the field kinds and builds a Message.
func (s *Schema) New(values ...Value) (*Message, error) {
	if len(values) != len(s.fields) {
		return nil, fmt.Errorf("%w: schema %q wants %d, got %d", ErrFieldCount, s.name, len(s.fields), len(values))
	}
	for i, f := range s.fields {
		if values[i].Kind() != f.Codec.Kind() {
			return nil, fmt.Errorf("%w: schema %q field %q wants %v, got %v",
				ErrKindMismatch, s.name, f.Name, f.Codec.Kind(), values[i].Kind())
		}
	}
	vals := make([]Value, len(values))
	copy(vals, values)
	return &Message{schema: s, values: vals}, nil
}

// Build fills named fields and leaves the rest at zero.
func (s *Schema) Build(values map[string]Value) (*Message, error) {
	vals := s.Zero()
	for name, v := range values {
		i, ok := s.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: schema %q has no field %q", ErrUnknownField, s.name, name)
		}
		vals[i] = v
	}
	return s.New(vals...)
}

// Message is an immutable set of values shaped by a Schema.
type Message struct {
	schema *Schema
	values []Value
}

func (m *Message) Schema() *Schema {
	return m.schema
}

func (m *Message) Value(i int) Value {
	return m.values[i]
}

func (m *Message) Get(name string) (Value, bool) {
	i, ok := m.schema.index[name]
	if !ok {
		return Value{}, false
	}
	return m.values[i], true
}

func (m *Message) Values() []Value {
	out := make([]Value, len(m.values))
	copy(out, m.values)
	return out
}

// With returns a copy of m with one field replaced.
func (m *Message) With(name string, v Value) (*Message, error) {
	vals := m.Values()
	i, ok := m.schema.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: schema %q has no field %q", ErrUnknownField, m.schema.name, name)
	}
	vals[i] = v
	return m.schema.New(vals...)
}

func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.schema != o.schema {
		return false
	}
	for i := range m.values {
		if !m.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}

// EncodeDelta writes m relative to previous, or to the schema's zero values
// when previous is nil or shaped by another schema.
func (m *Message) EncodeDelta(w *Writer, previous *Message) int {
	base := m.schema.Zero()
	if previous != nil && previous.schema == m.schema {
		base = previous.values
	}
	return m.schema.Encode(w, m.values, base)
}

// DecodeMessage reads a message written by EncodeDelta against the same
// previous message.
func (s *Schema) DecodeMessage(r *Reader, previous *Message) (*Message, error) {
	base := s.Zero()
	if previous != nil && previous.schema == s {
		base = previous.values
	}
	vals := s.Decode(r, base)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("schema %q: %w", s.name, err)
	}
	return &Message{schema: s, values: vals}, nil
}
