package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/danmuck/catalogsync/internal/descriptor"
)

var ErrValueType = errors.New("config: value does not fit field kind")

// BuildSchema turns a payload declaration into a delta schema.
func BuildSchema(p PayloadConfig) (*delta.Schema, error) {
	fields := make([]delta.Field, 0, len(p.Fields))
	for _, fc := range p.Fields {
		kind, err := delta.ParseKind(fc.Kind)
		if err != nil {
			return nil, fmt.Errorf("payload %q field %q: %w", p.Name, fc.Name, err)
		}
		var f delta.Field
		if fc.Quantize == "" {
			f, err = delta.NewField(fc.Name, kind)
		} else {
			var wire delta.Kind
			wire, err = delta.ParseKind(fc.Quantize)
			if err == nil {
				f, err = delta.NewQuantizedField(fc.Name, kind, wire, delta.QuantizeOptions{
					Scale:     fc.Scale,
					PostScale: fc.PostScale,
					SignFlag:  fc.SignFlag,
				})
			}
		}
		if err != nil {
			return nil, fmt.Errorf("payload %q: %w", p.Name, err)
		}
		fields = append(fields, f)
	}
	return delta.NewSchema(p.Name, fields...)
}

// BuildDescriptorSet registers every payload of cfg in a new, unsealed set.
// Each side calls it separately so no schema is shared.
func BuildDescriptorSet(side string, cfg CatalogConfig) (*descriptor.Set, error) {
	set := descriptor.NewSet(side)
	for _, p := range cfg.Payloads {
		s, err := BuildSchema(p)
		if err != nil {
			return nil, err
		}
		if err := set.Register(p.Index, s); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// BuildMessage converts decoded TOML values into a message for schema.
// Fields not named in values stay zero.
func BuildMessage(schema *delta.Schema, values map[string]any) (*delta.Message, error) {
	out := make(map[string]delta.Value, len(values))
	for name, raw := range values {
		i, ok := schema.FieldIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: schema %q has no field %q", delta.ErrUnknownField, schema.Name(), name)
		}
		v, err := toValue(schema.Field(i).Codec.Kind(), raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = v
	}
	return schema.Build(out)
}

func toValue(kind delta.Kind, raw any) (delta.Value, error) {
	switch {
	case kind == delta.KindBool:
		if b, ok := raw.(bool); ok {
			return delta.BoolValue(b), nil
		}
	case kind == delta.KindString:
		if s, ok := raw.(string); ok {
			return delta.StringValue(s), nil
		}
	case kind == delta.KindBytes:
		if s, ok := raw.(string); ok {
			return delta.BytesValue([]byte(s)), nil
		}
	case kind.Signed():
		if n, ok := asInt(raw); ok {
			if v := delta.IntValue(kind, n); v.Int() == n {
				return v, nil
			}
		}
	case kind.Unsigned():
		if n, ok := asInt(raw); ok && n >= 0 {
			if v := delta.UintValue(kind, uint64(n)); v.Uint() == uint64(n) {
				return v, nil
			}
		}
	case kind == delta.KindFloat32:
		if f, ok := asFloat(raw); ok && math.Abs(f) <= math.MaxFloat32 {
			return delta.Float32Value(float32(f)), nil
		}
	case kind == delta.KindFloat64:
		if f, ok := asFloat(raw); ok {
			return delta.Float64Value(f), nil
		}
	}
	return delta.Value{}, fmt.Errorf("%w: %s from %T", ErrValueType, kind, raw)
}

func asInt(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func asFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
