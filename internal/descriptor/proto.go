package descriptor

import (
	"errors"
	"fmt"

	"github.com/danmuck/catalogsync/internal/delta"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

var (
	ErrUnsupportedField = errors.New("descriptor: unsupported protobuf field")
	ErrProtoMismatch    = errors.New("descriptor: protobuf message does not match schema")
)

var protoKinds = map[protoreflect.Kind]delta.Kind{
	protoreflect.BoolKind:     delta.KindBool,
	protoreflect.EnumKind:     delta.KindInt32,
	protoreflect.Int32Kind:    delta.KindInt32,
	protoreflect.Sint32Kind:   delta.KindInt32,
	protoreflect.Sfixed32Kind: delta.KindInt32,
	protoreflect.Int64Kind:    delta.KindInt64,
	protoreflect.Sint64Kind:   delta.KindInt64,
	protoreflect.Sfixed64Kind: delta.KindInt64,
	protoreflect.Uint32Kind:   delta.KindUint32,
	protoreflect.Fixed32Kind:  delta.KindUint32,
	protoreflect.Uint64Kind:   delta.KindUint64,
	protoreflect.Fixed64Kind:  delta.KindUint64,
	protoreflect.FloatKind:    delta.KindFloat32,
	protoreflect.DoubleKind:   delta.KindFloat64,
	protoreflect.StringKind:   delta.KindString,
	protoreflect.BytesKind:    delta.KindBytes,
}

// SchemaFromProto derives a schema from a flat protobuf message. Repeated,
// map and message-typed fields are rejected here, at registration time.
func SchemaFromProto(md protoreflect.MessageDescriptor) (*delta.Schema, error) {
	fds := md.Fields()
	fields := make([]delta.Field, 0, fds.Len())
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		if fd.IsList() || fd.IsMap() {
			return nil, fmt.Errorf("%w: %s is repeated", ErrUnsupportedField, fd.FullName())
		}
		kind, ok := protoKinds[fd.Kind()]
		if !ok {
			return nil, fmt.Errorf("%w: %s has kind %v", ErrUnsupportedField, fd.FullName(), fd.Kind())
		}
		f, err := delta.NewField(string(fd.Name()), kind)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return delta.NewSchema(string(md.FullName()), fields...)
}

// RegisterProto registers the schema derived from m's descriptor.
func (s *Set) RegisterProto(index uint16, m proto.Message) (*delta.Schema, error) {
	schema, err := SchemaFromProto(m.ProtoReflect().Descriptor())
	if err != nil {
		return nil, err
	}
	if err := s.Register(index, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

// MessageFromProto copies m's scalar fields into a message of schema.
func MessageFromProto(schema *delta.Schema, m proto.Message) (*delta.Message, error) {
	mr := m.ProtoReflect()
	if string(mr.Descriptor().FullName()) != schema.Name() {
		return nil, fmt.Errorf("%w: %s vs %q", ErrProtoMismatch, mr.Descriptor().FullName(), schema.Name())
	}
	fds := mr.Descriptor().Fields()
	values := make([]delta.Value, schema.Len())
	for i := 0; i < schema.Len(); i++ {
		field := schema.Field(i)
		fd := fds.ByName(protoreflect.Name(field.Name))
		if fd == nil {
			return nil, fmt.Errorf("%w: no field %q", ErrProtoMismatch, field.Name)
		}
		values[i] = fromProtoValue(field.Codec.Kind(), fd, mr.Get(fd))
	}
	return schema.New(values...)
}

func fromProtoValue(kind delta.Kind, fd protoreflect.FieldDescriptor, v protoreflect.Value) delta.Value {
	switch kind {
	case delta.KindBool:
		return delta.BoolValue(v.Bool())
	case delta.KindInt32:
		if fd.Kind() == protoreflect.EnumKind {
			return delta.IntValue(kind, int64(v.Enum()))
		}
		return delta.IntValue(kind, v.Int())
	case delta.KindInt64:
		return delta.IntValue(kind, v.Int())
	case delta.KindUint32, delta.KindUint64:
		return delta.UintValue(kind, v.Uint())
	case delta.KindFloat32:
		return delta.Float32Value(float32(v.Float()))
	case delta.KindFloat64:
		return delta.Float64Value(v.Float())
	case delta.KindString:
		return delta.StringValue(v.String())
	case delta.KindBytes:
		return delta.BytesValue(v.Bytes())
	}
	return delta.Zero(kind)
}

// ToProto writes msg's values into the matching fields of into.
func ToProto(msg *delta.Message, into proto.Message) error {
	mr := into.ProtoReflect()
	schema := msg.Schema()
	if string(mr.Descriptor().FullName()) != schema.Name() {
		return fmt.Errorf("%w: %s vs %q", ErrProtoMismatch, mr.Descriptor().FullName(), schema.Name())
	}
	fds := mr.Descriptor().Fields()
	for i := 0; i < schema.Len(); i++ {
		name := schema.Field(i).Name
		fd := fds.ByName(protoreflect.Name(name))
		if fd == nil {
			return fmt.Errorf("%w: no field %q", ErrProtoMismatch, name)
		}
		mr.Set(fd, toProtoValue(fd, msg.Value(i)))
	}
	return nil
}

func toProtoValue(fd protoreflect.FieldDescriptor, v delta.Value) protoreflect.Value {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return protoreflect.ValueOfBool(v.Bool())
	case protoreflect.EnumKind:
		return protoreflect.ValueOfEnum(protoreflect.EnumNumber(v.Int()))
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return protoreflect.ValueOfInt32(int32(v.Int()))
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return protoreflect.ValueOfInt64(v.Int())
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return protoreflect.ValueOfUint32(uint32(v.Uint()))
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return protoreflect.ValueOfUint64(v.Uint())
	case protoreflect.FloatKind:
		return protoreflect.ValueOfFloat32(float32(v.Float()))
	case protoreflect.DoubleKind:
		return protoreflect.ValueOfFloat64(v.Float())
	case protoreflect.StringKind:
		return protoreflect.ValueOfString(v.Text())
	default:
		return protoreflect.ValueOfBytes(v.Bytes())
	}
}
