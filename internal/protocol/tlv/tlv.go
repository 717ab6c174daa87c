package tlv

import (
	"encoding/binary"
	"errors"
)

// MaxHeaderLen bounds one field header: uvarint id, type byte, uvarint length.
const MaxHeaderLen = binary.MaxVarintLen16 + 1 + binary.MaxVarintLen32

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
)

// Type IDs from tlv contract.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

// AppendField appends f to dst. Headers are varint-sized so small ids and
// short values cost two or three bytes.
func AppendField(dst []byte, f Field) []byte {
	dst = binary.AppendUvarint(dst, uint64(f.ID))
	dst = append(dst, f.Type)
	dst = binary.AppendUvarint(dst, uint64(len(f.Value)))
	return append(dst, f.Value...)
}

func EncodeField(f Field) []byte {
	return AppendField(make([]byte, 0, MaxHeaderLen+len(f.Value)), f)
}

func EncodeFields(fields []Field) []byte {
	size := 0
	for _, f := range fields {
		size += MaxHeaderLen + len(f.Value)
	}
	out := make([]byte, 0, size)
	for _, f := range fields {
		out = AppendField(out, f)
	}
	return out
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		id, n := binary.Uvarint(payload[i:])
		if n <= 0 || id > 0xffff {
			return nil, ErrShortFieldHeader
		}
		i += n
		if i >= len(payload) {
			return nil, ErrShortFieldHeader
		}
		typeID := payload[i]
		i++
		l, n := binary.Uvarint(payload[i:])
		if n <= 0 {
			return nil, ErrShortFieldHeader
		}
		i += n
		if uint64(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: uint16(id), Type: typeID, Value: val})
	}
	return fields, nil
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// GetFields returns every field with id, in wire order.
func GetFields(fields []Field, id uint16) []Field {
	var out []Field
	for _, f := range fields {
		if f.ID == id {
			out = append(out, f)
		}
	}
	return out
}
