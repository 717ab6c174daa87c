package replication

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/danmuck/catalogsync/internal/descriptor"
	"github.com/danmuck/catalogsync/internal/observability"
	"github.com/danmuck/catalogsync/internal/protocol/schema"
	"github.com/danmuck/catalogsync/internal/protocol/tlv"
)

// A record on the wire is a uvarint message type followed by TLV fields.
// Additions and payload changes are nested TLV records inside bytes fields.

var (
	ErrShortRecord   = errors.New("replication: short record")
	ErrRecordType    = errors.New("replication: unexpected record type")
	ErrFieldRange    = errors.New("replication: field out of range")
	ErrPayloadFields = errors.New("replication: payload type without data")
)

// RecordType reports the message type at the head of b.
func RecordType(b []byte) (uint32, error) {
	t, n := binary.Uvarint(b)
	if n <= 0 || t > math.MaxUint32 {
		return 0, ErrShortRecord
	}
	return uint32(t), nil
}

func EncodeFullUpdate(full FullUpdate) ([]byte, error) {
	id, err := u32(full.ListID)
	if err != nil {
		return nil, err
	}
	fields := []tlv.Field{
		tlv.NewU32(schema.FieldListID, id),
		tlv.NewString(schema.FieldListName, full.Name),
	}
	for _, add := range full.Entries {
		fields = append(fields, tlv.NewBytes(schema.FieldAddition, encodeAddition(add)))
	}
	out := record(schema.MsgFullUpdate, fields)
	observability.RecordBytes(observability.KindFull, len(out))
	return out, nil
}

func DecodeFullUpdate(b []byte) (FullUpdate, error) {
	fields, err := open(schema.MsgFullUpdate, b)
	if err != nil {
		return FullUpdate{}, err
	}
	id, err := mustField(fields, schema.FieldListID).U32()
	if err != nil {
		return FullUpdate{}, err
	}
	name, _ := mustField(fields, schema.FieldListName).Text()
	full := FullUpdate{ListID: int(id), Name: name}
	for _, f := range tlv.GetFields(fields, schema.FieldAddition) {
		add, err := decodeAddition(f.Value)
		if err != nil {
			return FullUpdate{}, fmt.Errorf("full update %q: %w", name, err)
		}
		full.Entries = append(full.Entries, add)
	}
	return full, nil
}

func EncodeUpdate(u Update) ([]byte, error) {
	id, err := u32(u.ListID)
	if err != nil {
		return nil, err
	}
	first, err := u32(u.FirstIndex)
	if err != nil {
		return nil, err
	}
	fields := []tlv.Field{
		tlv.NewU32(schema.FieldListID, id),
		tlv.NewU32(schema.FieldFirstIndex, first),
	}
	for _, add := range u.Additions {
		fields = append(fields, tlv.NewBytes(schema.FieldAddition, encodeAddition(add)))
	}
	for _, pc := range u.PayloadChanges {
		raw, err := encodePayloadChange(pc)
		if err != nil {
			return nil, err
		}
		fields = append(fields, tlv.NewBytes(schema.FieldPayloadChange, raw))
	}
	out := record(schema.MsgUpdate, fields)
	observability.RecordBytes(observability.KindUpdate, len(out))
	return out, nil
}

func DecodeUpdate(b []byte) (Update, error) {
	fields, err := open(schema.MsgUpdate, b)
	if err != nil {
		return Update{}, err
	}
	id, err := mustField(fields, schema.FieldListID).U32()
	if err != nil {
		return Update{}, err
	}
	first, err := mustField(fields, schema.FieldFirstIndex).U32()
	if err != nil {
		return Update{}, err
	}
	u := Update{ListID: int(id), FirstIndex: int(first)}
	for _, f := range tlv.GetFields(fields, schema.FieldAddition) {
		add, err := decodeAddition(f.Value)
		if err != nil {
			return Update{}, fmt.Errorf("update list_id=%d: %w", id, err)
		}
		u.Additions = append(u.Additions, add)
	}
	for _, f := range tlv.GetFields(fields, schema.FieldPayloadChange) {
		pc, err := decodePayloadChange(f.Value)
		if err != nil {
			return Update{}, fmt.Errorf("update list_id=%d: %w", id, err)
		}
		u.PayloadChanges = append(u.PayloadChanges, pc)
	}
	return u, nil
}

func record(msgType uint32, fields []tlv.Field) []byte {
	out := binary.AppendUvarint(nil, uint64(msgType))
	for _, f := range fields {
		out = tlv.AppendField(out, f)
	}
	return out
}

// open checks the record type and validates the fields against it.
func open(msgType uint32, b []byte) ([]tlv.Field, error) {
	t, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, ErrShortRecord
	}
	if t != uint64(msgType) {
		return nil, fmt.Errorf("%w: got %d want %d", ErrRecordType, t, msgType)
	}
	return nested(msgType, b[n:])
}

func nested(msgType uint32, b []byte) ([]tlv.Field, error) {
	fields, err := tlv.DecodeFields(b)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(msgType, fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// mustField is only used for fields schema.Validate has already required.
func mustField(fields []tlv.Field, id uint16) tlv.Field {
	f, _ := tlv.GetField(fields, id)
	return f
}

func encodeAddition(add Addition) []byte {
	fields := []tlv.Field{tlv.NewString(schema.FieldValue, add.Value)}
	return tlv.EncodeFields(appendPayload(fields, add.Payload))
}

func decodeAddition(b []byte) (Addition, error) {
	fields, err := nested(schema.MsgAddition, b)
	if err != nil {
		return Addition{}, err
	}
	value, _ := mustField(fields, schema.FieldValue).Text()
	payload, err := readPayload(fields)
	if err != nil {
		return Addition{}, err
	}
	return Addition{Value: value, Payload: payload}, nil
}

func encodePayloadChange(pc PayloadChange) ([]byte, error) {
	idx, err := u32(pc.EntryIndex)
	if err != nil {
		return nil, err
	}
	fields := []tlv.Field{tlv.NewU32(schema.FieldEntryIndex, idx)}
	return tlv.EncodeFields(appendPayload(fields, pc.Payload)), nil
}

func decodePayloadChange(b []byte) (PayloadChange, error) {
	fields, err := nested(schema.MsgPayloadChange, b)
	if err != nil {
		return PayloadChange{}, err
	}
	idx, err := mustField(fields, schema.FieldEntryIndex).U32()
	if err != nil {
		return PayloadChange{}, err
	}
	payload, err := readPayload(fields)
	if err != nil {
		return PayloadChange{}, err
	}
	return PayloadChange{EntryIndex: int(idx), Payload: payload}, nil
}

// A missing payload is encoded by omitting both payload fields.
func appendPayload(fields []tlv.Field, p *descriptor.Encoded) []tlv.Field {
	if p == nil {
		return fields
	}
	return append(fields,
		tlv.NewU16(schema.FieldPayloadType, p.Index),
		tlv.NewBytes(schema.FieldPayloadData, p.Data),
	)
}

func readPayload(fields []tlv.Field) (*descriptor.Encoded, error) {
	typ, ok := tlv.GetField(fields, schema.FieldPayloadType)
	if !ok {
		return nil, nil
	}
	data, ok := tlv.GetField(fields, schema.FieldPayloadData)
	if !ok {
		return nil, ErrPayloadFields
	}
	idx, err := typ.U16()
	if err != nil {
		return nil, err
	}
	raw, err := data.Bytes()
	if err != nil {
		return nil, err
	}
	return &descriptor.Encoded{Index: idx, Data: raw}, nil
}

func u32(v int) (uint32, error) {
	if v < 0 || int64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d", ErrFieldRange, v)
	}
	return uint32(v), nil
}
