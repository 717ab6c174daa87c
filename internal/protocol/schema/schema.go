package schema

import (
	"fmt"

	"github.com/danmuck/catalogsync/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs for catalog records. Additions and payload changes are
// nested records carried inside the bytes of an update field.
const (
	MsgFullUpdate    uint32 = 1
	MsgUpdate        uint32 = 2
	MsgAddition      uint32 = 3
	MsgPayloadChange uint32 = 4
)

// Field IDs. Small ids keep varint headers to one byte.
const (
	FieldListID     uint16 = 1
	FieldListName   uint16 = 2
	FieldFirstIndex uint16 = 3

	FieldAddition      uint16 = 10
	FieldPayloadChange uint16 = 11

	FieldValue      uint16 = 20
	FieldEntryIndex uint16 = 21

	FieldPayloadType uint16 = 30
	FieldPayloadData uint16 = 31
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgFullUpdate: {
		{FieldListID, tlv.TypeU32},
		{FieldListName, tlv.TypeString},
	},
	MsgUpdate: {
		{FieldListID, tlv.TypeU32},
		{FieldFirstIndex, tlv.TypeU32},
	},
	MsgAddition: {
		{FieldValue, tlv.TypeString},
	},
	MsgPayloadChange: {
		{FieldEntryIndex, tlv.TypeU32},
	},
}

// Optional fields that must still carry the right type when present.
var optional = map[uint16]uint8{
	FieldAddition:      tlv.TypeBytes,
	FieldPayloadChange: tlv.TypeBytes,
	FieldPayloadType:   tlv.TypeU16,
	FieldPayloadData:   tlv.TypeBytes,
}

// Validate enforces required fields and field types for a message type.
// Unknown fields are ignored so newer producers can add fields.
func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		log.Error().Uint32("message_type", messageType).Msg("schema.Validate unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Msg("schema.Validate missing field")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema.Validate type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	for _, f := range fields {
		if want, ok := optional[f.ID]; ok && f.Type != want {
			return ValidationError{MessageType: messageType, FieldID: f.ID, Reason: "type mismatch"}
		}
	}
	log.Trace().Uint32("message_type", messageType).Int("fields", len(fields)).Msg("schema.Validate ok")
	return nil
}
