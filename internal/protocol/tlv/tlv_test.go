package tlv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/catalogsync/internal/testutil/testlog"
)

func TestEncodeDecodeFieldsRoundTripPreservesUnknown(t *testing.T) {
	testlog.Start(t)
	in := []Field{
		{ID: 1, Type: TypeString, Value: []byte("precache")},
		{ID: 9999, Type: TypeBytes, Value: []byte{0xAA, 0xBB}}, // unknown field id
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(out))
	}
	if out[1].ID != 9999 || out[1].Type != TypeBytes || !bytes.Equal(out[1].Value, []byte{0xAA, 0xBB}) {
		t.Fatalf("unknown field not preserved: %+v", out[1])
	}
}

func TestSmallFieldHeaderIsThreeBytes(t *testing.T) {
	testlog.Start(t)
	b := EncodeField(NewString(2, "x"))
	if len(b) != 4 {
		t.Fatalf("expected 3 header bytes + 1 value byte, got %d", len(b))
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := DecodeFields([]byte{1})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
	_, err = DecodeFields([]byte{0x80})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader for cut varint, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	testlog.Start(t)
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{1, TypeString, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestTypedAccessors(t *testing.T) {
	testlog.Start(t)
	fields, err := DecodeFields(EncodeFields([]Field{
		NewU16(1, 513),
		NewU32(2, 70000),
		NewString(3, "sounds"),
		NewBytes(4, []byte{7}),
		NewU32(4, 1),
	}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v, err := fields[0].U16(); err != nil || v != 513 {
		t.Fatalf("u16: %v %v", v, err)
	}
	if v, err := fields[1].U32(); err != nil || v != 70000 {
		t.Fatalf("u32: %v %v", v, err)
	}
	if v, err := fields[2].Text(); err != nil || v != "sounds" {
		t.Fatalf("text: %v %v", v, err)
	}
	if _, err := fields[2].U32(); !errors.Is(err, ErrFieldTypeMismatch) {
		t.Fatalf("expected ErrFieldTypeMismatch, got %v", err)
	}
	if got := GetFields(fields, 4); len(got) != 2 {
		t.Fatalf("expected 2 fields with id 4, got %d", len(got))
	}
	bad := Field{ID: 9, Type: TypeU32, Value: []byte{1}}
	if _, err := bad.U32(); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}
