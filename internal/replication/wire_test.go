package replication

import (
	"errors"
	"slices"
	"testing"

	"github.com/danmuck/catalogsync/internal/descriptor"
	"github.com/danmuck/catalogsync/internal/protocol/schema"
	"github.com/danmuck/catalogsync/internal/testutil/testlog"
)

func TestFullUpdateWireRoundTrip(t *testing.T) {
	testlog.Start(t)
	full := FullUpdate{
		ListID: 3,
		Name:   "precache",
		Entries: []Addition{
			{Value: "models/x.mdl"},
			{Value: "models/y.mdl", Payload: &descriptor.Encoded{Index: 7, Data: []byte{1, 0x32, 0}}},
		},
	}
	b, err := EncodeFullUpdate(full)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if typ, err := RecordType(b); err != nil || typ != schema.MsgFullUpdate {
		t.Fatalf("record type: %d %v", typ, err)
	}
	got, err := DecodeFullUpdate(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ListID != 3 || got.Name != "precache" || len(got.Entries) != 2 {
		t.Fatalf("unexpected full update: %+v", got)
	}
	if got.Entries[0].Payload != nil {
		t.Fatalf("absent payload decoded as %+v", got.Entries[0].Payload)
	}
	p := got.Entries[1].Payload
	if p == nil || p.Index != 7 || !slices.Equal(p.Data, []byte{1, 0x32, 0}) {
		t.Fatalf("payload: %+v", p)
	}
}

func TestUpdateWireRoundTrip(t *testing.T) {
	testlog.Start(t)
	u := Update{
		ListID:     1,
		FirstIndex: 4,
		Additions:  []Addition{{Value: "a"}, {Value: "b"}},
		PayloadChanges: []PayloadChange{
			{EntryIndex: 0, Payload: &descriptor.Encoded{Index: 2, Data: []byte{0}}},
			{EntryIndex: 2},
		},
	}
	b, err := EncodeUpdate(u)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeUpdate(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ListID != 1 || got.FirstIndex != 4 {
		t.Fatalf("header: %+v", got)
	}
	if len(got.Additions) != 2 || got.Additions[0].Value != "a" || got.Additions[1].Value != "b" {
		t.Fatalf("additions: %+v", got.Additions)
	}
	if len(got.PayloadChanges) != 2 || got.PayloadChanges[1].EntryIndex != 2 || got.PayloadChanges[1].Payload != nil {
		t.Fatalf("payload changes: %+v", got.PayloadChanges)
	}
	if p := got.PayloadChanges[0].Payload; p == nil || p.Index != 2 || len(p.Data) != 1 {
		t.Fatalf("payload: %+v", p)
	}
}

func TestDecodeRejectsWrongRecordType(t *testing.T) {
	testlog.Start(t)
	b, err := EncodeUpdate(Update{ListID: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeFullUpdate(b); !errors.Is(err, ErrRecordType) {
		t.Fatalf("expected ErrRecordType, got %v", err)
	}
	if _, err := DecodeUpdate(nil); !errors.Is(err, ErrShortRecord) {
		t.Fatalf("expected ErrShortRecord, got %v", err)
	}
	if _, err := DecodeUpdate(b[:len(b)-1]); err == nil {
		t.Fatal("expected truncated record to fail")
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	testlog.Start(t)
	// update record with only a list id
	b := []byte{byte(schema.MsgUpdate), byte(schema.FieldListID), 3, 4, 0, 0, 0, 1}
	_, err := DecodeUpdate(b)
	var ve schema.ValidationError
	if !errors.As(err, &ve) || ve.FieldID != schema.FieldFirstIndex {
		t.Fatalf("expected missing first index, got %v", err)
	}
}

func TestEncodeRejectsNegativeIndices(t *testing.T) {
	testlog.Start(t)
	if _, err := EncodeUpdate(Update{ListID: -1}); !errors.Is(err, ErrFieldRange) {
		t.Fatalf("expected ErrFieldRange, got %v", err)
	}
	if _, err := EncodeUpdate(Update{PayloadChanges: []PayloadChange{{EntryIndex: -2}}}); !errors.Is(err, ErrFieldRange) {
		t.Fatalf("expected ErrFieldRange, got %v", err)
	}
}

func TestRecordsDriveReceiver(t *testing.T) {
	testlog.Start(t)
	tx, ps, rx := pair(t)
	l := mustList(t, tx, "sounds")
	mustAdd(t, l, "step.wav", sound(t, ps, 0.75, 12))
	local := mustList(t, rx, "sounds")

	full, err := tx.CreateFullUpdate(l.Handle())
	if err != nil {
		t.Fatalf("full: %v", err)
	}
	b, err := EncodeFullUpdate(full)
	if err != nil {
		t.Fatalf("encode full: %v", err)
	}
	decoded, err := DecodeFullUpdate(b)
	if err != nil {
		t.Fatalf("decode full: %v", err)
	}
	if err := rx.ProcessFullUpdate(decoded); err != nil {
		t.Fatalf("apply full: %v", err)
	}
	drain(t, tx)

	if err := l.SetPayload(0, sound(t, ps, 0.75, 13)); err != nil {
		t.Fatalf("set: %v", err)
	}
	for _, u := range drain(t, tx) {
		b, err := EncodeUpdate(u)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		decoded, err := DecodeUpdate(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if err := rx.ProcessUpdate(decoded); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	e, _ := local.Entry(0)
	if v, _ := e.Payload().Get("pitch"); v.Int() != 13 {
		t.Fatalf("pitch: %v", v)
	}
	if v, _ := e.Payload().Get("volume"); v.Float() != 0.75 {
		t.Fatalf("volume: %v", v)
	}
}
