// Package descriptor maps payload schemas to small wire-stable indices.
//
// Producer and consumer each hold their own Set and must register the same
// index for the same schema name before exchanging payloads. Sets are
// filled at start-up and sealed before traffic begins.
package descriptor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilSchema      = errors.New("descriptor: schema is nil")
	ErrDuplicateIndex = errors.New("descriptor: wire index already registered")
	ErrDuplicateName  = errors.New("descriptor: schema name already registered")
	ErrUnregistered   = errors.New("descriptor: payload type not registered")
	ErrUnknownIndex   = errors.New("descriptor: unknown wire index")
	ErrSealed         = errors.New("descriptor: set is sealed")
)

// Encoded is a payload in wire form: its type index and delta bytes.
type Encoded struct {
	Index uint16
	Data  []byte
}

// Set is one side's registry of payload schemas.
type Set struct {
	side    string
	byIndex map[uint16]*delta.Schema
	byName  map[string]uint16
	sealed  bool
}

func NewSet(side string) *Set {
	return &Set{
		side:    side,
		byIndex: make(map[uint16]*delta.Schema),
		byName:  make(map[string]uint16),
	}
}

func (s *Set) Side() string {
	return s.side
}

// Register binds schema to index. Both must be unused.
func (s *Set) Register(index uint16, schema *delta.Schema) error {
	if schema == nil {
		return ErrNilSchema
	}
	if s.sealed {
		return fmt.Errorf("%w: register %q", ErrSealed, schema.Name())
	}
	if existing, ok := s.byIndex[index]; ok {
		return fmt.Errorf("%w: index=%d held by %q", ErrDuplicateIndex, index, existing.Name())
	}
	if existing, ok := s.byName[schema.Name()]; ok {
		return fmt.Errorf("%w: %q at index=%d", ErrDuplicateName, schema.Name(), existing)
	}
	s.byIndex[index] = schema
	s.byName[schema.Name()] = index
	log.Debug().
		Str("side", s.side).
		Str("schema", schema.Name()).
		Uint16("index", index).
		Int("fields", schema.Len()).
		Msg("descriptor.Register")
	return nil
}

// Seal freezes the set. Later Register calls fail.
func (s *Set) Seal() {
	s.sealed = true
}

func (s *Set) Sealed() bool {
	return s.sealed
}

func (s *Set) Len() int {
	return len(s.byIndex)
}

// Indices returns registered indices in ascending order.
func (s *Set) Indices() []uint16 {
	out := make([]uint16, 0, len(s.byIndex))
	for idx := range s.byIndex {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Set) Schema(index uint16) (*delta.Schema, bool) {
	schema, ok := s.byIndex[index]
	return schema, ok
}

func (s *Set) Lookup(name string) (*delta.Schema, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.byIndex[idx], true
}

// IndexOf returns the wire index of schema. A different schema carrying a
// registered name is still unregistered.
func (s *Set) IndexOf(schema *delta.Schema) (uint16, error) {
	if schema == nil {
		return 0, ErrNilSchema
	}
	idx, ok := s.byName[schema.Name()]
	if !ok || s.byIndex[idx] != schema {
		return 0, fmt.Errorf("%w: %q (side=%s)", ErrUnregistered, schema.Name(), s.side)
	}
	return idx, nil
}

// Validate reports whether msg may be attached to a catalog entry.
// A nil message is always valid.
func (s *Set) Validate(msg *delta.Message) error {
	if msg == nil {
		return nil
	}
	_, err := s.IndexOf(msg.Schema())
	return err
}

// Encode writes msg against its schema's zero values.
func (s *Set) Encode(msg *delta.Message) (Encoded, error) {
	idx, err := s.IndexOf(msg.Schema())
	if err != nil {
		return Encoded{}, err
	}
	w := delta.NewWriter(2 * msg.Schema().Len())
	msg.EncodeDelta(w, nil)
	return Encoded{Index: idx, Data: w.Bytes()}, nil
}

// Decode resolves e's index locally and rebuilds the message.
func (s *Set) Decode(e Encoded) (*delta.Message, error) {
	schema, ok := s.byIndex[e.Index]
	if !ok {
		return nil, fmt.Errorf("%w: index=%d (side=%s)", ErrUnknownIndex, e.Index, s.side)
	}
	r := delta.NewReader(e.Data)
	msg, err := schema.DecodeMessage(r, nil)
	if err != nil {
		return nil, fmt.Errorf("descriptor: decode index=%d: %w", e.Index, err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("descriptor: decode index=%d: %d trailing bytes", e.Index, r.Remaining())
	}
	return msg, nil
}
