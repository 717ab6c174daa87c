package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/danmuck/catalogsync/internal/descriptor"
	"github.com/rs/zerolog/log"
)

var (
	ErrBlankName       = errors.New("catalog: blank list name")
	ErrListExists      = errors.New("catalog: list already exists")
	ErrBlankValue      = errors.New("catalog: blank entry value")
	ErrIndexOutOfRange = errors.New("catalog: entry index out of range")
)

// Tracker observes mutations of the lists it is attached to.
type Tracker interface {
	Added(l *List, index int)
	Changed(l *List, index int)
	Cleared(l *List)
}

// Entry is one interned string. Index and value never change.
type Entry struct {
	index    int
	value    string
	payload  *delta.Message
	userData any
}

func (e *Entry) Index() int {
	return e.index
}

func (e *Entry) Value() string {
	return e.value
}

func (e *Entry) Payload() *delta.Message {
	return e.payload
}

// UserData is local bookkeeping and never replicated.
func (e *Entry) UserData() any {
	return e.userData
}

// List is an append-only, duplicate-free sequence of entries.
type List struct {
	name    string
	handle  int
	entries []*Entry
	set     *descriptor.Set
	tracker Tracker
}

func (l *List) Name() string {
	return l.name
}

// Handle is the process-local creation index; it is not portable.
func (l *List) Handle() int {
	return l.handle
}

func (l *List) Len() int {
	return len(l.entries)
}

// Add interns value. A present value keeps its index and the payload
// argument is ignored; nothing is marked.
func (l *List) Add(value string, payload *delta.Message) (int, error) {
	if value == "" {
		return -1, fmt.Errorf("%w: list %q", ErrBlankValue, l.name)
	}
	if e, ok := l.Find(value); ok {
		return e.index, nil
	}
	if err := l.set.Validate(payload); err != nil {
		return -1, fmt.Errorf("list %q add %q: %w", l.name, value, err)
	}
	idx := len(l.entries)
	l.entries = append(l.entries, &Entry{index: idx, value: value, payload: payload})
	if l.tracker != nil {
		l.tracker.Added(l, idx)
	}
	log.Debug().Str("list", l.name).Int("index", idx).Str("value", value).Msg("catalog.Add")
	return idx, nil
}

// SetPayload replaces the payload at index; nil clears it.
func (l *List) SetPayload(index int, payload *delta.Message) error {
	e, err := l.Entry(index)
	if err != nil {
		return err
	}
	if err := l.set.Validate(payload); err != nil {
		return fmt.Errorf("list %q set payload index=%d: %w", l.name, index, err)
	}
	e.payload = payload
	if l.tracker != nil {
		l.tracker.Changed(l, index)
	}
	log.Debug().Str("list", l.name).Int("index", index).Bool("cleared", payload == nil).Msg("catalog.SetPayload")
	return nil
}

func (l *List) UserData(index int) (any, error) {
	e, err := l.Entry(index)
	if err != nil {
		return nil, err
	}
	return e.userData, nil
}

func (l *List) SetUserData(index int, data any) error {
	e, err := l.Entry(index)
	if err != nil {
		return err
	}
	e.userData = data
	return nil
}

func (l *List) Entry(index int) (*Entry, error) {
	if index < 0 || index >= len(l.entries) {
		return nil, fmt.Errorf("%w: list %q index=%d len=%d", ErrIndexOutOfRange, l.name, index, len(l.entries))
	}
	return l.entries[index], nil
}

// Find returns the first entry holding value.
func (l *List) Find(value string) (*Entry, bool) {
	for _, e := range l.entries {
		if e.value == value {
			return e, true
		}
	}
	return nil, false
}

// Entries returns the entries in insertion order.
func (l *List) Entries() []*Entry {
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Values returns the interned strings in index order.
func (l *List) Values() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.value
	}
	return out
}

func (l *List) clear() {
	l.entries = nil
	if l.tracker != nil {
		l.tracker.Cleared(l)
	}
}

func validName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrBlankName
	}
	return name, nil
}
