// Package catalog owns named lists of interned strings.
//
// Lists are created during setup and never destroyed individually. Entries
// are appended and never removed; only their payload and user data change.
// Nothing here is safe for concurrent use: callers drive it from one tick
// loop.
package catalog

import (
	"fmt"

	"github.com/danmuck/catalogsync/internal/descriptor"
	"github.com/rs/zerolog/log"
)

// Manager indexes lists by name and by local handle.
type Manager struct {
	lists   []*List
	byName  map[string]*List
	set     *descriptor.Set
	tracker Tracker
}

// NewManager binds lists to set for payload validation. tracker may be nil.
func NewManager(set *descriptor.Set, tracker Tracker) *Manager {
	if set == nil {
		set = descriptor.NewSet("local")
	}
	return &Manager{
		byName:  make(map[string]*List),
		set:     set,
		tracker: tracker,
	}
}

func (m *Manager) Descriptors() *descriptor.Set {
	return m.set
}

// CreateList adds a list with the next sequential handle. Names are exact:
// no trimming or case folding beyond rejecting blanks.
func (m *Manager) CreateList(name string) (*List, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	if _, ok := m.byName[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrListExists, name)
	}
	l := &List{
		name:    name,
		handle:  len(m.lists),
		set:     m.set,
		tracker: m.tracker,
	}
	m.lists = append(m.lists, l)
	m.byName[name] = l
	log.Debug().Str("side", m.set.Side()).Str("list", name).Int("handle", l.handle).Msg("catalog.CreateList")
	return l, nil
}

func (m *Manager) List(name string) (*List, bool) {
	l, ok := m.byName[name]
	return l, ok
}

func (m *Manager) ListByHandle(handle int) (*List, bool) {
	if handle < 0 || handle >= len(m.lists) {
		return nil, false
	}
	return m.lists[handle], true
}

// Lists returns every list in handle order.
func (m *Manager) Lists() []*List {
	out := make([]*List, len(m.lists))
	copy(out, m.lists)
	return out
}

func (m *Manager) Len() int {
	return len(m.lists)
}

// Clear empties every list but keeps the lists themselves.
func (m *Manager) Clear() {
	for _, l := range m.lists {
		l.clear()
	}
	log.Debug().Str("side", m.set.Side()).Int("lists", len(m.lists)).Msg("catalog.Clear")
}
