package replication

import (
	"fmt"
	"maps"
	"slices"

	"github.com/danmuck/catalogsync/internal/catalog"
	"github.com/danmuck/catalogsync/internal/descriptor"
	"github.com/danmuck/catalogsync/internal/observability"
	"github.com/rs/zerolog/log"
)

// DirtyState is the set of indices touched in one list since the last drain.
type DirtyState struct {
	Added   map[int]struct{}
	Changed map[int]struct{}
}

func newDirtyState() *DirtyState {
	return &DirtyState{
		Added:   make(map[int]struct{}),
		Changed: make(map[int]struct{}),
	}
}

func (d *DirtyState) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0
}

func (d *DirtyState) reset() {
	clear(d.Added)
	clear(d.Changed)
}

// dirtyTracker receives catalog mutations for the transmitter's lists.
type dirtyTracker struct {
	states map[*catalog.List]*DirtyState
}

func (t *dirtyTracker) state(l *catalog.List) *DirtyState {
	d, ok := t.states[l]
	if !ok {
		d = newDirtyState()
		t.states[l] = d
	}
	return d
}

func (t *dirtyTracker) Added(l *catalog.List, index int) {
	t.state(l).Added[index] = struct{}{}
}

func (t *dirtyTracker) Changed(l *catalog.List, index int) {
	t.state(l).Changed[index] = struct{}{}
}

func (t *dirtyTracker) Cleared(l *catalog.List) {
	t.state(l).reset()
}

// Transmitter is the producer side: it owns tracked lists and drains them.
type Transmitter struct {
	lists   *catalog.Manager
	set     *descriptor.Set
	tracker *dirtyTracker
}

// NewTransmitter seals set and builds an empty, tracked list manager.
func NewTransmitter(set *descriptor.Set) *Transmitter {
	set.Seal()
	tr := &dirtyTracker{states: make(map[*catalog.List]*DirtyState)}
	return &Transmitter{
		lists:   catalog.NewManager(set, tr),
		set:     set,
		tracker: tr,
	}
}

func (t *Transmitter) Lists() *catalog.Manager {
	return t.lists
}

func (t *Transmitter) CreateList(name string) (*catalog.List, error) {
	return t.lists.CreateList(name)
}

// Pending returns the sorted added and changed indices awaiting the next
// drain for the list at handle.
func (t *Transmitter) Pending(handle int) (added, changed []int) {
	l, ok := t.lists.ListByHandle(handle)
	if !ok {
		return nil, nil
	}
	d, ok := t.tracker.states[l]
	if !ok {
		return nil, nil
	}
	return slices.Sorted(maps.Keys(d.Added)), slices.Sorted(maps.Keys(d.Changed))
}

// CreateUpdates drains every dirty list into one Update, in handle order,
// and clears the drained state. Clean lists produce nothing.
func (t *Transmitter) CreateUpdates() ([]Update, error) {
	var out []Update
	for _, l := range t.lists.Lists() {
		d, ok := t.tracker.states[l]
		if !ok || d.Empty() {
			continue
		}
		u, err := t.drain(l, d)
		d.reset()
		if err != nil {
			return out, err
		}
		observability.RecordTransmit(t.set.Side(), observability.KindUpdate, len(u.Additions), len(u.PayloadChanges))
		log.Debug().
			Str("list", l.Name()).
			Int("list_id", u.ListID).
			Int("first_index", u.FirstIndex).
			Int("added", len(u.Additions)).
			Int("changed", len(u.PayloadChanges)).
			Msg("replication.CreateUpdates")
		out = append(out, u)
	}
	return out, nil
}

func (t *Transmitter) drain(l *catalog.List, d *DirtyState) (Update, error) {
	added := slices.Sorted(maps.Keys(d.Added))
	u := Update{ListID: l.Handle(), FirstIndex: l.Len()}
	if len(added) > 0 {
		u.FirstIndex = added[0]
	}
	for i, idx := range added {
		if idx != u.FirstIndex+i {
			return Update{}, fmt.Errorf("replication: list %q added indices not contiguous: %v", l.Name(), added)
		}
		add, err := t.addition(l, idx)
		if err != nil {
			return Update{}, err
		}
		u.Additions = append(u.Additions, add)
	}
	for _, idx := range slices.Sorted(maps.Keys(d.Changed)) {
		// a fresh addition already carries its current payload
		if _, ok := d.Added[idx]; ok {
			continue
		}
		e, err := l.Entry(idx)
		if err != nil {
			return Update{}, err
		}
		payload, err := t.encode(e)
		if err != nil {
			return Update{}, err
		}
		u.PayloadChanges = append(u.PayloadChanges, PayloadChange{EntryIndex: idx, Payload: payload})
	}
	return u, nil
}

func (t *Transmitter) addition(l *catalog.List, idx int) (Addition, error) {
	e, err := l.Entry(idx)
	if err != nil {
		return Addition{}, err
	}
	payload, err := t.encode(e)
	if err != nil {
		return Addition{}, err
	}
	return Addition{Value: e.Value(), Payload: payload}, nil
}

func (t *Transmitter) encode(e *catalog.Entry) (*descriptor.Encoded, error) {
	if e.Payload() == nil {
		return nil, nil
	}
	enc, err := t.set.Encode(e.Payload())
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// CreateFullUpdate snapshots the list at handle regardless of dirty state.
// Send it once per new receiver, before any Update for the list.
func (t *Transmitter) CreateFullUpdate(handle int) (FullUpdate, error) {
	l, ok := t.lists.ListByHandle(handle)
	if !ok {
		return FullUpdate{}, fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
	}
	full := FullUpdate{ListID: l.Handle(), Name: l.Name(), Entries: make([]Addition, 0, l.Len())}
	for idx := 0; idx < l.Len(); idx++ {
		add, err := t.addition(l, idx)
		if err != nil {
			return FullUpdate{}, err
		}
		full.Entries = append(full.Entries, add)
	}
	observability.RecordTransmit(t.set.Side(), observability.KindFull, len(full.Entries), 0)
	log.Debug().
		Str("list", full.Name).
		Int("list_id", full.ListID).
		Int("entries", len(full.Entries)).
		Msg("replication.CreateFullUpdate")
	return full, nil
}

// CreateFullUpdates snapshots every list in handle order.
func (t *Transmitter) CreateFullUpdates() ([]FullUpdate, error) {
	out := make([]FullUpdate, 0, t.lists.Len())
	for _, l := range t.lists.Lists() {
		full, err := t.CreateFullUpdate(l.Handle())
		if err != nil {
			return nil, err
		}
		out = append(out, full)
	}
	return out, nil
}
