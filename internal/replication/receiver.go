package replication

import (
	"errors"
	"fmt"

	"github.com/danmuck/catalogsync/internal/catalog"
	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/danmuck/catalogsync/internal/descriptor"
	"github.com/danmuck/catalogsync/internal/observability"
	"github.com/rs/zerolog/log"
)

// Receiver is the consumer side. Its lists are untracked and must already
// exist under the producer's names before the first FullUpdate arrives.
type Receiver struct {
	lists  *catalog.Manager
	set    *descriptor.Set
	remote map[int]*catalog.List
}

// NewReceiver seals set and builds an empty, untracked list manager.
func NewReceiver(set *descriptor.Set) *Receiver {
	set.Seal()
	return &Receiver{
		lists:  catalog.NewManager(set, nil),
		set:    set,
		remote: make(map[int]*catalog.List),
	}
}

func (r *Receiver) Lists() *catalog.Manager {
	return r.lists
}

func (r *Receiver) CreateList(name string) (*catalog.List, error) {
	return r.lists.CreateList(name)
}

// Resolve returns the local list mapped to the producer's listID.
func (r *Receiver) Resolve(listID int) (*catalog.List, bool) {
	l, ok := r.remote[listID]
	return l, ok
}

// Reset forgets every listID mapping. Local contents are kept; a resync
// re-applies full updates on top of them.
func (r *Receiver) Reset() {
	clear(r.remote)
	log.Debug().Str("side", r.set.Side()).Msg("replication.Reset")
}

// ProcessFullUpdate maps full.ListID onto the local list named full.Name
// and interns every entry. Re-applying the same snapshot is harmless.
func (r *Receiver) ProcessFullUpdate(full FullUpdate) error {
	l, ok := r.lists.List(full.Name)
	if !ok {
		delete(r.remote, full.ListID)
		return r.fail(SyncError{ListID: full.ListID, Name: full.Name, Reason: "unknown_list", Err: ErrUnknownList})
	}
	if prev, ok := r.remote[full.ListID]; ok && prev != l {
		log.Warn().
			Int("list_id", full.ListID).
			Str("previous", prev.Name()).
			Str("list", l.Name()).
			Msg("replication: list id remapped")
	}
	r.remote[full.ListID] = l

	for i, add := range full.Entries {
		idx, err := r.apply(l, add)
		if err != nil {
			delete(r.remote, full.ListID)
			return r.fail(SyncError{ListID: full.ListID, Name: full.Name, Reason: "bad_entry", Err: err})
		}
		if idx != i {
			delete(r.remote, full.ListID)
			return r.fail(SyncError{
				ListID: full.ListID,
				Name:   full.Name,
				Reason: "index_mismatch",
				Err:    fmt.Errorf("%w: %q want=%d got=%d", ErrIndexMismatch, add.Value, i, idx),
			})
		}
	}
	observability.RecordApply(r.set.Side(), observability.KindFull)
	log.Debug().
		Str("list", l.Name()).
		Int("list_id", full.ListID).
		Int("entries", len(full.Entries)).
		Msg("replication.ProcessFullUpdate")
	return nil
}

// ProcessUpdate applies an incremental record for a list already mapped by
// ProcessFullUpdate. Any failure drops the mapping.
func (r *Receiver) ProcessUpdate(u Update) error {
	l, ok := r.remote[u.ListID]
	if !ok {
		return r.fail(SyncError{ListID: u.ListID, Reason: "unmapped_list", Err: ErrUnmappedList})
	}
	if err := r.applyUpdate(l, u); err != nil {
		delete(r.remote, u.ListID)
		var se SyncError
		if !errors.As(err, &se) {
			se = SyncError{ListID: u.ListID, Name: l.Name(), Reason: "bad_record", Err: err}
		}
		return r.fail(se)
	}
	observability.RecordApply(r.set.Side(), observability.KindUpdate)
	log.Debug().
		Str("list", l.Name()).
		Int("list_id", u.ListID).
		Int("added", len(u.Additions)).
		Int("changed", len(u.PayloadChanges)).
		Msg("replication.ProcessUpdate")
	return nil
}

func (r *Receiver) applyUpdate(l *catalog.List, u Update) error {
	for i, add := range u.Additions {
		want := u.FirstIndex + i
		idx, err := r.apply(l, add)
		if err != nil {
			return err
		}
		if idx != want {
			return SyncError{
				ListID: u.ListID,
				Name:   l.Name(),
				Reason: "index_mismatch",
				Err:    fmt.Errorf("%w: %q want=%d got=%d", ErrIndexMismatch, add.Value, want, idx),
			}
		}
	}
	for _, pc := range u.PayloadChanges {
		msg, err := r.decode(pc.Payload)
		if err != nil {
			return err
		}
		if err := l.SetPayload(pc.EntryIndex, msg); err != nil {
			return err
		}
	}
	return nil
}

// apply interns add and returns its local index. An entry already present
// takes the incoming payload when it differs.
func (r *Receiver) apply(l *catalog.List, add Addition) (int, error) {
	msg, err := r.decode(add.Payload)
	if err != nil {
		return -1, err
	}
	if e, ok := l.Find(add.Value); ok {
		if !e.Payload().Equal(msg) {
			if err := l.SetPayload(e.Index(), msg); err != nil {
				return -1, err
			}
		}
		return e.Index(), nil
	}
	return l.Add(add.Value, msg)
}

func (r *Receiver) decode(p *descriptor.Encoded) (*delta.Message, error) {
	if p == nil {
		return nil, nil
	}
	return r.set.Decode(*p)
}

func (r *Receiver) fail(err SyncError) error {
	observability.RecordSyncError(r.set.Side(), err.Reason)
	log.Warn().Err(err).Msg("replication: resync required")
	return err
}
