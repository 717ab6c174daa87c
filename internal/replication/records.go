// Package replication keeps consumer catalogs in step with a producer.
//
// The Transmitter drains per-list dirty state into Update records once per
// outgoing frame and builds FullUpdate snapshots for new receivers. The
// Receiver applies them. For every (list, receiver) pair exactly one
// FullUpdate must be applied before any Update for that list, and Updates
// for one list must be applied in production order. Neither side locks:
// both are driven from a single tick loop.
package replication

import "github.com/danmuck/catalogsync/internal/descriptor"

// Addition carries one new entry: its string and optional payload.
type Addition struct {
	Value   string
	Payload *descriptor.Encoded
}

// PayloadChange replaces the payload of an existing entry. A nil Payload
// clears it.
type PayloadChange struct {
	EntryIndex int
	Payload    *descriptor.Encoded
}

// FullUpdate is a complete snapshot of one list, keyed by name so the
// receiver can map the producer's ListID onto its own list.
type FullUpdate struct {
	ListID  int
	Name    string
	Entries []Addition
}

// Update is what changed in one list since the previous drain.
// Additions land at FirstIndex, FirstIndex+1, ... on the receiver.
type Update struct {
	ListID         int
	FirstIndex     int
	Additions      []Addition
	PayloadChanges []PayloadChange
}

func (u Update) Empty() bool {
	return len(u.Additions) == 0 && len(u.PayloadChanges) == 0
}
