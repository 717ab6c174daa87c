package replication

import (
	"errors"
	"fmt"
)

var (
	// ErrResyncRequired matches every SyncError.
	ErrResyncRequired = errors.New("replication: full resync required")

	ErrUnknownList   = errors.New("replication: no local list with that name")
	ErrUnmappedList  = errors.New("replication: list id has no prior full update")
	ErrIndexMismatch = errors.New("replication: addition landed at unexpected index")
	ErrUnknownHandle = errors.New("replication: unknown list handle")
)

// SyncError reports a record that cannot be applied without breaking the
// list id mapping. The session must resync the list from a full update.
type SyncError struct {
	ListID int
	Name   string
	Reason string
	Err    error
}

func (e SyncError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("replication: list_id=%d: %s: %v", e.ListID, e.Reason, e.Err)
	}
	return fmt.Sprintf("replication: list_id=%d name=%q: %s: %v", e.ListID, e.Name, e.Reason, e.Err)
}

func (e SyncError) Unwrap() error {
	return e.Err
}

func (e SyncError) Is(target error) bool {
	return target == ErrResyncRequired
}
