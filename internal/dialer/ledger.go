package dialer

import (
	"time"

	"github.com/google/uuid"
)

// activeCall is one in-flight origination. statusKnown is set once a status
// notification without a hangup timestamp arrives, so the timeout sweep
// will not overwrite an already-reported status with the fallback.
type activeCall struct {
	ContactID   uuid.UUID
	PhoneNumber string
	Channel     string
	StartTime   time.Time
	statusKnown bool
}

// ledger tracks currently in-flight calls keyed by call id. It is confined
// to the run's single cooperative flow, so no locking is needed.
type ledger struct {
	calls map[string]*activeCall
}

func newLedger() *ledger {
	return &ledger{calls: make(map[string]*activeCall)}
}

func (l *ledger) insert(callID string, call *activeCall) {
	l.calls[callID] = call
}

func (l *ledger) get(callID string) (*activeCall, bool) {
	call, ok := l.calls[callID]
	return call, ok
}

// remove deletes the entry. A call id is removed at most once and never
// reinserted.
func (l *ledger) remove(callID string) {
	delete(l.calls, callID)
}

func (l *ledger) size() int {
	return len(l.calls)
}
