package soft

import "sync"

// JournalAction discriminates journal entries.
type JournalAction string

const (
	ActionCreate  JournalAction = "create"
	ActionDestroy JournalAction = "destroy"
)

// JournalEvent records one handle lifecycle transition.
type JournalEvent struct {
	Action JournalAction
	Object string
	ID     uint64
}

// Journal is an ordered record of every create and destroy the driver
// performed. Tests use it to check teardown ordering.
type Journal struct {
	mu     sync.Mutex
	events []JournalEvent
}

func (j *Journal) record(action JournalAction, object string, id uint64) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, JournalEvent{Action: action, Object: object, ID: id})
}

// Events returns a copy of the recorded events in order.
func (j *Journal) Events() []JournalEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]JournalEvent, len(j.events))
	copy(out, j.events)
	return out
}

// Reset clears the journal.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = nil
}
