package notify

import "sync"

// Ledger keeps the latest event per bundle in memory, dropping the oldest bundle beyond capacity.
type Ledger struct {
	mu       sync.Mutex
	capacity int
	order    []string
	latest   map[string]Event
}

// NewLedger creates an empty ledger; capacity <= 0 means 1024.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Ledger{capacity: capacity, latest: make(map[string]Event, capacity)}
}

// Notify records e as the latest state of its bundle.
func (l *Ledger) Notify(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.latest[e.BundleID]; !ok {
		l.order = append(l.order, e.BundleID)
		if len(l.order) > l.capacity {
			delete(l.latest, l.order[0])
			l.order = l.order[1:]
		}
	}
	l.latest[e.BundleID] = e
}

// Latest returns the newest event recorded for id.
func (l *Ledger) Latest(id string) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.latest[id]
	return e, ok
}

// Snapshot returns the latest event of every tracked bundle, oldest first.
func (l *Ledger) Snapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.latest[id])
	}
	return out
}
