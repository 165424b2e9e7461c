// Package notify carries bundle status events from the relay tracker to whoever wants them.
package notify

import (
	"time"

	"github.com/rs/zerolog"
)

// Status is a bundle's last known state at the relay.
type Status string

const (
	Submitted Status = "submitted"
	Pending   Status = "pending"
	Landed    Status = "landed"
	Failed    Status = "failed"
	Invalid   Status = "invalid"
	// Unknown means tracking stopped before the relay gave a final answer.
	Unknown Status = "unknown"
)

// Final reports whether no further transitions are expected.
func (s Status) Final() bool {
	switch s {
	case Landed, Failed, Invalid, Unknown:
		return true
	}
	return false
}

// Event is one bundle status observation.
type Event struct {
	BundleID   string    `json:"bundleId"`
	Kind       string    `json:"kind"` // order|cancel
	Status     Status    `json:"status"`
	Slot       uint64    `json:"slot,omitempty"`
	Signatures []string  `json:"signatures,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier receives bundle events. Implementations must not block for long.
type Notifier interface {
	Notify(Event)
}

// Func adapts a plain function.
type Func func(Event)

func (f Func) Notify(e Event) { f(e) }

// Fanout delivers each event to every notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(e Event) {
	for _, n := range f {
		if n != nil {
			n.Notify(e)
		}
	}
}

// Log writes events to a zerolog logger; this is the fire-and-forget sink.
type Log struct{ log zerolog.Logger }

func NewLog(log zerolog.Logger) *Log { return &Log{log: log} }

func (l *Log) Notify(e Event) {
	evt := l.log.Info()
	if e.Status == Failed || e.Status == Invalid {
		evt = l.log.Warn()
	}
	evt.Str("bundle_id", e.BundleID).Str("kind", e.Kind).Str("status", string(e.Status)).Uint64("slot", e.Slot).Str("detail", e.Detail).Msg("bundle status")
}
