package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kirarisk/JupLimits/internal/notify"
)

// StatusSource is the part of Client the tracker polls.
type StatusSource interface {
	InflightStatuses(ctx context.Context, ids []string) ([]InflightStatus, error)
}

// Tracker follows submitted bundles in the background and reports status changes to a notifier.
// Nothing waits on it; each bundle is polled a bounded number of times.
type Tracker struct {
	source   StatusSource
	notifier notify.Notifier
	log      zerolog.Logger
	interval time.Duration
	attempts int

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewTracker(source StatusSource, notifier notify.Notifier, log zerolog.Logger, interval time.Duration, attempts int) *Tracker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if attempts <= 0 {
		attempts = 15
	}
	return &Tracker{
		source:   source,
		notifier: notifier,
		log:      log,
		interval: interval,
		attempts: attempts,
		done:     make(chan struct{}),
	}
}

// Track starts following bundleID and returns immediately. ctx is usually a request context that
// ends before the bundle lands, so only its values are kept; Stop ends the polling.
func (t *Tracker) Track(ctx context.Context, bundleID, kind string) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		t.follow(ctx, bundleID, kind)
	}()
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
}

// Wait blocks until every tracked bundle reached a final status or gave up.
func (t *Tracker) Wait() { t.wg.Wait() }

// Stop abandons every tracked bundle and waits for the pollers to exit.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
	t.wg.Wait()
}

func (t *Tracker) follow(ctx context.Context, bundleID, kind string) {
	last := notify.Submitted
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= t.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		statuses, err := t.source.InflightStatuses(ctx, []string{bundleID})
		if err != nil {
			t.log.Debug().Err(err).Str("bundle_id", bundleID).Int("attempt", attempt).Msg("bundle status poll failed")
			continue
		}
		if len(statuses) == 0 {
			continue
		}
		st := statuses[0]
		status := mapInflight(st.Status)
		if status == last {
			continue
		}
		last = status
		t.notifier.Notify(notify.Event{
			BundleID: bundleID,
			Kind:     kind,
			Status:   status,
			Slot:     st.LandedSlot,
			At:       time.Now().UTC(),
		})
		if status.Final() {
			return
		}
	}
	t.notifier.Notify(notify.Event{
		BundleID: bundleID,
		Kind:     kind,
		Status:   notify.Unknown,
		Detail:   "stopped polling before a final status",
		At:       time.Now().UTC(),
	})
}

func mapInflight(s string) notify.Status {
	switch s {
	case "Landed":
		return notify.Landed
	case "Failed":
		return notify.Failed
	case "Invalid":
		return notify.Invalid
	default:
		return notify.Pending
	}
}
