package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultInterval    = 2 * time.Second
	defaultMaxAttempts = 10
)

// Outcome summarizes a cancellation watch. Confirmed is false when the attempt budget ran out first;
// callers treat that as done without knowing whether the cancellation landed.
type Outcome struct {
	Confirmed bool     `json:"confirmed"`
	Attempts  int      `json:"attempts"`
	Remaining []string `json:"remaining,omitempty"`
}

// Watcher polls the order listing until cancelled ids disappear.
type Watcher struct {
	lister      Lister
	log         zerolog.Logger
	interval    time.Duration
	maxAttempts int
	wait        func(ctx context.Context, d time.Duration) error
}

// Option configures Watcher construction parameters.
type Option func(*Watcher)

// WithInterval overrides the pause between polls.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithMaxAttempts bounds how many listings are fetched.
func WithMaxAttempts(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

func NewWatcher(lister Lister, log zerolog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		lister:      lister,
		log:         log,
		interval:    defaultInterval,
		maxAttempts: defaultMaxAttempts,
		wait:        sleep,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AwaitCancellation polls wallet's orders until none of ids is listed or the attempt budget is spent.
// Exhausting the budget is not an error. Only context cancellation is.
func (w *Watcher) AwaitCancellation(ctx context.Context, wallet string, ids []string) (Outcome, error) {
	out := Outcome{Remaining: append([]string(nil), ids...)}
	if len(ids) == 0 {
		out.Confirmed = true
		return out, nil
	}
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		out.Attempts = attempt
		list, err := w.lister.OpenOrders(ctx, wallet)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			w.log.Warn().Err(err).Int("attempt", attempt).Str("wallet", wallet).Msg("order listing failed")
		default:
			out.Remaining = Contains(list, ids)
			if len(out.Remaining) == 0 {
				out.Confirmed = true
				return out, nil
			}
		}
		if attempt == w.maxAttempts {
			break
		}
		if err := w.wait(ctx, w.interval); err != nil {
			return out, err
		}
	}
	w.log.Info().Int("attempts", out.Attempts).Strs("remaining", out.Remaining).Msg("gave up waiting for cancellation")
	return out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
