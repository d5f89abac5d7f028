package region

import (
	"context"
	"time"
)

// DefaultPollInterval is how often job status is re-fetched while a
// separation is in flight.
const DefaultPollInterval = 2 * time.Second

// Poller re-runs a status check on a fixed interval until the check reports a
// terminal state or the context is cancelled (the user navigated away). The
// underlying timer is always released; a poller cannot leak.
type Poller struct {
	interval time.Duration
	check    func(ctx context.Context) (done bool)
}

// NewPoller creates a poller. A non-positive interval falls back to
// DefaultPollInterval.
func NewPoller(interval time.Duration, check func(ctx context.Context) bool) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, check: check}
}

// Run blocks until the check reports done or ctx is cancelled. The first
// check fires after one interval, matching a UI that renders the submitted
// state immediately and polls afterwards.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.check(ctx) {
				return
			}
		}
	}
}
