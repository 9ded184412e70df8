package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is the period of the recompute signal driving clock display
// updates and drift checks.
const TickInterval = 1 * time.Second

// RunTicker invokes fn roughly every interval until ctx is cancelled.
// Ticks are delivered through the ticker's single-slot channel, so ticks
// missed while fn runs long are coalesced rather than queued.
func RunTicker(ctx context.Context, clk clockwork.Clock, interval time.Duration, fn func(now time.Time)) {
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			fn(now)
		}
	}
}
