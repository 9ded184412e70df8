package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DriftThreshold is how far local and server seconds may diverge
	// before the divergence counts as drift.
	DriftThreshold = 2 * time.Second

	// DriftSustain is how long the divergence must persist before a
	// resync fires. Filters single-tick blips.
	DriftSustain = 1 * time.Second

	// ResyncDebounce is the minimum gap between automatic resyncs so a
	// flapping connection cannot cause a resync storm.
	ResyncDebounce = 15 * time.Second
)

// DriftDetector watches locally computed seconds against server-confirmed
// seconds and triggers a refetch when they silently diverge (tab sleep,
// missed ticks). Observations arrive on the coalesced ~1s tick.
type DriftDetector struct {
	mu  sync.Mutex
	clk clockwork.Clock

	threshold time.Duration
	sustain   time.Duration
	debounce  time.Duration

	exceededSince *time.Time
	lastResync    time.Time

	onResync func()
}

// NewDriftDetector creates a detector with the default thresholds.
// onResync is invoked (on the observer's goroutine) when a resync is due.
func NewDriftDetector(clk clockwork.Clock, onResync func()) *DriftDetector {
	return &DriftDetector{
		clk:       clk,
		threshold: DriftThreshold,
		sustain:   DriftSustain,
		debounce:  ResyncDebounce,
		onResync:  onResync,
	}
}

// Observe records one comparison of local versus server-confirmed seconds.
// Returns true when a resync was triggered.
func (d *DriftDetector) Observe(localSeconds, serverSeconds float64) bool {
	d.mu.Lock()

	diff := time.Duration((localSeconds - serverSeconds) * float64(time.Second))
	if diff < 0 {
		diff = -diff
	}

	now := d.clk.Now()

	if diff <= d.threshold {
		d.exceededSince = nil
		d.mu.Unlock()
		return false
	}

	if d.exceededSince == nil {
		t := now
		d.exceededSince = &t
		d.mu.Unlock()
		return false
	}

	if now.Sub(*d.exceededSince) <= d.sustain {
		d.mu.Unlock()
		return false
	}

	if !d.lastResync.IsZero() && now.Sub(d.lastResync) < d.debounce {
		d.mu.Unlock()
		return false
	}

	d.lastResync = now
	d.exceededSince = nil
	cb := d.onResync
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
	return true
}

// NoteResync records an externally initiated resync (e.g. an explicit
// operator refresh) so the debounce window accounts for it.
func (d *DriftDetector) NoteResync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastResync = d.clk.Now()
	d.exceededSince = nil
}
