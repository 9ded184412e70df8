package clock

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestDriftDetector_WithinThresholdNeverFires(t *testing.T) {
	clk := clockwork.NewFakeClock()
	fired := 0
	d := NewDriftDetector(clk, func() { fired++ })

	for i := 0; i < 20; i++ {
		assert.False(t, d.Observe(100, 101.5))
		clk.Advance(time.Second)
	}
	assert.Zero(t, fired)
}

func TestDriftDetector_SustainedDriftFires(t *testing.T) {
	clk := clockwork.NewFakeClock()
	fired := 0
	d := NewDriftDetector(clk, func() { fired++ })

	// First exceeding observation only arms the detector.
	assert.False(t, d.Observe(100, 105))
	clk.Advance(500 * time.Millisecond)
	assert.False(t, d.Observe(100, 105), "not sustained yet")
	clk.Advance(time.Second)
	assert.True(t, d.Observe(100, 105))
	assert.Equal(t, 1, fired)
}

func TestDriftDetector_BlipResets(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDriftDetector(clk, nil)

	assert.False(t, d.Observe(100, 105))
	clk.Advance(2 * time.Second)
	// A reading back inside the threshold disarms.
	assert.False(t, d.Observe(100, 100.5))
	// The next excursion starts over.
	assert.False(t, d.Observe(100, 105))
	clk.Advance(500 * time.Millisecond)
	assert.False(t, d.Observe(100, 105))
}

func TestDriftDetector_Debounce(t *testing.T) {
	clk := clockwork.NewFakeClock()
	fired := 0
	d := NewDriftDetector(clk, func() { fired++ })

	trigger := func() bool {
		d.Observe(100, 105)
		clk.Advance(2 * time.Second)
		return d.Observe(100, 105)
	}

	assert.True(t, trigger())
	// Inside the debounce window the second sustained drift stays silent.
	assert.False(t, trigger())
	assert.Equal(t, 1, fired)

	clk.Advance(ResyncDebounce)
	assert.True(t, trigger())
	assert.Equal(t, 2, fired)
}

func TestDriftDetector_NoteResyncStartsDebounce(t *testing.T) {
	clk := clockwork.NewFakeClock()
	d := NewDriftDetector(clk, nil)

	d.NoteResync()
	d.Observe(100, 105)
	clk.Advance(2 * time.Second)
	assert.False(t, d.Observe(100, 105), "manual refresh counts toward the debounce")
}

func TestRunTicker(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	ticks := make(chan time.Time, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunTicker(ctx, clk, TickInterval, func(now time.Time) {
			ticks <- now
		})
	}()

	clk.BlockUntil(1)
	clk.Advance(TickInterval)
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("no tick delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop on cancel")
	}
}
