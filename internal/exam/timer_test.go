package exam

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRemaining(t *testing.T) {
	end := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		left time.Duration
		want int
	}{
		{"exact", 60 * time.Second, 60},
		{"rounds down", 1499 * time.Millisecond, 1},
		{"rounds up", 1500 * time.Millisecond, 2},
		{"zero", 0, 0},
		{"past end", -5 * time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Remaining(end, end.Add(-tt.left)); got != tt.want {
				t.Errorf("Remaining = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCountdownFiresOnce(t *testing.T) {
	clock := newFakeClock()
	var fired atomic.Int32
	cd := NewCountdown(clock.Now().Add(time.Second), clock.Now, func() { fired.Add(1) })

	if got := cd.Tick(); got != 1 {
		t.Fatalf("Tick before end = %d, want 1", got)
	}
	if fired.Load() != 0 {
		t.Fatal("fired before end")
	}

	clock.Advance(1000 * time.Millisecond)
	if got := cd.Tick(); got != 0 {
		t.Errorf("Tick at end = %d, want 0", got)
	}
	cd.Tick()
	clock.Advance(time.Minute)
	cd.Tick()

	if n := fired.Load(); n != 1 {
		t.Errorf("expiry fired %d times, want 1", n)
	}
	if !cd.Fired() {
		t.Error("Fired() should report true")
	}
}

func TestCountdownStopIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	cd := NewCountdown(clock.Now().Add(time.Hour), clock.Now, nil)
	cd.Start()
	cd.Stop()
	cd.Stop()
	if cd.Fired() {
		t.Error("stopped countdown should not fire")
	}
}

func TestCountdownStartFiresFromTicker(t *testing.T) {
	clock := newFakeClock()
	done := make(chan struct{})
	cd := NewCountdown(clock.Now(), clock.Now, func() { close(done) })
	cd.interval = 5 * time.Millisecond
	cd.Start()
	defer cd.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not fire")
	}
}
