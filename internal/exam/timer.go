package exam

import (
	"math"
	"sync"
	"time"
)

// TickInterval is how often a running countdown recomputes the remaining time.
const TickInterval = time.Second

// Remaining returns the whole seconds left until end, never negative.
func Remaining(end, now time.Time) int {
	ms := end.Sub(now).Milliseconds()
	secs := int(math.Round(float64(ms) / 1000))
	if secs < 0 {
		return 0
	}
	return secs
}

// Countdown fires onExpire exactly once when the end time is reached.
type Countdown struct {
	end      time.Time
	now      func() time.Time
	onExpire func()
	interval time.Duration

	mu       sync.Mutex
	fired    bool
	stopOnce sync.Once
	stop     chan struct{}
}

// NewCountdown creates a stopped countdown to end.
func NewCountdown(end time.Time, now func() time.Time, onExpire func()) *Countdown {
	if now == nil {
		now = time.Now
	}
	return &Countdown{
		end:      end,
		now:      now,
		onExpire: onExpire,
		interval: TickInterval,
		stop:     make(chan struct{}),
	}
}

// End returns the absolute end time.
func (c *Countdown) End() time.Time { return c.end }

// Remaining returns the seconds left at the countdown's current clock.
func (c *Countdown) Remaining() int {
	return Remaining(c.end, c.now())
}

// Fired reports whether the expiry callback has run.
func (c *Countdown) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Tick recomputes the remaining time. The first tick that observes zero stops
// the countdown and invokes onExpire; later ticks are no-ops.
func (c *Countdown) Tick() int {
	left := c.Remaining()
	if left > 0 {
		return left
	}
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return 0
	}
	c.fired = true
	c.mu.Unlock()

	c.Stop()
	if c.onExpire != nil {
		c.onExpire()
	}
	return 0
}

// Start runs Tick on a ticker until the countdown fires or Stop is called.
func (c *Countdown) Start() {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
}

// Stop cancels the ticker. It does not wait for an in-progress expiry callback.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
