package service

import (
	"sync"
	"time"
)

// Countdown is the per-session timer. It is owned by its session, decrements
// once per second while running, signals expiry exactly once, and is inert
// after Stop. Every session exit path (manual submit, auto-submit, teardown)
// must call Stop; the close is idempotent.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	fired     bool
	onExpire  func()

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewCountdown(seconds int, onExpire func()) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{
		remaining: seconds,
		onExpire:  onExpire,
		stopCh:    make(chan struct{}),
	}
}

// Run drives the countdown at one tick per second until stopped. Callers run
// it in its own goroutine; tests call Tick directly instead.
func (c *Countdown) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick decrements one second, clamped at zero. The first tick that lands on
// zero fires the expiry callback; later ticks are no-ops.
func (c *Countdown) Tick() {
	c.mu.Lock()
	if c.remaining > 0 {
		c.remaining--
	}
	fire := c.remaining == 0 && !c.fired
	if fire {
		c.fired = true
	}
	cb := c.onExpire
	c.mu.Unlock()

	// Fired outside the lock; the callback re-enters the session.
	if fire && cb != nil {
		cb()
	}
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Stop halts tick delivery. Safe to call from any goroutine, any number of
// times, including from within the expiry callback.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}
