package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountdownTickDecrementsAndClamps(t *testing.T) {
	c := NewCountdown(3, nil)
	assert.Equal(t, 3, c.Remaining())

	c.Tick()
	c.Tick()
	assert.Equal(t, 1, c.Remaining())

	c.Tick()
	c.Tick()
	c.Tick()
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdownFiresExactlyOnce(t *testing.T) {
	fired := 0
	c := NewCountdown(2, func() { fired++ })

	c.Tick()
	assert.Equal(t, 0, fired)
	c.Tick()
	assert.Equal(t, 1, fired)
	c.Tick()
	c.Tick()
	assert.Equal(t, 1, fired)
}

func TestCountdownZeroDurationFiresOnFirstTick(t *testing.T) {
	fired := 0
	c := NewCountdown(0, func() { fired++ })

	c.Tick()
	assert.Equal(t, 1, fired)
	c.Tick()
	assert.Equal(t, 1, fired)
}

func TestCountdownStopIsIdempotent(t *testing.T) {
	c := NewCountdown(10, nil)

	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()

	c.Stop()
	c.Stop()
	c.Stop()
	<-done
	assert.Equal(t, 10, c.Remaining())
}

func TestCountdownStopFromCallback(t *testing.T) {
	var c *Countdown
	c = NewCountdown(1, func() { c.Stop() })
	c.Tick()
	assert.Equal(t, 0, c.Remaining())
}

func TestCountdownConcurrentStop(t *testing.T) {
	c := NewCountdown(5, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Stop()
		}()
	}
	wg.Wait()
}
