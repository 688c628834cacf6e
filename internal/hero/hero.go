// Package hero rotates the storefront hero slides on a timer.
package hero

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the rotation period.
const DefaultInterval = 5 * time.Second

// Carousel advances through a fixed list of slides. Pause and Resume may be
// called from any goroutine.
type Carousel struct {
	slides   []string
	interval time.Duration

	mu      sync.Mutex
	current int
	paused  bool
	resume  chan struct{}
}

// New creates a Carousel. A non-positive interval means DefaultInterval.
func New(slides []string, interval time.Duration) *Carousel {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Carousel{
		slides:   append([]string(nil), slides...),
		interval: interval,
		resume:   make(chan struct{}, 1),
	}
}

// Slides returns the slide list.
func (c *Carousel) Slides() []string { return append([]string(nil), c.slides...) }

// Current returns the index of the visible slide.
func (c *Carousel) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Paused reports whether rotation is stopped.
func (c *Carousel) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Pause stops rotation until Resume.
func (c *Carousel) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume restarts rotation with a full interval before the next advance.
func (c *Carousel) Resume() {
	c.mu.Lock()
	wasPaused := c.paused
	c.paused = false
	c.mu.Unlock()
	if wasPaused {
		select {
		case c.resume <- struct{}{}:
		default:
		}
	}
}

// Advance moves to the next slide, wrapping around.
func (c *Carousel) Advance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.slides) > 0 {
		c.current = (c.current + 1) % len(c.slides)
	}
	return c.current
}

// Run rotates slides until ctx is done. With no slides it returns at once.
func (c *Carousel) Run(ctx context.Context) error {
	if len(c.slides) == 0 {
		return nil
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.resume:
			ticker.Reset(c.interval)
		case <-ticker.C:
			if !c.Paused() {
				c.Advance()
			}
		}
	}
}
