// Package delay implements the per-source adaptive pacing controller.
// The delay inserted before each request follows the moving average of
// recent response times, clamped to configured bounds.
package delay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Mode selects how the current delay is derived.
type Mode string

const (
	ModeAdaptive Mode = "adaptive"
	ModeFixed    Mode = "fixed"
)

// Config holds controller configuration.
type Config struct {
	Mode       Mode
	MinDelay   time.Duration
	MaxDelay   time.Duration
	SampleSize int
	Multiplier float64
}

// Defaults fills zero values in place.
func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModeAdaptive
	}
	if c.MinDelay == 0 {
		c.MinDelay = 200 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 2500 * time.Millisecond
	}
	if c.SampleSize == 0 {
		c.SampleSize = 10
	}
	if c.Multiplier < 1 {
		c.Multiplier = 1.2
	}
}

// Stats is a read-only snapshot of the controller state.
type Stats struct {
	Samples      int           `json:"samples"`
	Avg          time.Duration `json:"avg_response_time"`
	Min          time.Duration `json:"min_response_time"`
	Max          time.Duration `json:"max_response_time"`
	CurrentDelay time.Duration `json:"current_delay"`
}

// Controller computes the pause to insert before the next request from a
// bounded ring of observed response durations. Safe for concurrent use;
// the critical section is short and call frequency is bounded by the
// delay itself.
type Controller struct {
	cfg Config

	mu      sync.Mutex
	samples []time.Duration // ring, oldest first
}

// New creates a controller. Zero config fields take defaults.
func New(cfg Config) *Controller {
	cfg.defaults()
	return &Controller{
		cfg:     cfg,
		samples: make([]time.Duration, 0, cfg.SampleSize),
	}
}

// RecordResponseTime pushes a sample into the ring, evicting the oldest
// when full.
func (c *Controller) RecordResponseTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.samples) >= c.cfg.SampleSize {
		c.samples = c.samples[1:]
	}
	c.samples = append(c.samples, d)
	slog.Debug("recorded response time", "duration", d, "samples", len(c.samples))
}

// CurrentDelay returns the delay derived from the current ring:
// clamp(avg * multiplier, min, max). An empty ring, or fixed mode,
// yields the minimum delay.
func (c *Controller) CurrentDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentDelayLocked()
}

func (c *Controller) currentDelayLocked() time.Duration {
	if c.cfg.Mode == ModeFixed || len(c.samples) == 0 {
		return c.cfg.MinDelay
	}

	var sum time.Duration
	for _, s := range c.samples {
		sum += s
	}
	avg := float64(sum) / float64(len(c.samples))
	d := time.Duration(avg * c.cfg.Multiplier)

	if d < c.cfg.MinDelay {
		d = c.cfg.MinDelay
	}
	if d > c.cfg.MaxDelay {
		d = c.cfg.MaxDelay
	}
	return d
}

// Wait suspends the caller for the current delay. Returns early with the
// context error on cancellation.
func (c *Controller) Wait(ctx context.Context) error {
	d := c.CurrentDelay()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stats returns a snapshot of the ring and the derived delay.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		Samples:      len(c.samples),
		CurrentDelay: c.currentDelayLocked(),
	}
	if len(c.samples) == 0 {
		return st
	}

	var sum time.Duration
	st.Min = c.samples[0]
	st.Max = c.samples[0]
	for _, s := range c.samples {
		sum += s
		if s < st.Min {
			st.Min = s
		}
		if s > st.Max {
			st.Max = s
		}
	}
	st.Avg = sum / time.Duration(len(c.samples))
	return st
}
