package pipeline

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/AlumniConnect/YearbookConnect/internal/pkg/env"
)

// Throttle is a token bucket limiting how fast a worker hits the
// external vision services between page operations. The delay is a
// backpressure control, so the rate is configuration, not a constant.
type Throttle struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	rate     float64 // tokens per second
	last     time.Time
}

// NewThrottle creates a bucket with the given sustained rate and burst
// capacity. Rates <= 0 disable throttling.
func NewThrottle(ratePerSecond float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		capacity: float64(burst),
		tokens:   float64(burst),
		rate:     ratePerSecond,
		last:     time.Now(),
	}
}

// NewThrottleFromEnv reads PIPELINE_PAGE_RPS (default 2) and
// PIPELINE_PAGE_BURST (default 1).
func NewThrottleFromEnv() *Throttle {
	rate := 2.0
	if raw := env.GetEnv("PIPELINE_PAGE_RPS", ""); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			rate = v
		}
	}
	burst := 1
	if raw := env.GetEnv("PIPELINE_PAGE_BURST", ""); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			burst = v
		}
	}
	return NewThrottle(rate, burst)
}

// Wait blocks until a token is available or the context is cancelled.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.rate <= 0 {
		return nil
	}

	for {
		t.mu.Lock()
		now := time.Now()
		t.tokens += now.Sub(t.last).Seconds() * t.rate
		if t.tokens > t.capacity {
			t.tokens = t.capacity
		}
		t.last = now

		if t.tokens >= 1 {
			t.tokens--
			t.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - t.tokens) / t.rate * float64(time.Second))
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
