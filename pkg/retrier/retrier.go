// Package retrier bounds outbound lookup traffic: an adaptive rate limiter
// that backs off when a service pushes back, plus a small bounded-retry
// helper with exponential delay.
//
//	lim := retrier.NewLimiter(5, 1, 20)
//	err := retrier.Do(ctx, lim, retrier.Defaults(), func() error {
//	    return fetchSomething()
//	})
package retrier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter adjusts its rate on request outcomes: up on success, halved on
// pushback. Safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	min, max  rate.Limit
	lastError time.Time
}

// NewLimiter creates a Limiter starting at initial requests per second,
// bounded by min and max.
func NewLimiter(initial, min, max rate.Limit) *Limiter {
	if initial < min {
		initial = min
	}
	burst := int(initial)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(initial, burst),
		min:     min,
		max:     max,
	}
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.limiter.Wait(ctx)
}

// Success nudges the rate up after a quiet period without errors.
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastError) > 10*time.Second {
		l.set(l.limiter.Limit() + 1)
	}
}

// Pushback halves the rate after a failure or an overloaded response.
func (l *Limiter) Pushback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastError = time.Now()
	l.set(l.limiter.Limit() / 2)
}

// Rate returns the current requests per second.
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return float64(l.limiter.Limit())
}

func (l *Limiter) set(v rate.Limit) {
	if v > l.max {
		v = l.max
	}
	if v < l.min {
		v = l.min
	}
	if v != l.limiter.Limit() {
		l.limiter.SetLimit(v)
		burst := int(v)
		if burst < 1 {
			burst = 1
		}
		l.limiter.SetBurst(burst)
	}
}

// Permanent wraps an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Config controls Do.
type Config struct {
	Attempts     int           // total attempts, including the first
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration
	Jitter       bool
}

// Defaults suits best-effort metadata lookups: two tries, short waits.
func Defaults() Config {
	return Config{
		Attempts:     2,
		InitialDelay: 300 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

// Do runs fn under the limiter, retrying failures with exponential delay.
// It stops on success, a Permanent error, context cancellation, or when the
// attempt budget runs out.
func Do(ctx context.Context, lim *Limiter, cfg Config, fn func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}
		lastErr = err

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if lim != nil {
			lim.Pushback()
		}
		if attempt == cfg.Attempts {
			break
		}

		next := delay
		if cfg.Jitter && delay > 0 {
			next += time.Duration(rand.Int63n(int64(delay/4) + 1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", cfg.Attempts, lastErr)
}
