// Package ratelimit implements the token-bucket admission control shared by
// all tool invocations.
//
// A single process-wide bucket gates every tool call; per-client request
// counts are tracked for diagnostics only. All methods are safe for
// concurrent use.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// DefaultClient is the client identifier used when callers do not partition
// requests per client.
const DefaultClient = "default"

// Stats is a point-in-time view of the limiter, exposed through the
// get_metrics tool.
type Stats struct {
	Enabled       bool    `json:"enabled"`
	RatePerMinute int     `json:"rate_per_minute"`
	Burst         int     `json:"burst"`
	CurrentTokens float64 `json:"current_tokens"`
	TotalRequests int64   `json:"total_requests"`
}

// Limiter is a token-bucket rate limiter. Tokens refill continuously at a
// fixed rate up to the burst capacity; each admitted request consumes one.
//
// The zero value is not usable; create instances with [New].
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	burst      float64
	tokens     float64
	lastRefill time.Time
	requests   map[string]int64

	ratePerMinute int
	enabled       bool

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// New creates a Limiter that admits ratePerMinute requests per minute with
// the given burst capacity. The bucket starts full.
func New(ratePerMinute, burst int, enabled bool) *Limiter {
	l := &Limiter{
		rate:          float64(ratePerMinute) / 60.0,
		burst:         float64(burst),
		tokens:        float64(burst),
		ratePerMinute: ratePerMinute,
		enabled:       enabled,
		requests:      make(map[string]int64),
		now:           time.Now,
	}
	l.lastRefill = l.now()
	return l
}

// Enabled reports whether admission control is switched on. A disabled
// limiter still tracks stats but callers are expected to skip the gate.
func (l *Limiter) Enabled() bool {
	return l.enabled
}

// Allow checks whether one request from clientID may proceed. The
// refill-then-consume sequence runs as a single critical section.
//
// When admitted it returns (true, 0). When denied it returns false and the
// time until at least one token will be available.
func (l *Limiter) Allow(clientID string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens = math.Min(l.burst, l.tokens+elapsed*l.rate)
	l.lastRefill = now

	if l.tokens >= 1 {
		l.tokens--
		l.requests[clientID]++
		return true, 0
	}
	wait := (1 - l.tokens) / l.rate
	return false, time.Duration(wait * float64(time.Second))
}

// Stats returns a snapshot of the limiter state. Token counts are rounded to
// two decimals for presentation.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, n := range l.requests {
		total += n
	}
	return Stats{
		Enabled:       l.enabled,
		RatePerMinute: l.ratePerMinute,
		Burst:         int(l.burst),
		CurrentTokens: math.Round(l.tokens*100) / 100,
		TotalRequests: total,
	}
}
