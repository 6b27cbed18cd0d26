package util

import (
	"sync"
	"time"
)

// LimiterRegistry hands out one limiter per key, such as a client address.
// Idle limiters are swept during Get once ttl has passed since the last sweep.
type LimiterRegistry struct {
	mu        sync.Mutex
	entries   map[string]*keyedLimiter
	rate      float64
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type keyedLimiter struct {
	*Limiter
	seen time.Time
}

func NewLimiterRegistry(r float64, b int, ttl time.Duration) *LimiterRegistry {
	return &LimiterRegistry{
		entries: make(map[string]*keyedLimiter),
		rate:    r,
		burst:   b,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *LimiterRegistry) Get(key string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.lastSweep.IsZero() {
		r.lastSweep = now
	}
	if r.ttl > 0 && now.Sub(r.lastSweep) >= r.ttl {
		for k, e := range r.entries {
			if now.Sub(e.seen) > r.ttl {
				delete(r.entries, k)
			}
		}
		r.lastSweep = now
	}

	e, ok := r.entries[key]
	if !ok {
		e = &keyedLimiter{Limiter: NewLimiter(r.rate, r.burst)}
		r.entries[key] = e
	}
	e.seen = now
	return e.Limiter
}

// Allow takes one token from key's limiter.
func (r *LimiterRegistry) Allow(key string) bool {
	return r.Get(key).Allow(1)
}

func (r *LimiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
