package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one token bucket per key in process memory.
// Buckets idle longer than idleTTL are dropped by Sweep.
type Memory struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	refill   time.Duration
	idleTTL  time.Duration

	now func() time.Time
}

func NewMemory(capacity int, refill, idleTTL time.Duration) *Memory {
	return &Memory{
		buckets:  map[string]*bucket{},
		capacity: capacity,
		refill:   refill,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(m.refill), m.capacity)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	if b.lim.AllowN(now, 1) {
		return true, 0, nil
	}
	return false, m.refill, nil
}

// Sweep drops idle buckets and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, b := range m.buckets {
		if now.Sub(b.lastSeen) > m.idleTTL {
			delete(m.buckets, k)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Run sweeps every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				log.Printf("[ratelimit][sweep] evicted=%d", n)
			}
		}
	}
}
