package api

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	RPS   int // requests per second
	Burst int // burst size
}

const (
	// staleAfter is how long an idle client keeps its bucket.
	staleAfter = 10 * time.Minute
	// sweepInterval is how often idle buckets are evicted.
	sweepInterval = 5 * time.Minute
)

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	rps     int
	burst   int

	stop     chan struct{}
	stopOnce sync.Once
}

type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(rps, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: float64(rps),
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*tokenBucket),
		rps:     cfg.RPS,
		burst:   cfg.Burst,
		stop:    make(chan struct{}),
	}
}

// run evicts stale client buckets periodically until Stop is called, so
// the per-IP map stays bounded on a long-running service.
func (rl *rateLimiter) run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweepStale(time.Now())
		}
	}
}

// sweepStale deletes buckets whose last refill is older than staleAfter
// and returns how many were evicted.
func (rl *rateLimiter) sweepStale(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	evicted := 0
	for k, v := range rl.clients {
		if now.Sub(v.lastRefill) > staleAfter {
			delete(rl.clients, k)
			evicted++
		}
	}
	return evicted
}

// Stop terminates the eviction loop. Safe to call more than once.
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Handler returns the per-client token-bucket limiting middleware.
// Probe endpoints are exempt so orchestrators are never throttled.
func (rl *rateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		rl.mu.Lock()
		b, ok := rl.clients[c.IP()]
		if !ok {
			b = newTokenBucket(rl.rps, rl.burst)
			rl.clients[c.IP()] = b
		}
		allowed := b.allow()
		rl.mu.Unlock()

		if !allowed {
			return problemResponse(c, fiber.StatusTooManyRequests,
				"rate_limited", "Too Many Requests",
				"Request rate limit exceeded")
		}
		return c.Next()
	}
}
