package gateway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bustogether/internal/clock"
)

// RateLimiter holds per-connection token buckets for messages, joins and reports
// ARCHITECTURAL DISCOVERY: Per-connection state is dropped on disconnect, so a
// reconnect starts fresh along with its new connection identity
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimits
	clock   clock.Clock

	cooldown       time.Duration
	joinsPerMinute int
	reportsPerMin  int
}

type clientLimits struct {
	message *rate.Limiter
	join    *rate.Limiter
	report  *rate.Limiter
}

// NewRateLimiter creates a limiter pool
// FUNCTIONAL DISCOVERY: The message bucket holds a single token refilled once per
// cooldown, so a rejected early attempt does not push the next allowed send back
func NewRateLimiter(clk clock.Clock, cooldown time.Duration, joinsPerMinute, reportsPerMinute int) *RateLimiter {
	return &RateLimiter{
		clients:        make(map[string]*clientLimits),
		clock:          clk,
		cooldown:       cooldown,
		joinsPerMinute: joinsPerMinute,
		reportsPerMin:  reportsPerMinute,
	}
}

func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

func (rl *RateLimiter) get(connID string) *clientLimits {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if c, ok := rl.clients[connID]; ok {
		return c
	}
	c := &clientLimits{
		message: rate.NewLimiter(rate.Every(rl.cooldown), 1),
		join:    perMinute(rl.joinsPerMinute),
		report:  perMinute(rl.reportsPerMin),
	}
	rl.clients[connID] = c
	return c
}

// AllowMessage enforces the minimum interval between messages
func (rl *RateLimiter) AllowMessage(connID string) bool {
	return rl.get(connID).message.AllowN(rl.clock.Now(), 1)
}

// AllowJoin enforces the join attempts per minute limit
func (rl *RateLimiter) AllowJoin(connID string) bool {
	return rl.get(connID).join.AllowN(rl.clock.Now(), 1)
}

// AllowReport enforces the reports per minute limit
func (rl *RateLimiter) AllowReport(connID string) bool {
	return rl.get(connID).report.AllowN(rl.clock.Now(), 1)
}

// Forget drops a connection's buckets
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, connID)
}

// Len returns the number of tracked connections
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
