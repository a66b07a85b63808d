package websocket

import (
	"sync"
	"time"

	"factory-ops/internal/events"
)

// Per-minute budgets for the chatty client events.
type RateLimits struct {
	MaxTypingEvents int
	MaxReadReceipts int
	MaxPings        int
}

var DefaultRateLimits = RateLimits{
	MaxTypingEvents: 60,
	MaxReadReceipts: 120,
	MaxPings:        60,
}

// ClientRateLimiter is a per-connection token bucket refilled once a minute.
// Events it does not track are always allowed.
type ClientRateLimiter struct {
	limits       RateLimits
	typingTokens int
	readTokens   int
	pingTokens   int
	lastRefill   time.Time
	now          func() time.Time
	mu           sync.Mutex
}

func NewClientRateLimiter(limits RateLimits) *ClientRateLimiter {
	rl := &ClientRateLimiter{limits: limits, now: time.Now}
	rl.refill(rl.now())
	return rl
}

func (rl *ClientRateLimiter) Allow(event string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.refill(now)
	}

	var bucket *int
	switch event {
	case events.ClientTypingStart, events.ClientTypingStop:
		bucket = &rl.typingTokens
	case events.ClientMarkMessagesRead:
		bucket = &rl.readTokens
	case events.ClientPing:
		bucket = &rl.pingTokens
	default:
		return true
	}
	if *bucket <= 0 {
		return false
	}
	*bucket--
	return true
}

func (rl *ClientRateLimiter) refill(now time.Time) {
	rl.typingTokens = rl.limits.MaxTypingEvents
	rl.readTokens = rl.limits.MaxReadReceipts
	rl.pingTokens = rl.limits.MaxPings
	rl.lastRefill = now
}
