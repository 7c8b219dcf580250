package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
)

type RateLimitConfig struct {
	Window           time.Duration
	MaxMessages      int
	MaxMessageLength int
	LengthCooldown   time.Duration
}

// RateLimiter throttles sends per connection with a sliding window.
type RateLimiter struct {
	store     *store.Store
	clock     clock.Clock
	cfg       RateLimitConfig
	sends     *store.Table[[]time.Time]
	cooldowns *store.Table[time.Time]
}

func NewRateLimiter(st *store.Store, clk clock.Clock, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		store:     st,
		clock:     clk,
		cfg:       cfg,
		sends:     store.NewTable[[]time.Time](),
		cooldowns: store.NewTable[time.Time](),
	}
}

// Check admits or rejects one send attempt.
//
// A window violation records the attempt time as the cooldown timestamp but
// does not add it to the window, so a client hammering at the limit is
// throttled, not locked out. A length violation never consumes a slot.
func (l *RateLimiter) Check(connID, body string) error {
	unlock := l.store.Lock("rate:" + connID)
	defer unlock()

	now := l.clock.Now()
	prev, _ := l.sends.Get(connID)
	window := make([]time.Time, 0, len(prev)+1)
	for _, ts := range prev {
		if now.Sub(ts) < l.cfg.Window {
			window = append(window, ts)
		}
	}

	if len(window) >= l.cfg.MaxMessages {
		l.sends.Set(connID, window)
		l.cooldowns.Set(connID, now)
		return &domain.ThrottleError{Kind: domain.ThrottleCooldown, Cooldown: l.cfg.Window}
	}

	if utf8.RuneCountInString(strings.TrimSpace(body)) > l.cfg.MaxMessageLength {
		l.sends.Set(connID, window)
		return &domain.ThrottleError{Kind: domain.ThrottleLength, Cooldown: l.cfg.LengthCooldown, MaxLength: l.cfg.MaxMessageLength}
	}

	l.sends.Set(connID, append(window, now))
	return nil
}

// LastViolation is informational only; it never gates Check.
func (l *RateLimiter) LastViolation(connID string) (time.Time, bool) {
	return l.cooldowns.Get(connID)
}

func (l *RateLimiter) Forget(connID string) {
	unlock := l.store.Lock("rate:" + connID)
	defer unlock()
	l.sends.Delete(connID)
	l.cooldowns.Delete(connID)
}
