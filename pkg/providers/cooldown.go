package providers

import (
	"sync"
	"time"
)

// standardCooldown is applied to most failover reasons: long enough to ride
// out a transient rate limit or timeout without parking the key for good.
const standardCooldown = 60 * time.Second

// billingCooldown is applied when a provider reports an account-level
// billing problem (no credit, payment required) — retrying a minute later
// almost never helps, so the key sits out much longer.
const billingCooldown = 5 * time.Hour

// CooldownTracker records, per key (an auth profile ID or provider/model
// pair), how long that key should be skipped after a failure. It is safe
// for concurrent use.
type CooldownTracker struct {
	mu    sync.Mutex
	until map[string]time.Time
}

// NewCooldownTracker returns an empty tracker with nothing in cooldown.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{until: make(map[string]time.Time)}
}

func cooldownDuration(reason FailoverReason) time.Duration {
	if reason == FailoverBilling {
		return billingCooldown
	}
	return standardCooldown
}

// MarkFailure puts key into cooldown for a duration derived from reason.
func (c *CooldownTracker) MarkFailure(key string, reason FailoverReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until[key] = time.Now().Add(cooldownDuration(reason))
}

// MarkSuccess clears any cooldown on key.
func (c *CooldownTracker) MarkSuccess(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.until, key)
}

// IsAvailable reports whether key is not currently in cooldown.
func (c *CooldownTracker) IsAvailable(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.until[key]
	if !ok {
		return true
	}
	return time.Now().After(until)
}

// CooldownRemaining returns how long key remains in cooldown, or 0 if it is
// already available.
func (c *CooldownTracker) CooldownRemaining(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.until[key]
	if !ok {
		return 0
	}
	remaining := time.Until(until)
	if remaining < 0 {
		return 0
	}
	return remaining
}
