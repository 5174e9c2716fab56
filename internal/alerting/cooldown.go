package alerting

import (
	"sync"
	"time"
)

// cooldownCache tracks per-rule alert expiries. It is process-local: a
// restart clears it, which risks a duplicate alert but never a suppressed
// one.
type cooldownCache struct {
	mu    sync.Mutex
	until map[string]time.Time
}

func newCooldownCache() *cooldownCache {
	return &cooldownCache{until: make(map[string]time.Time)}
}

// allow reports whether an alert for rule may fire at now and, if so,
// records the new expiry. A non-positive cooldown always allows.
func (c *cooldownCache) allow(rule string, now time.Time, cooldown time.Duration) (time.Time, bool) {
	if cooldown <= 0 {
		return now, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if expiry, ok := c.until[rule]; ok && now.Before(expiry) {
		return expiry, false
	}
	expiry := now.Add(cooldown)
	c.until[rule] = expiry
	return expiry, true
}
