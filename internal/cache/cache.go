// Package cache holds per-screen campaign lists with differentiated TTL:
// entries containing inline campaigns (widget, stories, reel) never expire
// by time, overlay-only entries expire after a fixed window.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"appstorys-engine/internal/campaign"
)

type entry struct {
	campaigns []campaign.Campaign
	fetchedAt time.Time
	active    bool
}

type ScreenCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

func NewScreenCache(ttl time.Duration) *ScreenCache {
	return &ScreenCache{
		entries: map[string]*entry{},
		ttl:     ttl,
		now:     time.Now,
	}
}

// Store replaces the entry for screen and marks it active.
func (c *ScreenCache) Store(screen string, campaigns []campaign.Campaign) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[screen] = &entry{
		campaigns: campaigns,
		fetchedAt: c.now(),
		active:    true,
	}
}

// Get returns the cached list for screen, or nil on miss. Expired
// entries are treated as misses unless allowStale is set (the
// network-failure fallback path).
func (c *ScreenCache) Get(screen string, allowStale bool) []campaign.Campaign {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[screen]
	if !ok {
		return nil
	}
	if !allowStale && c.expired(e) {
		return nil
	}
	return append([]campaign.Campaign(nil), e.campaigns...)
}

func (c *ScreenCache) MarkActive(screen string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[screen]; ok {
		e.active = true
	}
}

func (c *ScreenCache) MarkInactive(screen string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[screen]; ok {
		e.active = false
	}
}

// HandleAppBackground marks every entry inactive without clearing it,
// so back-navigation after a quick foreground can still reuse it.
func (c *ScreenCache) HandleAppBackground() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.active = false
	}
}

// HandleAppForeground optimistically re-marks every entry active. It
// does not re-check which screen is genuinely visible; hosts restored
// onto a different screen should re-call TrackScreen.
func (c *ScreenCache) HandleAppForeground() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		e.active = true
	}
}

// CleanupInactiveScreens evicts entries that are both inactive and past
// TTL. Active entries are never evicted.
func (c *ScreenCache) CleanupInactiveScreens() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for screen, e := range c.entries {
		if !e.active && c.expired(e) {
			delete(c.entries, screen)
			log.Debug().Str("screen", screen).Msg("evicted expired screen cache entry")
		}
	}
}

// Clear removes the entry for screen outright (deliberate
// navigation-away, distinct from marking inactive).
func (c *ScreenCache) Clear(screen string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, screen)
}

// expired applies the TTL policy; caller holds the lock. Entries with
// at least one inline campaign only expire via explicit invalidation.
func (c *ScreenCache) expired(e *entry) bool {
	for _, cm := range e.campaigns {
		if cm.Type.Inline() {
			return false
		}
	}
	return c.now().Sub(e.fetchedAt) > c.ttl
}
