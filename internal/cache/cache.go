// Package cache holds fused fetch results keyed by request so repeated
// queries inside the TTL do not hit the upstream networks again.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/couchcryptid/quake-risk-service/internal/fusion"
	"github.com/jonboulle/clockwork"
)

// Entry is one cached fusion result.
type Entry struct {
	CycleID   string                `json:"cycle_id"`
	Events    []domain.SeismicEvent `json:"events"`
	Stats     fusion.Stats          `json:"stats"`
	FetchedAt time.Time             `json:"fetched_at"`
}

// Memory is a thread-safe in-process cache with a fixed TTL and LRU
// eviction once maxEntries is exceeded.
type Memory struct {
	clock      clockwork.Clock
	ttl        time.Duration
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*node
	head       *node // most recently used
	tail       *node // least recently used
}

type node struct {
	key       string
	value     Entry
	expiresAt time.Time
	prev      *node
	next      *node
}

// NewMemory creates a Memory cache. A maxEntries below one is treated as one.
func NewMemory(clock clockwork.Clock, ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		clock:      clock,
		ttl:        ttl,
		maxEntries: max(maxEntries, 1),
		entries:    make(map[string]*node),
	}
}

// Get returns the entry for key if present and not expired. Expired
// entries are removed on access.
func (c *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if !c.clock.Now().Before(n.expiresAt) {
		delete(c.entries, key)
		c.remove(n)
		return Entry{}, false, nil
	}
	c.moveToFront(n)
	return n.value, true, nil
}

// Set stores value under key, replacing and refreshing any existing entry.
func (c *Memory) Set(_ context.Context, key string, value Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if n, ok := c.entries[key]; ok {
		n.value = value
		n.expiresAt = expiresAt
		c.moveToFront(n)
		return nil
	}

	n := &node{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = n
	c.addToFront(n)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Memory) moveToFront(n *node) {
	if n == c.head {
		return
	}
	c.remove(n)
	c.addToFront(n)
}

func (c *Memory) addToFront(n *node) {
	n.next = c.head
	n.prev = nil
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Memory) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *Memory) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
