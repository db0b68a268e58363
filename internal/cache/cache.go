// Package cache holds lazily computed product aggregations, bounded by an
// LRU and validated against the day they were computed in.
package cache

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Aggregation is a cached aggregate value (int32 or float64) stamped with
// the day it was computed in. It is valid only while that day is current;
// event-driven invalidation removes it earlier.
type Aggregation struct {
	Value           any
	ComputedAtDayID int32
}

// Valid reports whether the entry is still usable for the given day.
func (a Aggregation) Valid(currentDayID int32) bool {
	return a.ComputedAtDayID == currentDayID
}

// ProductCache maps "<kind>:<args...>" keys to cached aggregations.
// Capacity is S; eviction on insert is least-recently-used.
type ProductCache struct {
	entries *lru.Cache[string, Aggregation]
}

// New constructs a cache bounded to capacity entries.
func New(capacity int) (*ProductCache, error) {
	entries, err := lru.New[string, Aggregation](capacity)
	if err != nil {
		return nil, err
	}
	return &ProductCache{entries: entries}, nil
}

// Get returns a hit only if the entry is valid for currentDayID; a stale
// entry is dropped on the spot.
func (c *ProductCache) Get(key string, currentDayID int32) (Aggregation, bool) {
	a, ok := c.entries.Get(key)
	if !ok {
		return Aggregation{}, false
	}
	if !a.Valid(currentDayID) {
		c.entries.Remove(key)
		return Aggregation{}, false
	}
	return a, true
}

// Put inserts or overwrites an entry and refreshes its recency.
func (c *ProductCache) Put(key string, a Aggregation) {
	c.entries.Add(key, a)
}

// InvalidateProduct removes every entry whose key mentions the product in
// one of its argument segments (key format "<kind>:<args...>:<days>").
func (c *ProductCache) InvalidateProduct(product string) {
	for _, key := range c.entries.Keys() {
		segments := strings.Split(key, ":")
		for i := 1; i < len(segments)-1; i++ {
			if segments[i] == product {
				c.entries.Remove(key)
				break
			}
		}
	}
}

// Clear drops everything. Called on day rotation: every windowed
// aggregation can shift.
func (c *ProductCache) Clear() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *ProductCache) Len() int {
	return c.entries.Len()
}
