// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

// Package cache provides a thread-safe in-memory TTL cache with data
// versioning. The warehouse uses it to avoid re-reading the raw dedup
// window when nothing was appended between cycles.
package cache

import (
	"sync"
	"time"
)

// Entry is one cached item with its expiry and the data version it was
// built against.
type Entry struct {
	Data      interface{}
	Version   int64
	ExpiresAt time.Time
}

// Cache is a TTL cache whose entries are additionally invalidated by a
// monotonically increasing data version: bump the version on every write to
// the backing store and stale reads vanish without waiting for the TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	version int64

	hits   int64
	misses int64
}

// New creates a cache with the given default TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
	}
}

// Get retrieves a value. Entries that expired or were built against an
// older data version count as misses and are dropped.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	version := c.version
	c.mu.RUnlock()

	if !ok || entry.Version != version || time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.Data, true
}

// Set stores a value under the current data version with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{
		Data:      value,
		Version:   c.version,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Bump increments the data version, invalidating every existing entry.
func (c *Cache) Bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	// Entries are lazily evicted on Get; clear eagerly since a bump means
	// they can never hit again.
	c.entries = make(map[string]Entry)
}

// Version returns the current data version.
func (c *Cache) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
