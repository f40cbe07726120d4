// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import "sync"

// CoreUsageTracker records which CPU cores have ever reported a
// core-usage event (§12 "Per-core usage tracking"), independent of
// the `core-usage` plot stream's sampled values and of per-thread
// context-switch tracking.
type CoreUsageTracker struct {
	mu    sync.Mutex
	seen  map[uint32]bool
	dirty []uint32
}

func newCoreUsageTracker() *CoreUsageTracker {
	return &CoreUsageTracker{seen: make(map[uint32]bool)}
}

// Observe marks coreID as used, reporting whether this is the first
// time this core has been seen.
func (c *CoreUsageTracker) Observe(coreID uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[coreID] {
		return false
	}
	c.seen[coreID] = true
	c.dirty = append(c.dirty, coreID)
	return true
}

// Count reports how many distinct cores have reported usage.
func (c *CoreUsageTracker) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// TakeDirty returns core ids newly observed since the last call,
// clearing it, for the delta view.
func (c *CoreUsageTracker) TakeDirty() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.dirty
	c.dirty = nil
	return out
}
