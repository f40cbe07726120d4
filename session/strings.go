// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"sync"

	"github.com/gotrace/recorder/hashmap"
)

// StringTable interns the session's wire strings (§3: "Strings are
// never rewritten; only appended"), assigning each distinct hash a
// dense index in arrival order. A repeated hash is silently folded
// into its existing index, matching storeNewString's dedup rule.
type StringTable struct {
	mu     sync.Mutex
	byHash *hashmap.Map[uint64, uint32]
	values []string
	dirty  []bool // set on creation, cleared when the delta view observes it
}

// NewStringTable creates an empty intern table.
func NewStringTable() *StringTable {
	return &StringTable{byHash: hashmap.New[uint64, uint32](256, hashmap.HashUint64)}
}

// Intern records value under hash, returning its dense index. If hash
// was already interned, the existing index is returned and created is
// false.
func (t *StringTable) Intern(hash uint64, value string) (idx uint32, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i, ok := t.byHash.Find(hash); ok {
		return i, false
	}
	idx = uint32(len(t.values))
	t.values = append(t.values, value)
	t.dirty = append(t.dirty, true)
	t.byHash.Insert(hash, idx)
	return idx, true
}

// Get returns the string at idx, or "" if idx is out of range.
func (t *StringTable) Get(idx uint32) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(idx) >= len(t.values) {
		return ""
	}
	return t.values[idx]
}

// Len reports how many strings are interned.
func (t *StringTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

// TakeDirty returns the indices interned since the last TakeDirty
// call and clears their dirty bit, for the delta view's "newly
// created strings" snapshot (§4.L).
func (t *StringTable) TakeDirty() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []uint32
	for i, d := range t.dirty {
		if d {
			out = append(out, uint32(i))
			t.dirty[i] = false
		}
	}
	return out
}
