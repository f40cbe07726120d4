// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hashmap implements a single canonical open-addressing hash
// table with linear probing, used where this module looks keys up by
// an externally-supplied hash (the elem index, the per-thread
// memory-allocation lookup, the session string table).
//
// It intentionally does not use Go's built-in map: every caller here
// needs the keys hashed with the same FNV-1a-64 chain used by the wire
// protocol's element canonicalization (see the elem package), so a
// single hash table implementation with an explicit hash function
// keeps that hash consistent and lets the same table be rehashed,
// inspected, and cleared without reflection.
package hashmap

// FNV1aOffset and FNV1aPrime are the 64-bit FNV-1a constants used
// throughout this module for string, path, and pointer hashing.
const (
	FNV1aOffset uint64 = 14695981039346656037
	FNV1aPrime  uint64 = 1099511628211
)

// HashStep folds novelty into previous using FNV-1a-64. Called with
// previous omitted (zero value), it starts a new chain from the
// standard offset basis.
func HashStep(novelty uint64, previous uint64) uint64 {
	if previous == 0 {
		previous = FNV1aOffset
	}
	return (novelty ^ previous) * FNV1aPrime
}

// HashUint64 hashes a single u64 key the way bsHashMap's built-in
// integer hashing does.
func HashUint64(key uint64) uint64 {
	h := HashStep(key, FNV1aOffset)
	if h == 0 {
		h = 1
	}
	return h
}

// HashString hashes s with FNV-1a-64, remapping a zero result to 1 so
// the zero hash stays reserved for "empty slot".
func HashString(s string) uint64 {
	h := FNV1aOffset
	for i := 0; i < len(s); i++ {
		h = (h ^ uint64(s[i])) * FNV1aPrime
	}
	if h == 0 {
		h = 1
	}
	return h
}

type node[K comparable, V any] struct {
	hash  uint64 // 0 means the slot is empty
	key   K
	value V
}

// Map is an open-addressing hash table with linear probing and a
// tombstone-free backward-shift deletion. Load factor is kept at or
// below 2/3 by doubling capacity on insert.
//
// The zero Map is not usable; construct one with New.
type Map[K comparable, V any] struct {
	nodes []node[K, V]
	mask  uint64
	size  int
	hash  func(K) uint64
}

// New creates a Map with the given initial capacity (rounded up to a
// power of two, minimum 16) and hash function. hash must never itself
// return a value that varies for equal keys.
func New[K comparable, V any](initSize int, hash func(K) uint64) *Map[K, V] {
	m := &Map[K, V]{hash: hash}
	m.rehash(initSize)
	return m
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int { return m.size }

// Clear removes all entries without shrinking capacity.
func (m *Map[K, V]) Clear() {
	for i := range m.nodes {
		m.nodes[i].hash = 0
	}
	m.size = 0
}

func (m *Map[K, V]) rehash(newSize int) {
	sizePo2 := 16
	for sizePo2 < newSize {
		sizePo2 *= 2
	}
	m.rehashPo2(sizePo2)
}

func (m *Map[K, V]) rehashPo2(size int) {
	old := m.nodes
	m.nodes = make([]node[K, V], size)
	m.mask = uint64(size - 1)
	m.size = 0
	for _, n := range old {
		if n.hash != 0 {
			m.insert(n.hash, n.key, n.value)
		}
	}
}

func normalizeHash(h uint64) uint64 {
	if h == 0 {
		return 1
	}
	return h
}

// Insert adds or overwrites key -> value. It reports whether this was
// a fresh insertion (true) versus an overwrite of an existing key
// (false).
func (m *Map[K, V]) Insert(key K, value V) bool {
	return m.insert(normalizeHash(m.hash(key)), key, value)
}

func (m *Map[K, V]) insert(hash uint64, key K, value V) bool {
	idx := hash & m.mask
	for m.nodes[idx].hash != 0 {
		if m.nodes[idx].hash == hash && m.nodes[idx].key == key {
			m.nodes[idx].value = value
			return false
		}
		idx = (idx + 1) & m.mask
	}
	m.nodes[idx] = node[K, V]{hash, key, value}
	m.size++
	if m.size*3 > len(m.nodes)*2 {
		m.rehashPo2(2 * len(m.nodes))
	}
	return true
}

// Find returns the value for key and true, or the zero value and
// false if key is absent.
func (m *Map[K, V]) Find(key K) (V, bool) {
	hash := normalizeHash(m.hash(key))
	idx := hash & m.mask
	for {
		n := &m.nodes[idx]
		if n.hash == hash && n.key == key {
			return n.value, true
		}
		if n.hash == 0 {
			var zero V
			return zero, false
		}
		idx = (idx + 1) & m.mask
	}
}

// Erase removes key, reporting whether it was present.
//
// Deletion uses backward-shift instead of tombstones: after removing
// the slot, every following entry in the probe cluster is examined in
// turn and pulled back if the gap would otherwise break its probe
// sequence. The wrap condition below is deliberately the one used by
// a combined key/value table (checking both that the candidate's
// natural slot index is within the gap, accounting for index wraparound
// around the end of the table) rather than the simpler form sometimes
// used for hash-set-only deletion, which mis-classifies the case where
// the probe sequence itself has wrapped past the end of the table.
func (m *Map[K, V]) Erase(key K) bool {
	hash := normalizeHash(m.hash(key))
	idx := hash & m.mask
	for m.nodes[idx].hash != 0 && (m.nodes[idx].hash != hash || m.nodes[idx].key != key) {
		idx = (idx + 1) & m.mask
	}
	if m.nodes[idx].hash == 0 {
		return false
	}

	gap := idx
	next := idx
	for {
		next = (next + 1) & m.mask
		nextHash := m.nodes[next].hash
		if nextHash == 0 {
			break // end of cluster: stop at the gap
		}
		nextSlot := nextHash & m.mask
		wrapped := next < gap
		inGap := (!wrapped && (nextSlot <= gap || nextSlot > next)) ||
			(wrapped && (nextSlot <= gap && nextSlot > next))
		if inGap {
			m.nodes[gap] = m.nodes[next]
			gap = next
		}
	}
	m.nodes[gap].hash = 0
	m.size--
	return true
}

// Each calls f for every entry currently in the map. f must not mutate
// the map.
func (m *Map[K, V]) Each(f func(key K, value V)) {
	for _, n := range m.nodes {
		if n.hash != 0 {
			f(n.key, n.value)
		}
	}
}
