// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import "sync"

// lockBuilder is the global registry entry for one named lock (§3).
// A lock's identity is its name; streamNameLkup records, for each
// stream that has referenced the lock, the canonical nameIdx it
// resolved to. It holds no stream-local name index: every stream is
// handed the same canonical nameIdx.
type lockBuilder struct {
	nameIdx uint32

	inUse          bool
	owningThread   uint32
	useStartTick   uint64
	waitingThreads []uint32

	streamNameLkup map[int]uint32
}

// LockRegistry canonicalizes locks by name across every stream in a
// session (§3, §4.F). It is owned solely by the recorder and is not
// safe for concurrent use except where noted.
type LockRegistry struct {
	mu        sync.Mutex
	byNameIdx map[uint32]*lockBuilder
	order     []uint32 // nameIdx in creation order, for the elem/delta view
	dirty     []uint32 // nameIdx created since the last TakeDirty
}

// NewLockRegistry creates an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{byNameIdx: make(map[uint32]*lockBuilder)}
}

// getOrCreate canonicalizes nameIdx (the router passes the index of
// the thread-wildcard elem named after the lock) to its lockBuilder,
// creating one on first observation and recording that streamID
// referenced it.
func (r *LockRegistry) getOrCreate(streamID int, nameIdx uint32) (*lockBuilder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byNameIdx[nameIdx]
	if !ok {
		l = &lockBuilder{nameIdx: nameIdx, streamNameLkup: make(map[int]uint32)}
		r.byNameIdx[nameIdx] = l
		r.order = append(r.order, nameIdx)
		r.dirty = append(r.dirty, nameIdx)
	}
	l.streamNameLkup[streamID] = nameIdx
	return l, !ok
}

// beginWait records threadID joining nameIdx's waiters list.
func (r *LockRegistry) beginWait(streamID int, nameIdx uint32, threadID uint32) {
	l, _ := r.getOrCreate(streamID, nameIdx)
	r.mu.Lock()
	defer r.mu.Unlock()
	l.waitingThreads = append(l.waitingThreads, threadID)
}

// use records threadID acquiring nameIdx at tick, removing it from
// the waiters list if present.
func (r *LockRegistry) use(streamID int, nameIdx uint32, threadID uint32, tick uint64) {
	l, _ := r.getOrCreate(streamID, nameIdx)
	r.mu.Lock()
	defer r.mu.Unlock()
	l.inUse = true
	l.owningThread = threadID
	l.useStartTick = tick
	for i, w := range l.waitingThreads {
		if w == threadID {
			l.waitingThreads = append(l.waitingThreads[:i], l.waitingThreads[i+1:]...)
			break
		}
	}
}

// notify records nameIdx being released (a lock-notify event).
func (r *LockRegistry) notify(streamID int, nameIdx uint32) {
	l, _ := r.getOrCreate(streamID, nameIdx)
	r.mu.Lock()
	defer r.mu.Unlock()
	l.inUse = false
}

// Count reports how many distinct locks have been observed.
func (r *LockRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// TakeDirty returns the nameIdx of every lock created since the last
// call and clears it, for the delta view (§4.L).
func (r *LockRegistry) TakeDirty() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.dirty
	r.dirty = nil
	return out
}
