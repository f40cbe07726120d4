// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import "sync"

// streamMap canonicalizes a per-stream local id to a stable
// session-wide id (§12 "Multi-stream support": two streams may use
// the same local id to mean different things — here, two satellite
// processes reporting core-usage events with their own small core
// index). Thread attribution does not need this table: the wire
// format carries no per-event thread field at all, only the frame's
// streamID (see threadForStream), so a stream already is the
// canonical thread key with no local-id indirection to resolve.
type streamMap struct {
	mu   sync.Mutex
	ids  map[int]map[uint32]uint32 // streamID -> localID -> canonical id
	next uint32
}

func newStreamMap() *streamMap {
	return &streamMap{ids: make(map[int]map[uint32]uint32)}
}

// canonicalize returns the canonical id for (streamID, localID),
// assigning a new one on first observation, and reports whether this
// is that first observation.
func (m *streamMap) canonicalize(streamID int, localID uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	local, ok := m.ids[streamID]
	if !ok {
		local = make(map[uint32]uint32)
		m.ids[streamID] = local
	}
	canon, ok := local[localID]
	if !ok {
		canon = m.next
		m.next++
		local[localID] = canon
	}
	return canon, !ok
}
