// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"sync"

	"github.com/gotrace/recorder/wire"
)

// MaxRecordedErrors caps the number of distinct (kind, location)
// error entries an ErrorTable retains, mirroring the original
// recorder's MAX_REC_ERROR_QTY-sized cmRecord::RecError lookup.
const MaxRecordedErrors = 64

// errKey identifies one error entry by kind and an optional location
// string (e.g. a thread/stream tag), matching the original's
// dedup-by-kind-and-location behavior. Call sites that have no
// location to report use the zero value, so every such error
// collapses into a single per-kind entry.
type errKey struct {
	kind     wire.ErrorKind
	location string
}

// ErrorTable tallies every recoverable error kind encountered while
// processing a session's events (§7), deduplicated by kind+location
// and capped at MaxRecordedErrors distinct entries. Fatal kinds are
// not tallied here: they propagate immediately and close the session
// instead. Once the cap is reached, a new distinct entry evicts the
// oldest one (last-write-wins), so a session that sheds a few errors
// into a degenerate tight loop of the same kind+location never grows
// unbounded.
type ErrorTable struct {
	mu     sync.Mutex
	counts map[errKey]int
	order  []errKey // ring buffer of live keys, oldest at order[next]
	next   int
}

func newErrorCounters() *ErrorTable {
	return &ErrorTable{counts: make(map[errKey]int)}
}

// Count increments kind's tally by one, with no location.
func (e *ErrorTable) Count(kind wire.ErrorKind) {
	e.CountAt(kind, "")
}

// CountAt increments the (kind, location) entry's tally by one,
// creating it if new and evicting the oldest entry if the table is
// already at MaxRecordedErrors.
func (e *ErrorTable) CountAt(kind wire.ErrorKind, location string) {
	key := errKey{kind, location}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.counts[key]; ok {
		e.counts[key]++
		return
	}
	if len(e.order) < MaxRecordedErrors {
		e.order = append(e.order, key)
		e.counts[key] = 1
		return
	}
	evict := e.order[e.next]
	delete(e.counts, evict)
	e.order[e.next] = key
	e.counts[key] = 1
	e.next = (e.next + 1) % MaxRecordedErrors
}

// Get returns kind's current tally, summed across every location.
func (e *ErrorTable) Get(kind wire.ErrorKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total int
	for k, v := range e.counts {
		if k.kind == kind {
			total += v
		}
	}
	return total
}

// Snapshot returns a copy of every non-zero tally, summed per kind,
// for the delta view and the finalizer's closing summary.
func (e *ErrorTable) Snapshot() map[wire.ErrorKind]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[wire.ErrorKind]int, len(e.counts))
	for k, v := range e.counts {
		out[k.kind] += v
	}
	return out
}
