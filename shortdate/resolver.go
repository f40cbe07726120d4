// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package shortdate reconstructs full 64-bit monotonic ticks from the
// wrapping short-date fields an instrumented process uses to keep its
// event encoding compact. Two independent Resolver instances run per
// thread in the recording core: one for scope/memory/marker events and
// a second, separately-synchronized one for context-switch events,
// whose long scheduling latency would otherwise force frequent
// resyncs on the shared one.
package shortdate

// DefaultWidth is the number of bits carried by a short-date field in
// the wire protocol's compact event model (the field wraps after
// 1<<DefaultWidth ticks).
const DefaultWidth = 32

// Resolver reconstructs full ticks from a stream of short ticks,
// handling wraparound by tracking the high bits separately from what
// the wire actually carries.
type Resolver struct {
	width             uint
	lastEventBufferID uint32
	wrapPart          uint64 // accumulated high bits
	lastDateTick      uint64 // last decoded full tick
	doResync          bool   // false for resolvers that should never resync (e.g. ctx-switch)
}

// NewResolver creates a Resolver for short-date fields of the given
// bit width. doResync controls whether a resync marker at the start
// of a new event buffer is honored; the context-switch resolver runs
// with doResync=false because its events are rare enough that
// resyncing on every buffer would lose more precision than it gains.
func NewResolver(width uint, doResync bool) *Resolver {
	return &Resolver{width: width, doResync: doResync}
}

// Reset clears all resolver state, as when a session restarts.
func (r *Resolver) Reset() {
	r.lastEventBufferID = 0
	r.wrapPart = 0
	r.lastDateTick = 0
}

// Resolve computes the full tick for one event's short-date field.
//
// eventBufferID identifies the batch of events this one arrived in;
// when it changes and a resync marker is present (resyncWrapPart,
// resyncOK), the resolver's accumulated high bits are reset from the
// marker rather than inferred from wraparound. shortTick is the raw
// short-date field, masked to Width bits by the caller's wire decode.
func (r *Resolver) Resolve(eventBufferID uint32, shortTick uint64, resyncWrapPart uint64, resyncOK bool) uint64 {
	if r.doResync && resyncOK && eventBufferID != r.lastEventBufferID {
		r.wrapPart = resyncWrapPart
	}
	r.lastEventBufferID = eventBufferID

	wrapRange := uint64(1) << r.width
	candidate := r.wrapPart | shortTick

	// If candidate looks like it went backwards by more than half the
	// wrap range, the short tick must have wrapped since the last
	// event; advance to the next wrap period and recompute.
	if r.lastDateTick > candidate && r.lastDateTick-candidate > wrapRange/2 {
		r.wrapPart += wrapRange
		candidate = r.wrapPart | shortTick
	}

	r.lastDateTick = candidate
	return candidate
}

// LastTick returns the most recently resolved tick, or 0 if Resolve
// has never been called.
func (r *Resolver) LastTick() uint64 { return r.lastDateTick }

// EncodeShort truncates a full tick to its short-date representation
// at the given bit width, as an instrumented process would when
// emitting the wire format. Exposed for tests and for tools that
// synthesize wire traffic.
func EncodeShort(full uint64, width uint) uint64 {
	return full & ((uint64(1) << width) - 1)
}
