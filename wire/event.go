// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

// EventKind classifies a decoded Event for the router (§4.F).
type EventKind uint8

const (
	EventKindScopeBegin EventKind = iota
	EventKindScopeEnd
	EventKindMemoryAlloc
	EventKindMemoryDealloc
	EventKindMemoryPlot
	EventKindContextSwitch
	EventKindCoreUsage
	EventKindSoftIRQ
	EventKindLockWait
	EventKindLockUse
	EventKindLockNotify
	EventKindMarker
)

func (k EventKind) String() string {
	switch k {
	case EventKindScopeBegin:
		return "ScopeBegin"
	case EventKindScopeEnd:
		return "ScopeEnd"
	case EventKindMemoryAlloc:
		return "MemoryAlloc"
	case EventKindMemoryDealloc:
		return "MemoryDealloc"
	case EventKindMemoryPlot:
		return "MemoryPlot"
	case EventKindContextSwitch:
		return "ContextSwitch"
	case EventKindCoreUsage:
		return "CoreUsage"
	case EventKindSoftIRQ:
		return "SoftIRQ"
	case EventKindLockWait:
		return "LockWait"
	case EventKindLockUse:
		return "LockUse"
	case EventKindLockNotify:
		return "LockNotify"
	case EventKindMarker:
		return "Marker"
	default:
		return "Unknown"
	}
}

//go:generate -command bitstringer ../cmd/bitstringer/bitstringer
//go:generate bitstringer -type=EventFlags -strip=EventFlag

// EventFlags are per-event bits carried alongside the kind tag.
type EventFlags uint8

const (
	// EventFlagIsShortDate marks that Event.Tick is a short (wrapping)
	// date requiring resolution by a shortdate.Resolver rather than an
	// already-resolved full tick.
	EventFlagIsShortDate EventFlags = 1 << iota
	// EventFlagAutoClosed marks a scope-end synthesized by the
	// finalizer rather than received on the wire.
	EventFlagAutoClosed
	// EventFlagExternalString marks that NameIndex refers to the
	// session's external string table rather than an inline one.
	EventFlagExternalString
)

// EventSize is the fixed on-disk and in-memory width of an Event, in
// bytes. Chunks of events and chunks of elem-index entries (4-byte
// each) must be storage-interchangeable: EventSize is exactly 8 times
// the size of a uint32, so a chunk holding N events occupies the same
// bytes as one holding 8*N elem-index entries.
const EventSize = 32

// Event is the fixed-width record every decoded wire event is
// normalized into before it reaches the per-thread builder. Value is
// interpreted according to Kind (e.g. the size for memory-alloc
// events, the sample for plot kinds, unused for scope events); names,
// lock names included, travel in NameIndex. Payload carries a
// pointer, a size, or a secondary value depending on Kind.
type Event struct {
	NameIndex uint16
	Kind      EventKind
	Flags     EventFlags
	Value     uint32
	Tick      uint64
	Payload   uint64
	// reserved keeps sizeof(Event) at the fixed 32-byte width required
	// by the chunk/elem-index storage interchangeability invariant;
	// future negotiated encodings may use it instead of growing the
	// record.
	reserved uint64
}

// Encode appends the full (non-compact) 32-byte wire representation
// of e to buf.
func (e *Event) Encode(buf []byte) []byte {
	enc := bufEncoder{buf: buf}
	enc.u16(e.NameIndex)
	enc.u8(uint8(e.Kind))
	enc.u8(uint8(e.Flags))
	enc.u32(e.Value)
	enc.u64(e.Tick)
	enc.u64(e.Payload)
	enc.u64(e.reserved)
	return enc.buf
}

// DecodeEvent decodes one full 32-byte event from buf, returning the
// event and the number of bytes consumed.
func DecodeEvent(buf []byte) (Event, int, error) {
	if len(buf) < EventSize {
		return Event{}, 0, newError(TruncatedBody, "event body has %d bytes, need %d", len(buf), EventSize)
	}
	d := bufDecoder{buf: buf[:EventSize]}
	var e Event
	e.NameIndex, _ = d.u16()
	kind, _ := d.u8()
	e.Kind = EventKind(kind)
	flags, _ := d.u8()
	e.Flags = EventFlags(flags)
	e.Value, _ = d.u32()
	e.Tick, _ = d.u64()
	e.Payload, _ = d.u64()
	e.reserved, _ = d.u64()
	return e, EventSize, nil
}

// CompactEventSize is the width of an event on the wire when the
// session negotiated the compact event model: the tick and payload
// fields are narrowed to 32 bits each, halving the full event's 32
// bytes to 16. The short tick must be passed through a
// shortdate.Resolver by the caller; the narrowed payload is
// zero-extended.
const CompactEventSize = 16

// DecodeCompactEvent decodes one 16-byte compact-model event from
// buf. The returned Event's Tick field holds the raw (unresolved)
// short tick with EventFlagIsShortDate set, and Payload holds the
// zero-extended 32-bit payload.
func DecodeCompactEvent(buf []byte) (Event, int, error) {
	if len(buf) < CompactEventSize {
		return Event{}, 0, newError(TruncatedBody, "compact event body has %d bytes, need %d", len(buf), CompactEventSize)
	}
	d := bufDecoder{buf: buf[:CompactEventSize]}
	var e Event
	e.NameIndex, _ = d.u16()
	kind, _ := d.u8()
	e.Kind = EventKind(kind)
	flags, _ := d.u8()
	e.Flags = EventFlags(flags) | EventFlagIsShortDate
	e.Value, _ = d.u32()
	shortTick, _ := d.u32()
	e.Tick = uint64(shortTick)
	shortPayload, _ := d.u32()
	e.Payload = uint64(shortPayload)
	return e, CompactEventSize, nil
}
