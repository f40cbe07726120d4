// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"encoding/binary"

	"github.com/gotrace/recorder/mr"
	"github.com/gotrace/recorder/wire"
)

// Close ends the session: every thread's still-open scopes are closed
// with a synthesized scope-end at that thread's last observed tick
// (§4.G, §4.M — a trace that stops mid-call still yields a consistent
// record), every scope-level MR pyramid's partial trailing window is
// sealed, the elem/lock/string directories are written to their own
// streams, and the underlying record.Writer is finalized. Calling
// Close on an already-closed Session is a no-op. The MR pyramids
// themselves are not written to the record.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	for _, tb := range s.threads {
		for _, lvl := range tb.levels {
			n, err := lvl.closeUnbalanced(s.writer, tb.lastTick)
			if err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				s.errors.Count(wire.UnbalancedScope)
			}
			lvl.sealMR()
		}
	}

	for elemIdx, pending := range s.plotPending {
		if len(pending) == 0 {
			continue
		}
		s.plotPyramid(elemIdx).Push(mr.MergePlotSpecks(pending))
	}

	if err := s.writeElemDirectory(); err != nil {
		return err
	}
	if err := s.writeStringDirectory(); err != nil {
		return err
	}
	if err := s.writeLockDirectory(); err != nil {
		return err
	}

	return s.writer.Finalize()
}

// writeElemDirectory appends one record per elem to the "elems"
// stream: { u32 idx, u32 parentIdx, u32 threadID, u16 level, u8 flags,
// u16 nameLen, name bytes }, in creation order, matching the dense
// array cmRecording.h's GlobalBuild::_elems holds.
func (s *Session) writeElemDirectory() error {
	var buf []byte
	n := s.elems.Len()
	for i := 0; i < n; i++ {
		e := s.elems.Get(uint32(i))
		buf = binary.LittleEndian.AppendUint32(buf, e.Idx)
		buf = binary.LittleEndian.AppendUint32(buf, e.ParentIdx)
		buf = binary.LittleEndian.AppendUint32(buf, e.ThreadID)
		buf = binary.LittleEndian.AppendUint16(buf, e.Level)
		buf = append(buf, byte(e.Flags))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.RawName)))
		buf = append(buf, e.RawName...)
	}
	return s.writer.Append("elems", buf)
}

// writeStringDirectory appends every interned string to the "strings"
// stream as { u16 len, bytes }, in intern order, so a string's index is
// its position. The hash is not written, so this differs from the wire
// STRING frame's encoding, which prefixes each entry with its hash.
func (s *Session) writeStringDirectory() error {
	var buf []byte
	n := s.strings.Len()
	for i := 0; i < n; i++ {
		v := s.strings.Get(uint32(i))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(v)))
		buf = append(buf, v...)
	}
	return s.writer.Append("strings", buf)
}

// writeLockDirectory appends one record per distinct lock name to the
// "locks" stream: { u32 nameIdx }, in creation order. Per-lock
// transient state (waiters, current owner) is steady-state-only and
// is not part of the finalized record (§4.F).
func (s *Session) writeLockDirectory() error {
	s.locks.mu.Lock()
	order := append([]uint32(nil), s.locks.order...)
	s.locks.mu.Unlock()

	var buf []byte
	for _, nameIdx := range order {
		buf = binary.LittleEndian.AppendUint32(buf, nameIdx)
	}
	return s.writer.Append("locks", buf)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed }
