// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mr

import (
	"encoding/binary"
	"math"
)

// ScopeSpeck is one density-mode summary entry (§4.J), used for scope
// streams (Elem.Flags&elem.FlagDoRepresentScope set). Merging a window
// of ScopeSpecks preserves the outermost start/end timestamps and the
// sum of durations, so a zoomed-out view still shows true coverage
// rather than a biased sample.
type ScopeSpeck struct {
	StartTick uint64 // earliest start observed in the window
	EndTick   uint64 // latest end observed in the window
	SumDur    uint64 // sum of every covered scope's duration
	Coverage  uint64 // number of base-level scope entries transitively covered
}

// NewScopeSpeck summarizes a single base-level scope (start, end).
func NewScopeSpeck(start, end uint64) ScopeSpeck {
	return ScopeSpeck{StartTick: start, EndTick: end, SumDur: end - start, Coverage: 1}
}

// MergeScopeSpecks implements the density-mode merge rule: keep the
// two extremes (outermost start and end) plus the summed duration and
// accumulated coverage count.
func MergeScopeSpecks(window []ScopeSpeck) ScopeSpeck {
	out := window[0]
	for _, s := range window[1:] {
		if s.StartTick < out.StartTick {
			out.StartTick = s.StartTick
		}
		if s.EndTick > out.EndTick {
			out.EndTick = s.EndTick
		}
		out.SumDur += s.SumDur
		out.Coverage += s.Coverage
	}
	return out
}

// ScopeSpeckSize is the fixed encoded width of one ScopeSpeck.
const ScopeSpeckSize = 32

// Encode appends the fixed-width encoding of s to buf.
func (s ScopeSpeck) Encode(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, s.StartTick)
	buf = binary.LittleEndian.AppendUint64(buf, s.EndTick)
	buf = binary.LittleEndian.AppendUint64(buf, s.SumDur)
	buf = binary.LittleEndian.AppendUint64(buf, s.Coverage)
	return buf
}

// DecodeScopeSpeck decodes one ScopeSpeck from buf, returning the
// speck and the number of bytes consumed.
func DecodeScopeSpeck(buf []byte) (ScopeSpeck, int) {
	return ScopeSpeck{
		StartTick: binary.LittleEndian.Uint64(buf[0:8]),
		EndTick:   binary.LittleEndian.Uint64(buf[8:16]),
		SumDur:    binary.LittleEndian.Uint64(buf[16:24]),
		Coverage:  binary.LittleEndian.Uint64(buf[24:32]),
	}, ScopeSpeckSize
}

// PlotSpeck is one subsampling-mode summary entry (§4.J), used for
// plot elems (Elem.Flags&elem.FlagDoRepresentScope unset).
type PlotSpeck struct {
	Min, Max            float64
	FirstTick, LastTick uint64
}

// NewPlotSpeck summarizes a single base-level plot sample.
func NewPlotSpeck(tick uint64, value float64) PlotSpeck {
	return PlotSpeck{Min: value, Max: value, FirstTick: tick, LastTick: tick}
}

// MergePlotSpecks implements the subsampling-mode merge rule: keep
// (min, max, first-time, last-time) over the window.
func MergePlotSpecks(window []PlotSpeck) PlotSpeck {
	out := window[0]
	for _, s := range window[1:] {
		if s.Min < out.Min {
			out.Min = s.Min
		}
		if s.Max > out.Max {
			out.Max = s.Max
		}
		if s.FirstTick < out.FirstTick {
			out.FirstTick = s.FirstTick
		}
		if s.LastTick > out.LastTick {
			out.LastTick = s.LastTick
		}
	}
	return out
}

// PlotSpeckSize is the fixed encoded width of one PlotSpeck.
const PlotSpeckSize = 24

// Encode appends the fixed-width encoding of s to buf.
func (s PlotSpeck) Encode(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(s.Min))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(s.Max))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.FirstTick))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.LastTick))
	return buf
}

// DecodePlotSpeck decodes one PlotSpeck from buf, returning the speck
// and the number of bytes consumed.
func DecodePlotSpeck(buf []byte) (PlotSpeck, int) {
	return PlotSpeck{
		Min:       math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8])),
		Max:       math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
		FirstTick: uint64(binary.LittleEndian.Uint32(buf[16:20])),
		LastTick:  uint64(binary.LittleEndian.Uint32(buf[20:24])),
	}, PlotSpeckSize
}
