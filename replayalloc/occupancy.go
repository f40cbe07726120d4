// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package replayalloc

import (
	"sort"

	"github.com/aclements/go-moremath/stats"
)

// BinOccupancy is one size-class bin's current occupant sizes, as a
// statistical sample over the chunks presently using that bin
// (SPEC_FULL.md §11: "uses stats.Sample to compute the occupancy
// distribution across bins over a replayed session").
type BinOccupancy struct {
	Bin    int32
	Sample *stats.Sample
}

// OccupancyStats groups every USED chunk in the current heap by its
// binForChunk, for a diagnostic reporting surface (cmd/allocheat) to
// chart fragmentation across the bin schedule at a point in replay.
func (a *Allocator) OccupancyStats() []BinOccupancy {
	byBin := make(map[int32]*stats.Sample)
	var order []int32
	idx := a.firstIdx()
	for idx >= 0 {
		c := &a.chunks[idx]
		if c.state == stateUsed {
			bin := a.binForChunk(c.size)
			s, ok := byBin[bin]
			if !ok {
				s = new(stats.Sample)
				byBin[bin] = s
				order = append(order, bin)
			}
			s.Xs = append(s.Xs, float64(c.size))
		}
		idx = c.nextIdx
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]BinOccupancy, len(order))
	for i, bin := range order {
		out[i] = BinOccupancy{Bin: bin, Sample: byBin[bin]}
	}
	return out
}
