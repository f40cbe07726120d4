// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package replayalloc

import "testing"

func TestMallocCarvesWilderness(t *testing.T) {
	a := New()
	p1 := a.Malloc(16)
	p2 := a.Malloc(32)
	if p1 != 0 {
		t.Fatalf("first Malloc returned %d, want 0", p1)
	}
	if p2 != 16 {
		t.Fatalf("second Malloc returned %d, want 16", p2)
	}
	if a.WildernessStart() != 48 {
		t.Fatalf("WildernessStart() = %d, want 48", a.WildernessStart())
	}
}

func TestFreeThenMallocReusesChunk(t *testing.T) {
	a := New()
	p1 := a.Malloc(64)
	a.Malloc(64) // keep p1 from being the wilderness tail forever
	a.Free(p1)
	p3 := a.Malloc(64)
	if p3 != p1 {
		t.Fatalf("Malloc after Free returned %d, want reused address %d", p3, p1)
	}
}

func TestAdjacentFreeChunksCoalesce(t *testing.T) {
	a := New()
	p1 := a.Malloc(16)
	p2 := a.Malloc(16)
	p3 := a.Malloc(16)
	a.Free(p1)
	a.Free(p2)
	a.Free(p3)

	// All three should have merged into one free chunk covering the
	// whole carved range; a single 48-byte request should now succeed
	// by reusing it rather than growing the wilderness.
	before := a.WildernessStart()
	p4 := a.Malloc(48)
	if p4 != p1 {
		t.Fatalf("Malloc(48) = %d, want coalesced chunk at %d", p4, p1)
	}
	if a.WildernessStart() != before {
		t.Fatalf("WildernessStart() grew to %d after reusing coalesced space", a.WildernessStart())
	}
}

func TestNoTwoAdjacentFreeChunksInvariant(t *testing.T) {
	a := New()
	var ptrs []uint32
	for i := 0; i < 8; i++ {
		ptrs = append(ptrs, a.Malloc(16))
	}
	// Free every other chunk, then the remaining ones, in an order
	// that exercises both prev- and next-merge paths.
	a.Free(ptrs[1])
	a.Free(ptrs[3])
	a.Free(ptrs[5])
	a.Free(ptrs[0])
	a.Free(ptrs[2])
	a.Free(ptrs[4])
	a.Free(ptrs[6])
	a.Free(ptrs[7])

	chunks := a.Chunks()
	for i := 1; i < len(chunks); i++ {
		if !chunks[i-1].Used && !chunks[i].Used {
			t.Fatalf("adjacent FREE chunks at index %d and %d: %+v %+v", i-1, i, chunks[i-1], chunks[i])
		}
	}
}

func TestSplitLeavesRemainderFree(t *testing.T) {
	a := New()
	p1 := a.Malloc(64)
	a.Malloc(64)
	a.Free(p1)

	// Smaller request should split the freed 64-byte chunk, leaving a
	// free remainder rather than consuming it whole.
	p2 := a.Malloc(16)
	if p2 != p1 {
		t.Fatalf("Malloc(16) = %d, want to reuse freed chunk at %d", p2, p1)
	}
	chunks := a.Chunks()
	foundFreeRemainder := false
	for _, c := range chunks {
		if !c.Used && c.VPtr == p1+16 && c.Size == 48 {
			foundFreeRemainder = true
		}
	}
	if !foundFreeRemainder {
		t.Fatalf("expected a 48-byte free remainder at %d, got %+v", p1+16, chunks)
	}
}

func TestResetClearsState(t *testing.T) {
	a := New()
	a.Malloc(100)
	a.Malloc(200)
	a.Reset()
	if a.WildernessStart() != 0 {
		t.Fatalf("WildernessStart() after Reset = %d, want 0", a.WildernessStart())
	}
	if len(a.Chunks()) != 0 {
		t.Fatalf("Chunks() after Reset = %v, want empty", a.Chunks())
	}
	p := a.Malloc(8)
	if p != 0 {
		t.Fatalf("Malloc after Reset returned %d, want 0", p)
	}
}

func TestBinForRequestIsCeilingBinForChunkIsFloor(t *testing.T) {
	a := New()
	if got := a.binForRequest(31); got != 4 {
		t.Fatalf("binForRequest(31) = %d, want 4", got)
	}
	if got := a.binForChunk(31); got != 3 {
		t.Fatalf("binForChunk(31) = %d, want 3", got)
	}
	if got := a.binForRequest(512); got != 64 {
		t.Fatalf("binForRequest(512) = %d, want 64", got)
	}
	if got := a.binForChunk(512); got != 64 {
		t.Fatalf("binForChunk(512) = %d, want 64", got)
	}
}

func TestMallocClampsZeroSizeToSizeMin(t *testing.T) {
	a := New()
	p1 := a.Malloc(0)
	p2 := a.Malloc(0)
	if p2 <= p1 {
		t.Fatalf("second zero-size Malloc did not advance past the first: %d, %d", p1, p2)
	}
}

func TestFreeOfUnknownPointerIsNoop(t *testing.T) {
	a := New()
	a.Malloc(16)
	a.Free(0xdeadbeef) // never allocated; must not panic
}

func TestManyAllocFreeCyclesReturnToWildernessPeak(t *testing.T) {
	a := New()
	var ptrs []uint32
	for i := 0; i < 100; i++ {
		ptrs = append(ptrs, a.Malloc(uint32(8*(i%5+1))))
	}
	peak := a.WildernessStart()
	for _, p := range ptrs {
		a.Free(p)
	}
	if a.WildernessStart() != peak {
		t.Fatalf("WildernessStart() = %d after freeing everything, want unchanged peak %d", a.WildernessStart(), peak)
	}
	chunks := a.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("expected full coalescence into one free chunk, got %d chunks: %+v", len(chunks), chunks)
	}
	if chunks[0].Used {
		t.Fatal("expected the single remaining chunk to be FREE")
	}
}
