// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command allocheat replays the memory events recorded in a finalized
// record file through the replay allocator (§4.K) and rasterizes a PNG
// heat map of bin occupancy over the course of the replay, answering
// §4.K's design goal of visualising heap fragmentation.
//
// Each thread's periodic live-alloc snapshots (§4.G) are diffed
// against the previous snapshot to recover an alloc/free sequence:
// a vPtr present now but not before is a Malloc of its recorded size;
// a vPtr present before but not now is a Free. The replay allocator
// assigns its own addresses deterministically from that sequence, so
// allocheat tracks original-trace vPtr -> replay-assigned vPtr itself.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/golang/freetype"

	"github.com/gotrace/recorder/record"
	"github.com/gotrace/recorder/replayalloc"
	"github.com/gotrace/recorder/scale"
)

const (
	binCount  = 128
	rowHeight = 4
)

func main() {
	var (
		flagInput  = flag.String("i", "session.rec", "input record `file`")
		flagOutput = flag.String("o", "allocheat.png", "output PNG `file`")
		flagFont   = flag.String("font", "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf", "TrueType `font` for the title")
	)
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	r, err := record.Open(*flagInput, record.NewFlateCodec())
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	var threadStreams []string
	for _, name := range r.Streams() {
		if strings.HasSuffix(name, "/memsnapshot") {
			threadStreams = append(threadStreams, name)
		}
	}
	if len(threadStreams) == 0 {
		log.Fatalf("allocheat: %s has no memory-snapshot streams", *flagInput)
	}
	sort.Strings(threadStreams)

	for _, stream := range threadStreams {
		history, err := replayStream(r, stream)
		if err != nil {
			log.Fatalf("allocheat: replaying %s: %v", stream, err)
		}
		out := outputName(*flagOutput, stream)
		if err := renderHeatmap(out, *flagFont, stream, history); err != nil {
			log.Fatalf("allocheat: rendering %s: %v", out, err)
		}
		fmt.Printf("%s: %d snapshot(s) -> %s\n", stream, len(history), out)
	}
}

// liveAlloc mirrors session.LiveAlloc's wire encoding: 12 bytes per
// entry, vPtr then size, both little-endian.
type liveAlloc struct {
	vPtr uint64
	size uint32
}

func decodeSnapshot(chunk []byte) []liveAlloc {
	var out []liveAlloc
	for off := 0; off+12 <= len(chunk); off += 12 {
		var vPtr uint64
		for i := 0; i < 8; i++ {
			vPtr |= uint64(chunk[off+i]) << (8 * i)
		}
		var size uint32
		for i := 0; i < 4; i++ {
			size |= uint32(chunk[off+8+i]) << (8 * i)
		}
		out = append(out, liveAlloc{vPtr: vPtr, size: size})
	}
	return out
}

// replayStream replays one thread's memsnapshot stream through a
// fresh replayalloc.Allocator, returning the per-bin occupancy history
// sampled after each snapshot is applied.
func replayStream(r *record.Reader, stream string) ([][]replayalloc.BinOccupancy, error) {
	a := replayalloc.New()
	prevLive := make(map[uint64]uint32)
	replayVPtr := make(map[uint64]uint32)

	var history [][]replayalloc.BinOccupancy
	n := r.ChunkCount(stream)
	for i := 0; i < n; i++ {
		raw, err := r.ReadChunk(stream, i)
		if err != nil {
			return nil, err
		}
		curLive := make(map[uint64]uint32)
		for _, e := range decodeSnapshot(raw) {
			curLive[e.vPtr] = e.size
		}

		for vPtr, size := range curLive {
			if _, ok := prevLive[vPtr]; !ok {
				replayVPtr[vPtr] = a.Malloc(size)
			}
		}
		for vPtr := range prevLive {
			if _, ok := curLive[vPtr]; !ok {
				a.Free(replayVPtr[vPtr])
				delete(replayVPtr, vPtr)
			}
		}

		history = append(history, a.OccupancyStats())
		prevLive = curLive
	}
	return history, nil
}

func outputName(base, stream string) string {
	thread := strings.TrimSuffix(stream, "/memsnapshot")
	ext := ".png"
	trimmed := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s.%s%s", trimmed, thread, ext)
}

// renderHeatmap draws one row per snapshot, one column per size-class
// bin, shaded by that bin's total occupied bytes at that point in the
// replay, with a freetype-rendered title (the same
// golang/freetype usage the teacher's cmd/memanim gives its own
// heatmap-style output).
func renderHeatmap(path, fontPath, title string, history [][]replayalloc.BinOccupancy) error {
	const left = 32
	width := left + binCount
	height := len(history)*rowHeight + 20
	if height < 40 {
		height = 40
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	var allBytes []float64
	for _, row := range history {
		for _, b := range row {
			allBytes = append(allBytes, sum(b.Sample.Xs))
		}
	}
	shadeOf := func(float64) uint8 { return 128 } // flat heap: nothing to contrast
	if lo, hi := boundsOf(allBytes); hi > lo {
		lin := scale.NewLinear(allBytes)
		out := scale.NewOutputScale(255, 0) // more bytes -> lower G/B -> redder
		shadeOf = func(bytesUsed float64) uint8 {
			v, ok := out.Of(lin.Of(bytesUsed))
			if !ok {
				v = 0
			}
			return uint8(v)
		}
	}

	for rowIdx, row := range history {
		y0 := 20 + rowIdx*rowHeight
		for _, b := range row {
			shade := shadeOf(sum(b.Sample.Xs))
			c := color.NRGBA{R: 255, G: shade, B: shade, A: 255}
			x := left + int(b.Bin)
			for dy := 0; dy < rowHeight; dy++ {
				img.SetNRGBA(x, y0+dy, c)
			}
		}
	}

	fontData, err := ioutil.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("allocheat: loading font: %w", err)
	}
	face, err := freetype.ParseFont(fontData)
	if err != nil {
		return fmt.Errorf("allocheat: parsing font: %w", err)
	}
	fc := freetype.NewContext()
	fc.SetFont(face)
	fc.SetFontSize(10)
	fc.SetSrc(image.Black)
	fc.SetDst(img)
	fc.SetClip(img.Bounds())
	fc.DrawString(title, freetype.Pt(2, 12))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(f, img)
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func boundsOf(xs []float64) (lo, hi float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	lo, hi = xs[0], xs[0]
	for _, x := range xs {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}
