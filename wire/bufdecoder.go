// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"math"
)

// bufDecoder decodes little-endian wire fields from a byte slice,
// advancing its internal cursor as each field is read. It is the wire
// package's equivalent of perffile's bufDecoder, adapted to return
// errors instead of panicking on a short buffer: unlike a trusted
// local perf.data file, wire input arrives from a socket and a
// malformed or truncated frame must degrade to a counted
// TruncatedBody, never a crash.
type bufDecoder struct {
	buf []byte
}

func (b *bufDecoder) remaining() int { return len(b.buf) }

func (b *bufDecoder) need(n int) bool { return len(b.buf) >= n }

func (b *bufDecoder) skip(n int) bool {
	if !b.need(n) {
		return false
	}
	b.buf = b.buf[n:]
	return true
}

func (b *bufDecoder) u8() (uint8, bool) {
	if !b.need(1) {
		return 0, false
	}
	x := b.buf[0]
	b.buf = b.buf[1:]
	return x, true
}

func (b *bufDecoder) u16() (uint16, bool) {
	if !b.need(2) {
		return 0, false
	}
	x := binary.LittleEndian.Uint16(b.buf)
	b.buf = b.buf[2:]
	return x, true
}

func (b *bufDecoder) u32() (uint32, bool) {
	if !b.need(4) {
		return 0, false
	}
	x := binary.LittleEndian.Uint32(b.buf)
	b.buf = b.buf[4:]
	return x, true
}

func (b *bufDecoder) u64() (uint64, bool) {
	if !b.need(8) {
		return 0, false
	}
	x := binary.LittleEndian.Uint64(b.buf)
	b.buf = b.buf[8:]
	return x, true
}

func (b *bufDecoder) f64() (float64, bool) {
	bits, ok := b.u64()
	if !ok {
		return 0, false
	}
	return math.Float64frombits(bits), true
}

func (b *bufDecoder) bytes(n int) ([]byte, bool) {
	if !b.need(n) {
		return nil, false
	}
	x := b.buf[:n]
	b.buf = b.buf[n:]
	return x, true
}

// lenString reads a u32 length prefix followed by that many bytes of
// UTF-8 text, the wire representation used for the hello body's
// appName/buildName fields.
func (b *bufDecoder) lenString() (string, bool) {
	n, ok := b.u32()
	if !ok {
		return "", false
	}
	raw, ok := b.bytes(int(n))
	if !ok {
		return "", false
	}
	return string(raw), true
}

type bufEncoder struct {
	buf []byte
}

func (b *bufEncoder) u8(x uint8)   { b.buf = append(b.buf, x) }
func (b *bufEncoder) u16(x uint16) { b.buf = binary.LittleEndian.AppendUint16(b.buf, x) }
func (b *bufEncoder) u32(x uint32) { b.buf = binary.LittleEndian.AppendUint32(b.buf, x) }
func (b *bufEncoder) u64(x uint64) { b.buf = binary.LittleEndian.AppendUint64(b.buf, x) }
func (b *bufEncoder) f64(x float64) {
	b.u64(math.Float64bits(x))
}
func (b *bufEncoder) bytes(x []byte) { b.buf = append(b.buf, x...) }
func (b *bufEncoder) lenString(s string) {
	b.u32(uint32(len(s)))
	b.buf = append(b.buf, s...)
}
