// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

// WireString is one decoded entry from a STRING sub-frame: a hash (64
// or 32 bit, per the session's IsStringHashShort flag, always widened
// to 64 bits here) and its UTF-8 value.
type WireString struct {
	Hash  uint64
	Value string
}

// DecodeStrings decodes a STRING frame body containing count repeated
// { hash, u16 len, bytes } entries. shortHash selects the 32-bit hash
// wire encoding negotiated by EncodingFlags.IsStringHashShort.
func DecodeStrings(body []byte, count int, shortHash bool) ([]WireString, error) {
	d := bufDecoder{buf: body}
	out := make([]WireString, 0, count)
	for i := 0; i < count; i++ {
		var hash uint64
		if shortHash {
			h32, ok := d.u32()
			if !ok {
				return out, newError(TruncatedBody, "string %d/%d: missing hash", i, count)
			}
			hash = uint64(h32)
		} else {
			h64, ok := d.u64()
			if !ok {
				return out, newError(TruncatedBody, "string %d/%d: missing hash", i, count)
			}
			hash = h64
		}
		l, ok := d.u16()
		if !ok {
			return out, newError(TruncatedBody, "string %d/%d: missing length", i, count)
		}
		raw, ok := d.bytes(int(l))
		if !ok {
			return out, newError(TruncatedBody, "string %d/%d: body shorter than declared length %d", i, count, l)
		}
		out = append(out, WireString{Hash: hash, Value: string(raw)})
	}
	return out, nil
}

// EncodeStrings is the inverse of DecodeStrings, used by tests and by
// tools that synthesize wire traffic.
func EncodeStrings(strs []WireString, shortHash bool) []byte {
	enc := bufEncoder{}
	for _, s := range strs {
		if shortHash {
			enc.u32(uint32(s.Hash))
		} else {
			enc.u64(s.Hash)
		}
		enc.u16(uint16(len(s.Value)))
		enc.bytes([]byte(s.Value))
	}
	return enc.buf
}

// EmptyStringHash is the reserved hash value for the canonical empty
// string.
const EmptyStringHash uint64 = 1
