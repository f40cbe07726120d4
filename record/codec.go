// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Codec is the compression contract for a chunked stream's buffer: an
// invertible byte transform from an uncompressed chunk to a (normally
// smaller) compressed one. The core treats compression as an external
// collaborator (§1) — only this interface is specified.
type Codec interface {
	// Compress returns src's compressed form. The caller is
	// responsible for falling back to storing src verbatim when the
	// result is not smaller (the record.Writer does this).
	Compress(src []byte) []byte

	// Decompress inverts Compress, given the exact uncompressed
	// length recorded alongside the chunk.
	Decompress(compressed []byte, uncompressedLen int) ([]byte, error)
}

// FlateCodec is a dependency-free Codec built on the standard
// library's compress/flate. The cmd tools select it when no zstd level
// is given, and it is the one used throughout this package's own tests
// so they carry no third-party requirement.
type FlateCodec struct{}

// NewFlateCodec returns a ready-to-use FlateCodec.
func NewFlateCodec() *FlateCodec { return &FlateCodec{} }

func (FlateCodec) Compress(src []byte) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		// flate.NewWriter only errors on an invalid level constant.
		panic(err)
	}
	w.Write(src)
	w.Close()
	return buf.Bytes()
}

func (FlateCodec) Decompress(compressed []byte, uncompressedLen int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("record: flate decompress: %w", err)
	}
	return out, nil
}

// ZstdCodec is the production codec, wired from the retrieved pack's
// klauspost/compress dependency (§11). Its Encoder and Decoder are
// built once with a nil (buffer-only) destination and used solely
// through EncodeAll/DecodeAll, which the library documents as safe
// for concurrent use.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec builds a ZstdCodec at the given compression level.
func NewZstdCodec(level zstd.EncoderLevel) (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("record: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("record: zstd decoder: %w", err)
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (c *ZstdCodec) Compress(src []byte) []byte {
	return c.enc.EncodeAll(src, make([]byte, 0, len(src)))
}

func (c *ZstdCodec) Decompress(compressed []byte, uncompressedLen int) ([]byte, error) {
	out, err := c.dec.DecodeAll(compressed, make([]byte, 0, uncompressedLen))
	if err != nil {
		return nil, fmt.Errorf("record: zstd decompress: %w", err)
	}
	return out, nil
}

// Close releases the codec's background resources.
func (c *ZstdCodec) Close() {
	c.enc.Close()
	c.dec.Close()
}
