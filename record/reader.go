// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Reader opens a finalized record file and serves chunk reads by
// stream name and index, decompressing with codec as needed.
type Reader struct {
	r      io.ReaderAt
	closer io.Closer
	codec  Codec

	streams map[string][]ChunkLoc
	order   []string
}

// Open opens the named record file using os.Open.
func Open(path string, codec Codec) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := New(f, size, codec)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// New reads the header, trailing directory-offset footer, and
// directory block of a record file of the given total size.
//
// The caller must keep r open as long as it uses the returned Reader.
func New(r io.ReaderAt, size int64, codec Codec) (*Reader, error) {
	if size < int64(headerSize+footerSize) {
		return nil, fmt.Errorf("record: file too small (%d bytes) to be a record file", size)
	}

	var hdr [headerSize]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("record: reading header: %w", err)
	}
	if string(hdr[:4]) != Magic {
		return nil, fmt.Errorf("bad or unsupported record file magic %q", hdr[:4])
	}
	version := binary.LittleEndian.Uint32(hdr[4:8])
	if version != Version {
		return nil, fmt.Errorf("unsupported record file version %d", version)
	}

	var footer [footerSize]byte
	if _, err := r.ReadAt(footer[:], size-footerSize); err != nil {
		return nil, fmt.Errorf("record: reading footer: %w", err)
	}
	dirOffset := binary.LittleEndian.Uint64(footer[:])

	var bhdr [blockHeaderSize]byte
	if _, err := r.ReadAt(bhdr[:], int64(dirOffset)); err != nil {
		return nil, fmt.Errorf("record: reading directory block header: %w", err)
	}
	if bhdr[0] != blockTypeDirectory {
		return nil, fmt.Errorf("record: block at directory offset has kind %d, want directory", bhdr[0])
	}
	dirLen := binary.LittleEndian.Uint32(bhdr[1:5])
	body := make([]byte, dirLen)
	if _, err := r.ReadAt(body, int64(dirOffset)+blockHeaderSize); err != nil {
		return nil, fmt.Errorf("record: reading directory body: %w", err)
	}

	streams, order, err := decodeDirectory(body)
	if err != nil {
		return nil, err
	}

	return &Reader{r: r, codec: codec, streams: streams, order: order}, nil
}

func decodeDirectory(body []byte) (map[string][]ChunkLoc, []string, error) {
	if len(body) < 4 {
		return nil, nil, fmt.Errorf("record: truncated directory")
	}
	nStreams := binary.LittleEndian.Uint32(body[:4])
	body = body[4:]

	streams := make(map[string][]ChunkLoc, nStreams)
	order := make([]string, 0, nStreams)
	for i := uint32(0); i < nStreams; i++ {
		if len(body) < 4 {
			return nil, nil, fmt.Errorf("record: truncated directory entry %d", i)
		}
		nameLen := binary.LittleEndian.Uint32(body[:4])
		body = body[4:]
		if uint32(len(body)) < nameLen+4 {
			return nil, nil, fmt.Errorf("record: truncated directory entry %d name/count", i)
		}
		name := string(body[:nameLen])
		body = body[nameLen:]
		count := binary.LittleEndian.Uint32(body[:4])
		body = body[4:]

		locs := make([]ChunkLoc, count)
		for j := uint32(0); j < count; j++ {
			if len(body) < 16 {
				return nil, nil, fmt.Errorf("record: truncated chunk loc %d in stream %q", j, name)
			}
			locs[j] = ChunkLoc{
				Offset:          binary.LittleEndian.Uint64(body[:8]),
				UncompressedLen: binary.LittleEndian.Uint32(body[8:12]),
				CompressedLen:   binary.LittleEndian.Uint32(body[12:16]),
			}
			body = body[16:]
		}
		streams[name] = locs
		order = append(order, name)
	}
	return streams, order, nil
}

// Streams lists the names of every stream present in the directory,
// in the order they were first registered by the writer.
func (r *Reader) Streams() []string { return r.order }

// ChunkLocs returns name's chunk-location table.
func (r *Reader) ChunkLocs(name string) []ChunkLoc { return r.streams[name] }

// ChunkCount reports how many chunks name has.
func (r *Reader) ChunkCount(name string) int { return len(r.streams[name]) }

// ReadChunk decompresses and returns chunk idx of stream name.
func (r *Reader) ReadChunk(name string, idx int) ([]byte, error) {
	locs, ok := r.streams[name]
	if !ok {
		return nil, fmt.Errorf("record: no such stream %q", name)
	}
	if idx < 0 || idx >= len(locs) {
		return nil, fmt.Errorf("record: stream %q has no chunk %d", name, idx)
	}
	loc := locs[idx]

	var bhdr [blockHeaderSize]byte
	if _, err := r.r.ReadAt(bhdr[:], int64(loc.Offset)); err != nil {
		return nil, fmt.Errorf("record: reading chunk header for %q[%d]: %w", name, idx, err)
	}
	kind := bhdr[0]

	body := make([]byte, loc.CompressedLen)
	if _, err := r.r.ReadAt(body, int64(loc.Offset)+blockHeaderSize); err != nil {
		return nil, fmt.Errorf("record: reading chunk body for %q[%d]: %w", name, idx, err)
	}

	if kind&blockFlagStored != 0 {
		return body, nil
	}
	return r.codec.Decompress(body, int(loc.UncompressedLen))
}

// Close closes the Reader.
//
// If the Reader was created using New directly instead of Open, Close
// has no effect.
func (r *Reader) Close() error {
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}
