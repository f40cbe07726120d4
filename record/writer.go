// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"encoding/binary"
	"os"
	"sync"
)

// DefaultChunkBytes is the buffering threshold a stream flushes at
// when RegisterStream is not given an explicit size.
const DefaultChunkBytes = 64 * 1024

type streamState struct {
	buf        []byte
	chunkBytes int
	locs       []ChunkLoc
}

// Writer is the chunked writer (§4.I): it buffers appended bytes per
// named stream, flushing each to a compressed block once its buffer
// reaches that stream's chunk threshold, and writes the trailing
// directory and commit footer on Finalize.
//
// Writer is safe for concurrent use by multiple streams' producers;
// all streams share one underlying file and one offset counter.
type Writer struct {
	codec Codec

	mu      sync.Mutex
	f       *os.File
	tmpPath string
	finPath string
	offset  uint64
	streams map[string]*streamState
	order   []string
	done    bool
}

// NewWriter creates path+".tmp" and begins a new record file, writing
// the magic/version header. Finalize renames the temp file into place
// at path, the atomic commit point described in §4.M/§7.
func NewWriter(path string, codec Codec) (*Writer, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, storageErr("create", err)
	}
	w := &Writer{
		codec:   codec,
		f:       f,
		tmpPath: tmp,
		finPath: path,
		streams: make(map[string]*streamState),
	}
	var hdr [headerSize]byte
	copy(hdr[:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], Version)
	if err := w.write(hdr[:]); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}
	return w, nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.f.Write(p)
	w.offset += uint64(n)
	return storageErr("write", err)
}

// RegisterStream declares a named stream with an explicit flush
// threshold. Optional: Append auto-registers a stream at
// DefaultChunkBytes the first time it is used.
func (w *Writer) RegisterStream(name string, chunkBytes int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.streamLocked(name, chunkBytes)
}

func (w *Writer) streamLocked(name string, chunkBytes int) *streamState {
	s, ok := w.streams[name]
	if !ok {
		if chunkBytes <= 0 {
			chunkBytes = DefaultChunkBytes
		}
		s = &streamState{chunkBytes: chunkBytes}
		w.streams[name] = s
		w.order = append(w.order, name)
	}
	return s
}

// Append adds raw bytes (e.g. a sequence of encoded §3 Events) to
// name's buffer, flushing a chunk to disk whenever the buffer reaches
// the stream's chunk threshold.
func (w *Writer) Append(name string, raw []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.streamLocked(name, 0)
	s.buf = append(s.buf, raw...)
	if len(s.buf) >= s.chunkBytes {
		return w.flushLocked(s)
	}
	return nil
}

// Flush forces name's partially-filled buffer out as a chunk, even if
// it has not reached the flush threshold. A name that was never
// registered or appended to is a no-op.
func (w *Writer) Flush(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.streams[name]
	if !ok {
		return nil
	}
	return w.flushLocked(s)
}

func (w *Writer) flushLocked(s *streamState) error {
	if len(s.buf) == 0 {
		return nil
	}
	compressed := w.codec.Compress(s.buf)
	stored := len(compressed) >= len(s.buf)
	body := compressed
	kind := blockTypeData
	if stored {
		body = s.buf
		kind |= blockFlagStored
	}

	loc := ChunkLoc{
		Offset:          w.offset,
		UncompressedLen: uint32(len(s.buf)),
		CompressedLen:   uint32(len(body)),
	}

	var hdr [blockHeaderSize]byte
	hdr[0] = kind
	binary.LittleEndian.PutUint32(hdr[1:5], loc.UncompressedLen)
	binary.LittleEndian.PutUint32(hdr[5:9], loc.CompressedLen)
	if err := w.write(hdr[:]); err != nil {
		return err
	}
	if err := w.write(body); err != nil {
		return err
	}

	s.locs = append(s.locs, loc)
	s.buf = s.buf[:0]
	return nil
}

// ChunkCount reports how many chunks name has flushed so far,
// including any not yet visible to a reader until Finalize.
func (w *Writer) ChunkCount(name string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.streams[name]; ok {
		return len(s.locs)
	}
	return 0
}

// Finalize flushes every stream's remaining buffer, appends the
// directory block and commit footer, fsyncs, and atomically renames
// the temp file into place. Once Finalize has succeeded, further
// calls return nil and do nothing.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	for _, name := range w.order {
		if err := w.flushLocked(w.streams[name]); err != nil {
			return err
		}
	}

	dirOffset := w.offset
	body := w.encodeDirectory()
	var hdr [blockHeaderSize]byte
	hdr[0] = blockTypeDirectory
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(body)))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(body)))
	if err := w.write(hdr[:]); err != nil {
		return err
	}
	if err := w.write(body); err != nil {
		return err
	}

	var footer [footerSize]byte
	binary.LittleEndian.PutUint64(footer[:], dirOffset)
	if err := w.write(footer[:]); err != nil {
		return err
	}

	if err := w.f.Sync(); err != nil {
		return storageErr("sync", err)
	}
	if err := w.f.Close(); err != nil {
		return storageErr("close", err)
	}
	if err := os.Rename(w.tmpPath, w.finPath); err != nil {
		return storageErr("rename", err)
	}
	w.done = true
	return nil
}

// encodeDirectory serializes every stream's chunk-location table:
// repeated { u32 nameLen, name bytes, u32 count, count*(u64 offset,
// u32 uncompressedLen, u32 compressedLen) }.
func (w *Writer) encodeDirectory() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.order)))
	for _, name := range w.order {
		s := w.streams[name]
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(name)))
		buf = append(buf, name...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.locs)))
		for _, loc := range s.locs {
			buf = binary.LittleEndian.AppendUint64(buf, loc.Offset)
			buf = binary.LittleEndian.AppendUint32(buf, loc.UncompressedLen)
			buf = binary.LittleEndian.AppendUint32(buf, loc.CompressedLen)
		}
	}
	return buf
}

// Abort discards the in-progress temp file without committing it,
// used when the session closes abnormally before a clean finalize
// (e.g. a fatal StorageWriteFailed on a different stream).
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done = true
	w.f.Close()
	return os.Remove(w.tmpPath)
}
