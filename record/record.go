// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record implements the chunked writer, reader and finalizer
// for a session's record file (§4.I, §4.M, §6): an append-only
// sequence of compressed blocks, one per named stream's chunk, closed
// with a trailing directory that locates every chunk ever written.
package record

import "github.com/gotrace/recorder/wire"

// Magic identifies a record file. It is written verbatim as the first
// four bytes of every file this package produces.
const Magic = "PLRC"

// Version is the current record file format version, written as the
// four bytes following Magic.
const Version uint32 = 1

// headerSize is the width, in bytes, of the magic+version file header.
const headerSize = 8

// blockHeaderSize is the width, in bytes, of a block's {kind,
// uncompressedLen, compressedLen} prefix.
const blockHeaderSize = 9

// footerSize is the width, in bytes, of the trailing directory-offset
// footer.
const footerSize = 8

const (
	blockTypeData      uint8 = 0
	blockTypeDirectory uint8 = 1
	// blockFlagStored marks that a data block's body is the original,
	// uncompressed bytes: the codec's compressed form was not smaller,
	// so compression was skipped rather than expanding the chunk.
	blockFlagStored uint8 = 0x80
)

// ChunkLoc locates one compressed chunk within the record file, as
// recorded in a stream's chunk-location table.
type ChunkLoc struct {
	Offset          uint64
	UncompressedLen uint32
	CompressedLen   uint32
}

// StorageError is returned when a write to the record file fails
// (§7's StorageWriteFailed, always fatal).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "record: " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }
func (e *StorageError) Fatal() bool   { return true }

// Kind reports the §7 error taxonomy kind this error carries, so
// callers that dispatch on wire.ErrorKind can treat storage and
// protocol errors uniformly.
func (e *StorageError) Kind() wire.ErrorKind { return wire.StorageWriteFailed }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
