// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "fmt"

// ErrorKind classifies the errors a session can encounter while
// decoding wire traffic, matching the taxonomy every counted error in
// the recording core is reported under.
type ErrorKind int

const (
	// ProtocolVersionMismatch is fatal: the peer's major protocol
	// version is incompatible and the connection is closed.
	ProtocolVersionMismatch ErrorKind = iota
	// FrameTooLarge is fatal: a frame's declared byte length exceeds
	// MaxRemoteCommandBytes.
	FrameTooLarge
	// TruncatedBody is recoverable at the session boundary: the
	// transport ended mid-body. The session is finalized with
	// whatever was fully received.
	TruncatedBody
	// UnknownEventKind is recoverable: an event with an unrecognized
	// kind tag is skipped and counted.
	UnknownEventKind
	// UnbalancedScope is recoverable: a scope was never closed and is
	// synthetically closed at finalization.
	UnbalancedScope
	// UnknownDealloc is recoverable: a dealloc event references a
	// pointer with no matching tracked allocation.
	UnknownDealloc
	// StorageWriteFailed is fatal: the record file could not be
	// written to.
	StorageWriteFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ProtocolVersionMismatch:
		return "ProtocolVersionMismatch"
	case FrameTooLarge:
		return "FrameTooLarge"
	case TruncatedBody:
		return "TruncatedBody"
	case UnknownEventKind:
		return "UnknownEventKind"
	case UnbalancedScope:
		return "UnbalancedScope"
	case UnknownDealloc:
		return "UnknownDealloc"
	case StorageWriteFailed:
		return "StorageWriteFailed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Fatal reports whether errors of this kind must close the session,
// as opposed to being logged and counted while the session continues.
func (k ErrorKind) Fatal() bool {
	switch k {
	case ProtocolVersionMismatch, FrameTooLarge, StorageWriteFailed:
		return true
	default:
		return false
	}
}

// ProtocolError is the concrete error type returned (and, for
// non-fatal kinds, also counted) by the wire decoding layer.
type ProtocolError struct {
	Kind    ErrorKind
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Fatal reports whether this error must close the session.
func (e *ProtocolError) Fatal() bool { return e.Kind.Fatal() }

func newError(kind ErrorKind, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
