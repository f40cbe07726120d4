// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

// ProtocolVersion is the major.minor version this decoder negotiates.
// Only the major component (the high byte) is checked for
// compatibility; a mismatch there is fatal (§7).
const ProtocolVersion uint16 = 0x0100

func protocolMajor(v uint16) uint16 { return v >> 8 }

// EncodingFlags are the bitmap of encoding choices fixed for the
// lifetime of a session by the initial handshake (§4.C). They never
// change after negotiation.
type EncodingFlags struct {
	AreStringsExternal bool
	IsStringHashShort  bool
	IsControlEnabled   bool
	IsDateShort        bool
	IsCompactModel     bool
	RecordToggleBytes  bool
}

const (
	flagStringsExternal = 1 << iota
	flagStringHashShort
	flagControlEnabled
	flagDateShort
	flagCompactModel
	flagRecordToggleBytes
)

func decodeEncodingFlags(bitmap uint8) EncodingFlags {
	return EncodingFlags{
		AreStringsExternal: bitmap&flagStringsExternal != 0,
		IsStringHashShort:  bitmap&flagStringHashShort != 0,
		IsControlEnabled:   bitmap&flagControlEnabled != 0,
		IsDateShort:        bitmap&flagDateShort != 0,
		IsCompactModel:     bitmap&flagCompactModel != 0,
		RecordToggleBytes:  bitmap&flagRecordToggleBytes != 0,
	}
}

func (f EncodingFlags) encode() uint8 {
	var b uint8
	if f.AreStringsExternal {
		b |= flagStringsExternal
	}
	if f.IsStringHashShort {
		b |= flagStringHashShort
	}
	if f.IsControlEnabled {
		b |= flagControlEnabled
	}
	if f.IsDateShort {
		b |= flagDateShort
	}
	if f.IsCompactModel {
		b |= flagCompactModel
	}
	if f.RecordToggleBytes {
		b |= flagRecordToggleBytes
	}
	return b
}

// Hello is the fixed-format handshake body: protocol version, app and
// build identification, the session's tick origin and scale, and the
// encoding flags that are immutable for the rest of the session.
type Hello struct {
	ProtocolVersion uint16
	Flags           EncodingFlags
	TickOrigin      uint64
	TickToNs        float64
	AppName         string
	BuildName       string
}

// DecodeHello decodes a hello body. It does not itself reject a
// version mismatch — callers (the session negotiator) compare
// ProtocolVersion's major component against this package's
// ProtocolVersion and close the connection with a ProtocolError of
// kind ProtocolVersionMismatch when they differ.
func DecodeHello(body []byte) (Hello, error) {
	d := bufDecoder{buf: body}
	var h Hello
	var ok bool
	if h.ProtocolVersion, ok = d.u16(); !ok {
		return Hello{}, newError(TruncatedBody, "hello: missing protocol version")
	}
	flagsBitmap, ok := d.u8()
	if !ok {
		return Hello{}, newError(TruncatedBody, "hello: missing flags bitmap")
	}
	h.Flags = decodeEncodingFlags(flagsBitmap)
	if _, ok = d.u8(); !ok { // reserved
		return Hello{}, newError(TruncatedBody, "hello: missing reserved byte")
	}
	if h.TickOrigin, ok = d.u64(); !ok {
		return Hello{}, newError(TruncatedBody, "hello: missing tick origin")
	}
	if h.TickToNs, ok = d.f64(); !ok {
		return Hello{}, newError(TruncatedBody, "hello: missing tick-to-ns factor")
	}
	if h.AppName, ok = d.lenString(); !ok {
		return Hello{}, newError(TruncatedBody, "hello: missing app name")
	}
	if h.BuildName, ok = d.lenString(); !ok {
		return Hello{}, newError(TruncatedBody, "hello: missing build name")
	}
	return h, nil
}

// Encode serializes h as a hello body, for the instrumented-process
// side of tests and tools that synthesize wire traffic.
func (h Hello) Encode() []byte {
	enc := bufEncoder{}
	enc.u16(h.ProtocolVersion)
	enc.u8(h.Flags.encode())
	enc.u8(0) // reserved
	enc.u64(h.TickOrigin)
	enc.f64(h.TickToNs)
	enc.lenString(h.AppName)
	enc.lenString(h.BuildName)
	return enc.buf
}

// CheckVersion reports a ProtocolVersionMismatch error if h's major
// protocol version differs from this package's.
func (h Hello) CheckVersion() error {
	if protocolMajor(h.ProtocolVersion) != protocolMajor(ProtocolVersion) {
		return newError(ProtocolVersionMismatch, "peer protocol version %#x, we speak %#x",
			h.ProtocolVersion, ProtocolVersion)
	}
	return nil
}

// Ack is the minimal handshake acknowledgement sent back to the
// instrumented process once the hello has been validated.
type Ack struct {
	ProtocolVersion uint16
	Accepted        bool
}

// Encode serializes the ack.
func (a Ack) Encode() []byte {
	enc := bufEncoder{}
	enc.u16(a.ProtocolVersion)
	if a.Accepted {
		enc.u8(1)
	} else {
		enc.u8(0)
	}
	return enc.buf
}

// DecodeAck decodes an ack body.
func DecodeAck(body []byte) (Ack, error) {
	d := bufDecoder{buf: body}
	var a Ack
	var ok bool
	if a.ProtocolVersion, ok = d.u16(); !ok {
		return Ack{}, newError(TruncatedBody, "ack: missing protocol version")
	}
	accepted, ok := d.u8()
	if !ok {
		return Ack{}, newError(TruncatedBody, "ack: missing accepted byte")
	}
	a.Accepted = accepted != 0
	return a, nil
}
