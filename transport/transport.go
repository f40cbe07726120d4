// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport implements the byte transport (§4.A): a blocking
// byte source that the frame parser (package wire) consumes from,
// backed either by a TCP listener fed from an instrumented process or
// by a previously captured file. Both implementations present the
// same io.ReadCloser surface and support cooperative shutdown: once
// Stop is called, a blocked or future Read returns io.EOF rather than
// blocking forever.
package transport

import "io"

// Transport is the blocking byte source the rx thread reads from
// before handing bytes to a wire.Parser.
type Transport interface {
	io.ReadCloser

	// Stop requests that the transport wind down: a Read blocked at
	// the time of the call, or any future Read, returns io.EOF. Stop
	// does not itself release the underlying resource; Close does.
	Stop()
}
