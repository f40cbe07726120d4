// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"io"
	"net"
	"sync"
)

// TCPAcceptor binds one port and serves exactly one client connection
// at a time (§4.A). While a client is connected, additional connection
// attempts are accepted and closed immediately without being handed to
// Read.
type TCPAcceptor struct {
	ln net.Listener

	mu      sync.Mutex
	cond    *sync.Cond
	conn    net.Conn
	stopped bool
}

// ListenTCP binds addr and begins accepting connections in the
// background. The returned acceptor's Read blocks until the first
// client connects.
func ListenTCP(addr string) (*TCPAcceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	t := &TCPAcceptor{ln: ln}
	t.cond = sync.NewCond(&t.mu)
	go t.acceptLoop()
	return t, nil
}

// Addr returns the bound address, for tests that listen on ":0".
func (t *TCPAcceptor) Addr() net.Addr { return t.ln.Addr() }

func (t *TCPAcceptor) acceptLoop() {
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			t.mu.Lock()
			t.stopped = true
			t.cond.Broadcast()
			t.mu.Unlock()
			return
		}

		t.mu.Lock()
		if t.stopped || t.conn != nil {
			t.mu.Unlock()
			conn.Close() // one client at a time; reject the rest
			continue
		}
		t.conn = conn
		t.cond.Broadcast()
		t.mu.Unlock()
	}
}

// Read blocks until a client is connected and has bytes available, the
// active connection ends, or Stop/Close is called.
func (t *TCPAcceptor) Read(p []byte) (int, error) {
	t.mu.Lock()
	for t.conn == nil && !t.stopped {
		t.cond.Wait()
	}
	if t.stopped {
		t.mu.Unlock()
		return 0, io.EOF
	}
	conn := t.conn
	t.mu.Unlock()

	n, err := conn.Read(p)
	if err != nil {
		t.mu.Lock()
		if t.conn == conn {
			// The served client disconnected; accept the next one.
			t.conn = nil
		}
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return n, io.EOF
		}
		return n, err
	}
	return n, nil
}

// Stop unblocks any in-flight or future Read with io.EOF and closes
// the active connection, if any. The listener keeps accepting (and
// rejecting) connections until Close.
func (t *TCPAcceptor) Stop() {
	t.mu.Lock()
	t.stopped = true
	conn := t.conn
	t.conn = nil
	t.cond.Broadcast()
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close stops the acceptor and releases the listener.
func (t *TCPAcceptor) Close() error {
	t.Stop()
	return t.ln.Close()
}
