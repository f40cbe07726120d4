// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestTCPAcceptorReadsClientBytes(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer tr.Close()

	go func() {
		conn, err := net.Dial("tcp", tr.Addr().String())
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	n, err := io.ReadFull(tr, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestTCPAcceptorRejectsSecondClient(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer tr.Close()

	first, err := net.Dial("tcp", tr.Addr().String())
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()

	// Give acceptLoop time to claim the first connection.
	time.Sleep(20 * time.Millisecond)

	second, err := net.Dial("tcp", tr.Addr().String())
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := second.Read(buf); err != io.EOF {
		t.Fatalf("second connection got err=%v, want io.EOF (rejected)", err)
	}

	first.Write([]byte("x"))
	got := make([]byte, 1)
	if _, err := io.ReadFull(tr, got); err != nil {
		t.Fatalf("Read from first conn: %v", err)
	}
	if got[0] != 'x' {
		t.Fatalf("got %q, want x", got)
	}
}

func TestTCPAcceptorStopUnblocksRead(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer tr.Close()

	done := make(chan error, 1)
	go func() {
		_, err := tr.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tr.Stop()

	select {
	case err := <-done:
		if err != io.EOF {
			t.Fatalf("got %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not unblock after Stop")
	}
}

func TestTCPAcceptorStopClosesActiveConnRead(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer tr.Close()

	conn, err := net.Dial("tcp", tr.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	tr.Stop()
	if _, err := tr.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}
