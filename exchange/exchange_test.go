// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exchange

import (
	"sync"
	"testing"
)

func TestSingleSlotRoundTrip(t *testing.T) {
	s := NewSingleSlot(func() *int { v := 0; return &v })

	if s.ReceiverTake() != nil {
		t.Fatalf("unexpected message before any send")
	}

	msg := s.SenderAcquire()
	if msg == nil {
		t.Fatalf("SenderAcquire returned nil on fresh exchanger")
	}
	*msg = 42
	s.Send(msg)

	if s.SenderAcquire() != nil {
		t.Fatalf("SenderAcquire returned non-nil while message still pending")
	}

	got := s.ReceiverTake()
	if got == nil || *got != 42 {
		t.Fatalf("ReceiverTake = %v, want 42", got)
	}
	s.ReceiverRelease(got)

	msg2 := s.SenderAcquire()
	if msg2 == nil {
		t.Fatalf("SenderAcquire returned nil after release")
	}
}

func TestSingleSlotDoubleSendPanics(t *testing.T) {
	s := NewSingleSlot(func() *int { v := 0; return &v })
	msg := s.SenderAcquire()
	s.Send(msg)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic sending a second message while one is pending")
		}
	}()
	other := new(int)
	s.Send(other)
}

func TestSingleSlotConcurrent(t *testing.T) {
	s := NewSingleSlot(func() *int { v := 0; return &v })
	const n = 2000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		sent := 0
		for sent < n {
			if msg := s.SenderAcquire(); msg != nil {
				*msg = sent
				s.Send(msg)
				sent++
			}
		}
	}()

	go func() {
		defer wg.Done()
		received := 0
		last := -1
		for received < n {
			if msg := s.ReceiverTake(); msg != nil {
				if *msg <= last {
					t.Errorf("out-of-order message %d after %d", *msg, last)
				}
				last = *msg
				received++
				s.ReceiverRelease(msg)
			}
		}
	}()

	wg.Wait()
}

func TestLatestWinsDropsIntermediate(t *testing.T) {
	lw := NewLatestWins(func() *int { v := 0; return &v })

	for i := 1; i <= 5; i++ {
		buf := lw.ProducerAcquire()
		*buf = i
		lw.ProducerPublish(buf)
	}

	if !lw.ConsumerAdvance() {
		t.Fatalf("ConsumerAdvance reported no update available")
	}
	if got := *lw.ConsumerCurrent(); got != 5 {
		t.Fatalf("ConsumerCurrent = %d, want 5 (latest-wins)", got)
	}

	if lw.ConsumerAdvance() {
		t.Fatalf("ConsumerAdvance reported an update when none was published")
	}
}

func TestLatestWinsNeverTornRead(t *testing.T) {
	type payload struct{ a, b int }
	lw := NewLatestWins(func() *payload { return &payload{} })

	const n = 5000
	var wg sync.WaitGroup
	wg.Add(2)
	done := make(chan struct{})

	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			buf := lw.ProducerAcquire()
			buf.a, buf.b = i, i // a and b always equal: torn read would show a != b
			lw.ProducerPublish(buf)
		}
		close(done)
	}()

	go func() {
		defer wg.Done()
		for {
			if lw.ConsumerAdvance() {
				cur := lw.ConsumerCurrent()
				if cur.a != cur.b {
					t.Errorf("torn read: a=%d b=%d", cur.a, cur.b)
				}
			}
			select {
			case <-done:
				return
			default:
			}
		}
	}()

	wg.Wait()
}
