// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exchange implements the two lock-free hand-offs used to
// cross thread boundaries in the recording core: a single-slot
// exchanger that carries exactly one message in flight at a time, and
// a latest-wins pusher that lets a producer update state faster than a
// consumer drains it, at the cost of dropping intermediate versions.
//
// Both are built on atomic pointer swaps rather than a mutex, matching
// how the recording core hands commands to the instrumented process
// (SingleSlot) and how it publishes delta-view snapshots to the UI
// thread (LatestWins): neither consumer is allowed to block the
// producer, and the producer must never block on the consumer either.
package exchange

import "sync/atomic"

// SingleSlot exchanges one message of type T between a sender and a
// receiver. The sender may not prepare another message until the
// receiver has released the previous one; this is enforced by the
// sender, not the type, so misuse is a programming error rather than a
// blocking wait.
type SingleSlot[T any] struct {
	free atomic.Pointer[T]
	sent atomic.Pointer[T]
}

// NewSingleSlot creates a SingleSlot with one free message, obtained
// by calling zero.
func NewSingleSlot[T any](zero func() *T) *SingleSlot[T] {
	s := &SingleSlot[T]{}
	s.free.Store(zero())
	return s
}

// SenderAcquire returns the free message for the sender to fill, or
// nil if the previous message has not yet been released by the
// receiver.
func (s *SingleSlot[T]) SenderAcquire() *T {
	return s.free.Swap(nil)
}

// Send publishes msg (obtained from SenderAcquire) to the receiver. It
// panics if a message is already pending — the sender must wait for
// SenderAcquire to return non-nil again before calling Send a second
// time.
func (s *SingleSlot[T]) Send(msg *T) {
	prev := s.sent.Swap(msg)
	if prev != nil {
		// A second message was sent before the receiver took the
		// first: this is the exchanger's one invariant violation and
		// indicates a bug in the sender, not a race to recover from.
		panic("exchange.SingleSlot: sent while previous message still pending")
	}
}

// ReceiverTake takes the pending message, if any, returning nil if the
// sender has not sent one since the last ReceiverRelease.
func (s *SingleSlot[T]) ReceiverTake() *T {
	return s.sent.Swap(nil)
}

// ReceiverRelease returns msg (from ReceiverTake) to the free slot so
// the sender may reuse it.
func (s *SingleSlot[T]) ReceiverRelease(msg *T) {
	prev := s.free.Swap(msg)
	if prev != nil {
		panic("exchange.SingleSlot: released while free slot already occupied")
	}
}

// LatestWins publishes a stream of updates where only the most
// recently published value matters to the consumer: a producer may
// call Push many times between two consumer Advance calls, and only
// the last value survives. This is how the delta view reaches the UI
// thread — a dropped intermediate snapshot is fine, a torn one is not.
type LatestWins[T any] struct {
	free     atomic.Pointer[T]
	free2    atomic.Pointer[T]
	nextUsed atomic.Pointer[T]
	cur      *T // owned by the consumer; never touched by the producer
}

// NewLatestWins creates a LatestWins with three backing values,
// allocated by calling zero three times.
func NewLatestWins[T any](zero func() *T) *LatestWins[T] {
	lw := &LatestWins[T]{cur: zero()}
	lw.free.Store(zero())
	lw.free2.Store(zero())
	return lw
}

// ProducerAcquire returns a free buffer for the producer to fill, to
// be handed back with ProducerPublish. It panics if both backing
// buffers are currently owned by the consumer and producer
// simultaneously, which cannot happen under correct single-producer
// usage — there are always at least two buffers free of the one the
// consumer holds.
func (lw *LatestWins[T]) ProducerAcquire() *T {
	t := lw.free.Swap(nil)
	if t == nil {
		t = lw.free2.Swap(nil)
	}
	if t == nil {
		panic("exchange.LatestWins: no free buffer available; concurrent producers?")
	}
	return t
}

// ProducerPublish publishes buf (from ProducerAcquire) as the latest
// value. Any value previously published but not yet taken by the
// consumer is recycled back into the free pool and its contents are
// lost — this is the "latest wins" behavior.
func (lw *LatestWins[T]) ProducerPublish(buf *T) {
	prev := lw.nextUsed.Swap(buf)
	if prev == nil {
		return
	}
	if recycled := lw.free.Swap(prev); recycled != nil {
		if leaked := lw.free2.Swap(recycled); leaked != nil {
			panic("exchange.LatestWins: both free slots occupied on recycle")
		}
	}
}

// ConsumerAdvance swaps in the latest published value, if one has
// arrived since the last call, recycling the previously-current value
// back into the free pool. It reports whether a new value was
// available.
func (lw *LatestWins[T]) ConsumerAdvance() bool {
	next := lw.nextUsed.Swap(nil)
	if next == nil {
		return false
	}
	old := lw.cur
	lw.cur = next
	if recycled := lw.free.Swap(old); recycled != nil {
		if leaked := lw.free2.Swap(recycled); leaked != nil {
			panic("exchange.LatestWins: both free slots occupied on advance")
		}
	}
	return true
}

// ConsumerCurrent returns the value currently owned by the consumer.
// It is only valid to call from the consumer thread.
func (lw *LatestWins[T]) ConsumerCurrent() *T {
	return lw.cur
}
