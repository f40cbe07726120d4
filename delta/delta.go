// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package delta implements the recording core's delta view (§4.L): a
// periodic snapshot of what changed in a session's threads, elems,
// locks, and strings since the last snapshot, published to the UI
// thread over a lock-free latest-wins exchanger (§4.D) so a live
// viewer can redraw without ever blocking the recorder.
package delta

import (
	"time"

	"github.com/gotrace/recorder/exchange"
	"github.com/gotrace/recorder/session"
)

// Snapshot is one delta: the ids of everything that changed since the
// previous snapshot, plus the high-water tick it covers. A zero
// Snapshot (no dirty ids, LastTick 0) is a valid "nothing changed yet"
// value, used as the exchanger's initial buffer contents.
type Snapshot struct {
	LastTick uint64

	// DirtyThreads holds the ids of threads created since the last
	// snapshot (§4.L: "the ids of threads whose name changed" —
	// generalized here to "observed", since this core attributes a
	// thread's identity by stream rather than a renamable name field).
	DirtyThreads []uint32

	// DirtyElems holds the ids of elems created or updated (a new
	// scope observation, a new plot sample) since the last snapshot.
	DirtyElems []uint32

	// NewLocks holds the name-ids of locks created since the last
	// snapshot.
	NewLocks []uint32

	// NewStrings holds the ids of strings interned since the last
	// snapshot.
	NewStrings []uint32
}

// Empty reports whether the snapshot carries no changes at all, so a
// caller can skip publishing a no-op update.
func (s Snapshot) Empty() bool {
	return len(s.DirtyThreads) == 0 && len(s.DirtyElems) == 0 &&
		len(s.NewLocks) == 0 && len(s.NewStrings) == 0
}

// View owns the latest-wins exchanger a UI thread polls, and samples a
// Session's dirty-tracking state into a Snapshot on demand. View
// belongs to the recorder thread (§5: "delta ... can be folded into
// recorder"); it must never be driven from more than one goroutine.
type View struct {
	sess *session.Session
	pub  *exchange.LatestWins[Snapshot]
}

// NewView creates a View over sess, with a fresh LatestWins exchanger
// the UI thread can read via Exchanger.
func NewView(sess *session.Session) *View {
	return &View{
		sess: sess,
		pub:  exchange.NewLatestWins(func() *Snapshot { return &Snapshot{} }),
	}
}

// Exchanger returns the latest-wins publisher the UI thread polls via
// ConsumerAdvance/ConsumerCurrent.
func (v *View) Exchanger() *exchange.LatestWins[Snapshot] { return v.pub }

// Sample drains every dirty-tracking set on the session into a new
// Snapshot, publishes it to the exchanger, and returns it. It must be
// called only from the recorder thread, and never concurrently with
// event routing on the same Session (§5's single-owner rule covers
// both).
func (v *View) Sample() Snapshot {
	snap := Snapshot{
		LastTick:     v.sess.LastTick(),
		DirtyThreads: v.sess.TakeDirtyThreads(),
		DirtyElems:   v.sess.TakeDirtyElems(),
		NewLocks:     v.sess.TakeDirtyLocks(),
		NewStrings:   v.sess.TakeDirtyStrings(),
	}
	buf := v.pub.ProducerAcquire()
	*buf = snap
	v.pub.ProducerPublish(buf)
	return snap
}

// Run samples the view every session.DeltaRecordPeriod, calling tick
// after each sample, until stop is closed or tick returns false. Run
// blocks on its own ticker and calls Sample from the goroutine that
// runs it, so no events may be routed to the Session while Run is
// running.
func Run(v *View, stop <-chan struct{}, tick func() bool) {
	ticker := time.NewTicker(session.DeltaRecordPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			v.Sample()
			if tick != nil && !tick() {
				return
			}
		}
	}
}
