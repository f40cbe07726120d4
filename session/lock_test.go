// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import "testing"

func TestLockRegistryGetOrCreateDedupsByName(t *testing.T) {
	r := NewLockRegistry()
	l1, created1 := r.getOrCreate(0, 42)
	l2, created2 := r.getOrCreate(1, 42)
	if !created1 {
		t.Fatalf("first getOrCreate should create")
	}
	if created2 {
		t.Fatalf("second getOrCreate for the same nameIdx should not create")
	}
	if l1 != l2 {
		t.Fatalf("expected the same lockBuilder across streams for one nameIdx")
	}
	if r.Count() != 1 {
		t.Fatalf("got Count()=%d, want 1", r.Count())
	}
}

func TestLockRegistryWaitThenUseClearsWaiter(t *testing.T) {
	r := NewLockRegistry()
	r.beginWait(0, 1, 100)
	r.beginWait(0, 1, 200)

	l, _ := r.getOrCreate(0, 1)
	if len(l.waitingThreads) != 2 {
		t.Fatalf("got %d waiters, want 2", len(l.waitingThreads))
	}

	r.use(0, 1, 100, 5000)
	if !l.inUse || l.owningThread != 100 || l.useStartTick != 5000 {
		t.Fatalf("lock state after use: inUse=%v owner=%d start=%d", l.inUse, l.owningThread, l.useStartTick)
	}
	if len(l.waitingThreads) != 1 || l.waitingThreads[0] != 200 {
		t.Fatalf("got waiters %v, want [200]", l.waitingThreads)
	}
}

func TestLockRegistryNotifyClearsInUse(t *testing.T) {
	r := NewLockRegistry()
	r.use(0, 1, 100, 10)
	r.notify(0, 1)
	l, _ := r.getOrCreate(0, 1)
	if l.inUse {
		t.Fatalf("expected inUse=false after notify")
	}
}

func TestLockRegistryCountAcrossManyLocks(t *testing.T) {
	r := NewLockRegistry()
	for i := uint32(0); i < 10; i++ {
		r.getOrCreate(0, i)
	}
	if r.Count() != 10 {
		t.Fatalf("got Count()=%d, want 10", r.Count())
	}
}
