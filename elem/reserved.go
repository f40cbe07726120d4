// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elem

import "fmt"

// ReservedNameID is a synthetic, per-kind elem name carried at a fixed
// offset so it can never collide with a user-assigned symbol name
// (§11, supplementing cmConst's 0x70000000-based reserved range). The
// session package uses these as the rawName passed to
// Index.GetOrCreate for elems it synthesizes itself rather than
// learning from the wire (e.g. the "alloc size" plot elem backing
// memory-plot events).
type ReservedNameID uint32

const reservedNameBase ReservedNameID = 0x70000000

const (
	ReservedNameAllocSize     ReservedNameID = reservedNameBase + 0x00
	ReservedNameAllocQty      ReservedNameID = reservedNameBase + 0x01
	ReservedNameDeallocQty    ReservedNameID = reservedNameBase + 0x02
	ReservedNameContextSwitch ReservedNameID = reservedNameBase + 0x03
	ReservedNameCoreUsage     ReservedNameID = reservedNameBase + 0x04
	ReservedNameCPUCurve      ReservedNameID = reservedNameBase + 0x05
	ReservedNameSoftIRQ       ReservedNameID = reservedNameBase + 0x06
	ReservedNameLockWait      ReservedNameID = reservedNameBase + 0x07
	ReservedNameLockUse       ReservedNameID = reservedNameBase + 0x08
	ReservedNameLockNotify    ReservedNameID = reservedNameBase + 0x09
	ReservedNameScope         ReservedNameID = reservedNameBase + 0x10
	ReservedNameMarker        ReservedNameID = reservedNameBase + 0x11
)

var reservedNameLabels = map[ReservedNameID]string{
	ReservedNameAllocSize:     "alloc-size",
	ReservedNameAllocQty:      "alloc-qty",
	ReservedNameDeallocQty:    "dealloc-qty",
	ReservedNameContextSwitch: "context-switch",
	ReservedNameCoreUsage:     "core-usage",
	ReservedNameCPUCurve:      "cpu-curve",
	ReservedNameSoftIRQ:       "soft-irq",
	ReservedNameLockWait:      "lock-wait",
	ReservedNameLockUse:       "lock-use",
	ReservedNameLockNotify:    "lock-notify",
	ReservedNameScope:         "scope",
	ReservedNameMarker:        "marker",
}

// RawName returns the synthetic rawName this reserved id canonicalizes
// to: a "$builtin:" prefix no mangled or user-supplied symbol can
// produce, followed by the id's label.
func (r ReservedNameID) RawName() string {
	if label, ok := reservedNameLabels[r]; ok {
		return "$builtin:" + label
	}
	return fmt.Sprintf("$builtin:reserved-%#x", uint32(r))
}
