// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package netmap

import (
	"testing"
	"unsafe"
)

func newTestRingView(numSlots int) *ringView {
	size := unsafe.Sizeof(ringHeader{}) + uintptr(numSlots)*unsafe.Sizeof(Slot{})
	region := make([]byte, size)
	return newRingView(region, 0, numSlots)
}

func TestRingViewAvailWraparound(t *testing.T) {
	v := newTestRingView(8)
	v.hdr.tail = 8

	cases := []struct{ cur, wantAvail int }{
		{0, 8},
		{3, 5},
		{6, 2},
	}
	for _, c := range cases {
		v.hdr.cur = uint32(c.cur)
		if got := v.avail(); got != c.wantAvail {
			t.Fatalf("cur=%d: avail()=%d, want %d", c.cur, got, c.wantAvail)
		}
	}

	// Wraparound: tail < cur means the writer has wrapped past 0.
	v.hdr.cur = 6
	v.hdr.tail = 2
	if got := v.avail(); got != 4 {
		t.Fatalf("wrapped avail()=%d, want 4", got)
	}
}

func TestRingViewNextWraps(t *testing.T) {
	v := newTestRingView(4)
	if n := v.next(3); n != 0 {
		t.Fatalf("next(3) on a 4-slot ring = %d, want 0", n)
	}
	if n := v.next(1); n != 2 {
		t.Fatalf("next(1) = %d, want 2", n)
	}
}

func TestSpinlockTryLockExclusive(t *testing.T) {
	var s spinlock
	if !s.TryLock() {
		t.Fatalf("first TryLock should succeed")
	}
	if s.TryLock() {
		t.Fatalf("second TryLock should fail while held")
	}
	s.Unlock()
	if !s.TryLock() {
		t.Fatalf("TryLock after Unlock should succeed")
	}
}

func TestRingPublishRXCursorSetsHeadAndCur(t *testing.T) {
	region := make([]byte, unsafe.Sizeof(ringHeader{})+4*unsafe.Sizeof(Slot{}))
	r := newRing(0, 1, region, 0, 0, 4)
	r.rx = newRingView(region, 0, 4)
	r.rx.hdr.tail = 4

	r.PublishRXCursor(3)
	if r.RXCur() != 3 || r.rx.head() != 3 {
		t.Fatalf("expected head=cur=3, got head=%d cur=%d", r.rx.head(), r.RXCur())
	}
}
