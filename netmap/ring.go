// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package netmap

import (
	"sync/atomic"
	"unsafe"
)

// SlotFlag tags a ring slot the way the NIC interprets it on the next
// sync. NSBufChanged is the contract that tells the NIC a slot's buf_idx
// was swapped and its prior content must not be reused as-is (spec §4.4,
// §9).
type SlotFlag uint16

const (
	// NSBufChanged marks that this slot's buf_idx was swapped with
	// another ring's slot (zero-copy forward) and needs reinitializing.
	NSBufChanged SlotFlag = 1 << 0
)

// Slot is one descriptor entry in a ring: a buffer index, a length, and
// flags (spec GLOSSARY "Slot").
type Slot struct {
	BufIdx uint32
	Len    uint16
	Flags  SlotFlag
}

// ringHeader is the shared-memory layout this core expects for one
// direction (RX or TX) of a ring, modeled on netmap(4)'s struct
// netmap_ring: a head/cur/tail triple the user and the NIC use to hand
// slot ownership back and forth, followed by the slot array itself.
type ringHeader struct {
	head uint32
	cur  uint32
	tail uint32
	_    uint32 // padding to keep the slot array 8-byte aligned
}

// ringView is a non-owning view into one direction (RX or TX) of a ring
// within the handle's shared mmap region (spec §9 "descriptors holding
// non-owning views").
type ringView struct {
	hdr   *ringHeader
	slots []Slot
}

func newRingView(region []byte, offset uintptr, numSlots int) *ringView {
	hdr := (*ringHeader)(unsafe.Pointer(&region[offset]))
	slotsOff := offset + unsafe.Sizeof(ringHeader{})
	slots := unsafe.Slice((*Slot)(unsafe.Pointer(&region[slotsOff])), numSlots)
	return &ringView{hdr: hdr, slots: slots}
}

func (v *ringView) numSlots() int { return len(v.slots) }

// head/cur/tail give the NIC-facing cursor. cur is the next slot owned
// by userspace; tail is one past the last slot userspace may claim.
func (v *ringView) head() uint32 { return atomic.LoadUint32(&v.hdr.head) }
func (v *ringView) cur() uint32  { return atomic.LoadUint32(&v.hdr.cur) }
func (v *ringView) tail() uint32 { return atomic.LoadUint32(&v.hdr.tail) }

func (v *ringView) setHeadCur(n uint32) {
	atomic.StoreUint32(&v.hdr.cur, n)
	atomic.StoreUint32(&v.hdr.head, n)
}

// avail returns the number of slots readable (RX) or writable (TX)
// starting at cur, accounting for ring wraparound.
func (v *ringView) avail() int {
	n := len(v.slots)
	cur, tail := int(v.cur()), int(v.tail())
	if tail >= cur {
		return tail - cur
	}
	return n - cur + tail
}

// next returns the ring index following i, wrapping at numSlots (spec
// §4.4 step 9, "the ring's next index function").
func (v *ringView) next(i uint32) uint32 {
	if int(i)+1 >= len(v.slots) {
		return 0
	}
	return i + 1
}

// spinlock is a simple CAS-based mutual-exclusion primitive guarding a
// ring's TX side (spec §5 "Each ring's TX side: spinlock"). It supports
// both a try-acquire (worker loop's opportunistic TX sync, spec §4.3 step
// 6) and a blocking acquire (release callback, spec §4.5 step 2.b).
type spinlock struct{ state int32 }

func (s *spinlock) TryLock() bool {
	return atomic.CompareAndSwapInt32(&s.state, 0, 1)
}

func (s *spinlock) Lock() {
	for !s.TryLock() {
		// busy-wait: spec models this as a blocking spinlock, not a
		// goroutine-parking mutex, since hold times are a handful of
		// instructions (one slot swap).
	}
}

func (s *spinlock) Unlock() {
	atomic.StoreInt32(&s.state, 0)
}

// RingStats are per-ring counters carried on each Ring. Nothing in
// packages netmap or capture writes them, and they are not flushed
// into a capture.LiveDevice; per-thread counting is done by
// capture.Counters.
type RingStats struct {
	Recv  uint64
	Drop  uint64
	Bytes uint64
}

// Ring is one hardware queue's descriptor: an independently poll-able
// fd, pointers to its RX/TX ring structures within the mapped region,
// and a spinlock guarding TX (spec §3 "Ring Descriptor").
type Ring struct {
	Index int
	FD    int

	rx *ringView
	tx *ringView

	txLock spinlock

	Stats RingStats
}

// newRing builds a Ring descriptor from its registration results: an
// independently poll-able fd and the byte offsets of its RX/TX ring
// structures within the handle's shared mmap region.
func newRing(index, fd int, region []byte, rxOff, txOff uintptr, numSlots int) *Ring {
	tx := newRingView(region, txOff, numSlots)
	// The TX ring starts with all slots but one available to userspace
	// for writing (mirrors netmap(4): a freshly registered TX ring's tail
	// sits one slot behind cur, wrapped, so avail() reports numSlots-1
	// free slots rather than zero).
	tx.hdr.tail = uint32(numSlots - 1)

	return &Ring{
		Index: index,
		FD:    fd,
		rx:    newRingView(region, rxOff, numSlots),
		tx:    tx,
	}
}

// RXAvail returns the number of currently readable RX slots.
func (r *Ring) RXAvail() int { return r.rx.avail() }

// RXSlot returns the RX slot at index i.
func (r *Ring) RXSlot(i uint32) *Slot { return &r.rx.slots[i] }

// RXCur returns the RX ring's current cursor.
func (r *Ring) RXCur() uint32 { return r.rx.cur() }

// RXNext advances a cursor to the next RX slot index.
func (r *Ring) RXNext(i uint32) uint32 { return r.rx.next(i) }

// PublishRXCursor advances both head and cur on the RX ring, releasing
// every slot visited back to the NIC (spec §4.4, post-loop step).
func (r *Ring) PublishRXCursor(n uint32) { r.rx.setHeadCur(n) }

// TXHasFreeSlot reports whether the TX ring has room for one more frame.
func (r *Ring) TXHasFreeSlot() bool { return r.tx.avail() > 0 }

// TXCur returns the TX ring's current cursor, i.e. the next slot the
// forwarder will write into.
func (r *Ring) TXCur() uint32 { return r.tx.cur() }

// TXSlot returns the TX slot at index i.
func (r *Ring) TXSlot(i uint32) *Slot { return &r.tx.slots[i] }

// TXNext advances a cursor to the next TX slot index.
func (r *Ring) TXNext(i uint32) uint32 { return r.tx.next(i) }

// AdvanceTX publishes the TX ring's head/cur past the just-filled slot.
func (r *Ring) AdvanceTX(n uint32) { r.tx.setHeadCur(n) }

// TryLockTX attempts a non-blocking acquire of the TX spinlock (spec
// §4.3 step 6).
func (r *Ring) TryLockTX() bool { return r.txLock.TryLock() }

// LockTX blocks until the TX spinlock is acquired (spec §4.5 step 2.b).
func (r *Ring) LockTX() { r.txLock.Lock() }

// UnlockTX releases the TX spinlock.
func (r *Ring) UnlockTX() { r.txLock.Unlock() }
