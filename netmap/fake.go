// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package netmap

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// FakeBackend is an in-memory stand-in for the real ring-fabric control
// surface. It lets Registry/Handle logic — and anything built on top of
// it, such as package capture's worker tests — be exercised without
// touching /dev/netmap or real hardware (spec §9 "Global state" design
// note: "Access via dependency injection in tests").
//
// It is shipped in the package proper, not a _test.go file, so that
// downstream packages can build fixtures against a real netmap.Registry
// without a kernel-bypass NIC.
type FakeBackend struct {
	mu sync.Mutex

	Up      map[string]bool
	Promisc map[string]bool

	Rings    int
	NumSlots int
	BufSize  int

	nextFD int

	// FailRegisterAt, if >= 0, makes registerRing fail for that ring
	// index (used to exercise the "close rings opened so far" path).
	FailRegisterAt int

	regions map[int][]byte
}

// NewFakeBackend builds a FakeBackend exposing the given number of
// rings, each with numSlots slots of 2048-byte packet buffers.
func NewFakeBackend(rings, numSlots int) *FakeBackend {
	return &FakeBackend{
		Up:             make(map[string]bool),
		Promisc:        make(map[string]bool),
		Rings:          rings,
		NumSlots:       numSlots,
		BufSize:        2048,
		FailRegisterAt: -1,
		regions:        make(map[int][]byte),
	}
}

// SetUp sets the administrative up/down state FakeBackend.ifaceUp
// reports for name.
func (f *FakeBackend) SetUp(name string, up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Up[name] = up
}

func (f *FakeBackend) blockSize() uintptr {
	return unsafe.Sizeof(ringHeader{}) + uintptr(f.NumSlots)*unsafe.Sizeof(Slot{})
}

func (f *FakeBackend) ringsBytes() uintptr {
	return f.blockSize() * 2 * uintptr(f.Rings)
}

func (f *FakeBackend) bufPoolOff() uintptr { return f.ringsBytes() }

func (f *FakeBackend) memSize() int {
	return int(f.ringsBytes()) + f.BufSize*f.NumSlots*f.Rings*2
}

func (f *FakeBackend) openControl() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFD++
	return f.nextFD, nil
}

func (f *FakeBackend) ifaceUp(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Up[name], nil
}

func (f *FakeBackend) setPromisc(name string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Promisc[name] = on
	return nil
}

func (f *FakeBackend) queryRings(ctrlFD int, name string) (int, int, uintptr, int, uintptr, error) {
	return f.Rings, f.memSize(), 0, f.BufSize, f.bufPoolOff(), nil
}

func (f *FakeBackend) registerRing(ctrlFD int, name string, ring int) (int, int, uintptr, uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRegisterAt == ring {
		return -1, 0, 0, 0, errors.New("fake: register failed")
	}
	f.nextFD++
	block := f.blockSize()
	rxOff := uintptr(ring) * 2 * block
	txOff := rxOff + block
	return f.nextFD, f.NumSlots, rxOff, txOff, nil
}

func (f *FakeBackend) mmapRegion(fd int, size int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	region := make([]byte, size)
	f.regions[fd] = region
	return region, nil
}

func (f *FakeBackend) munmapRegion(region []byte) error { return nil }

func (f *FakeBackend) txSync(fd int) error { return nil }

func (f *FakeBackend) closeFD(fd int) error { return nil }

func (f *FakeBackend) segOffloadEnabled(name string) (bool, error) { return false, nil }

var _ backend = (*FakeBackend)(nil)

// DeliverRX simulates the NIC handing n freshly-written frames to ring
// by advancing its RX tail, the way a real netmap(4) driver would after
// a hardware receive. Test fixtures should populate the slots at
// [ring.RXCur(), ring.RXCur()+n) with BufIdx/Len before calling this.
func DeliverRX(ring *Ring, n uint32) {
	atomic.AddUint32(&ring.rx.hdr.tail, n)
}

// SetTXFull makes ring's TX side report no free slots, for exercising
// the "TX ring full" drop path (spec §8 "TX ring full on inline
// forward").
func SetTXFull(ring *Ring) {
	atomic.StoreUint32(&ring.tx.hdr.tail, ring.tx.cur())
}

// NewRegistryForTesting builds a Registry backed by b instead of the
// real platform backend. Exported so packages built on top of netmap
// can construct end-to-end fixtures in their own tests.
func NewRegistryForTesting(b *FakeBackend, log *zap.Logger) *Registry {
	return newRegistryWithBackend(b, log)
}
