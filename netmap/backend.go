// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package netmap

// backend abstracts the OS-level ring-fabric control surface (the
// /dev/netmap control device, ifreq ioctls, mmap, TX sync) so that
// Registry/Handle logic can be unit-tested against an in-memory fake
// instead of requiring real ring-fabric hardware (spec §9 "Global state"
// design note: "Access via dependency injection in tests").
type backend interface {
	// openControl opens an independent handle to the control device.
	openControl() (fd int, err error)
	// ifaceUp reports whether the named interface is administratively up.
	ifaceUp(name string) (bool, error)
	// setPromisc sets or clears the promiscuous flag on the interface.
	setPromisc(name string, on bool) error
	// queryRings returns the RX/TX ring count, the size of the shared
	// memory region, the byte offset of the NIC-interface structure
	// within it, and the fixed per-buffer size and byte offset of the
	// packet buffer pool within the region (every slot's BufIdx indexes
	// into this pool, shared across all rings on the handle).
	queryRings(ctrlFD int, name string) (rings int, memSize int, nifpOff uintptr, bufSize int, bufPoolOff uintptr, err error)
	// registerRing opens an independent, poll-able fd for one ring and
	// registers it with the NIC (one NIC, this ring index, no TX
	// auto-poll). It returns the fd, the number of slots in that ring,
	// and the RX/TX ring structures' byte offsets within the shared
	// memory region.
	registerRing(ctrlFD int, name string, ring int) (fd int, numSlots int, rxOff, txOff uintptr, err error)
	// mmapRegion maps the shared memory region for reading and writing.
	mmapRegion(fd int, size int) ([]byte, error)
	// munmapRegion releases a previously mapped region.
	munmapRegion(region []byte) error
	// txSync issues the TX-synchronization ioctl on a ring's fd.
	txSync(fd int) error
	// closeFD closes a ring or control fd.
	closeFD(fd int) error
	// segOffloadEnabled reports whether the interface has hardware
	// segmentation offload enabled (spec §4.2 step 8 warning). A query
	// failure is not fatal to worker init, so implementations should
	// prefer returning false, err over panicking.
	segOffloadEnabled(name string) (bool, error)
}
