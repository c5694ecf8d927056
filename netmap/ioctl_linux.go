// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

//go:build linux

package netmap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// controlDevice is the ring fabric's control device, modeled on the real
// netmap(4) /dev/netmap.
const controlDevice = "/dev/netmap"

// nmreq mirrors the subset of netmap(4)'s struct nmreq this core needs:
// the ring/queue counts and shared-memory size returned by the "get info"
// ioctl, and the ring index/flags consumed by the "register ring" ioctl.
type nmreq struct {
	name       [16]byte
	flags      uint32
	ringIndex  uint16
	numRings   uint16
	memSize    uint32
	nifpOff    uint32
	numSlots   uint32
	rxRingOff  uint32
	txRingOff  uint32
	bufSize    uint32
	bufPoolOff uint32
}

// Ring registration flags, modeled on netmap(4)'s NR_REG_ONE_NIC /
// NR_NO_TX_POLL semantics ("one NIC, ring index i, no TX-auto-poll" per
// spec §4.1).
const (
	regFlagOneNIC       uint32 = 1 << 0
	regFlagNoTxAutoPoll uint32 = 1 << 1
)

const (
	iocDirNone  uintptr = 0
	iocDirWrite uintptr = 0x40000000
	iocDirRead  uintptr = 0x80000000
)

// iocode reproduces the classic BSD/Linux _IOWR macro shape used to derive
// netmap's ioctl request codes.
func iocode(dir uintptr, group byte, num uintptr, size uintptr) uintptr {
	return dir | (size << 16) | (uintptr(group) << 8) | num
}

var (
	sizeofNmreq = unsafe.Sizeof(nmreq{})
	// niocGInfo queries ring counts and shared memory size (NIOCGINFO).
	niocGInfo = iocode(iocDirRead|iocDirWrite, 'i', 145, sizeofNmreq)
	// niocRegIf registers one ring with the NIC (NIOCREGIF).
	niocRegIf = iocode(iocDirRead|iocDirWrite, 'i', 146, sizeofNmreq)
	// niocTxSync triggers a TX ring synchronization (NIOCTXSYNC).
	niocTxSync = iocode(iocDirNone, 'i', 148, 0)
)

func doIoctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

type linuxBackend struct{}

func newBackend() backend { return linuxBackend{} }

func (linuxBackend) openControl() (int, error) {
	fd, err := unix.Open(controlDevice, unix.O_RDWR, 0)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

func withIfreqSocket(f func(sock int, ifr *unix.Ifreq) error, name string) error {
	sock, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return err
	}
	defer unix.Close(sock)

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return err
	}
	return f(sock, ifr)
}

func (linuxBackend) ifaceUp(name string) (up bool, err error) {
	err = withIfreqSocket(func(sock int, ifr *unix.Ifreq) error {
		if e := unix.IoctlIfreq(sock, unix.SIOCGIFFLAGS, ifr); e != nil {
			return e
		}
		up = ifr.Uint16()&unix.IFF_UP != 0
		return nil
	}, name)
	return up, err
}

func (linuxBackend) setPromisc(name string, on bool) error {
	return withIfreqSocket(func(sock int, ifr *unix.Ifreq) error {
		if err := unix.IoctlIfreq(sock, unix.SIOCGIFFLAGS, ifr); err != nil {
			return err
		}
		flags := ifr.Uint16()
		if on {
			flags |= unix.IFF_PROMISC
		} else {
			flags &^= unix.IFF_PROMISC
		}
		ifr.SetUint16(flags)
		return unix.IoctlIfreq(sock, unix.SIOCSIFFLAGS, ifr)
	}, name)
}

func (linuxBackend) queryRings(ctrlFD int, name string) (int, int, uintptr, int, uintptr, error) {
	var req nmreq
	copy(req.name[:], name)
	if err := doIoctl(ctrlFD, niocGInfo, unsafe.Pointer(&req)); err != nil {
		return 0, 0, 0, 0, 0, err
	}
	return int(req.numRings), int(req.memSize), uintptr(req.nifpOff),
		int(req.bufSize), uintptr(req.bufPoolOff), nil
}

func (linuxBackend) registerRing(ctrlFD int, name string, ring int) (int, int, uintptr, uintptr, error) {
	fd, err := unix.Open(controlDevice, unix.O_RDWR, 0)
	if err != nil {
		return -1, 0, 0, 0, err
	}

	var req nmreq
	copy(req.name[:], name)
	req.ringIndex = uint16(ring)
	req.flags = regFlagOneNIC | regFlagNoTxAutoPoll

	if err := doIoctl(fd, niocRegIf, unsafe.Pointer(&req)); err != nil {
		unix.Close(fd)
		return -1, 0, 0, 0, err
	}
	return fd, int(req.numSlots), uintptr(req.rxRingOff), uintptr(req.txRingOff), nil
}

func (linuxBackend) mmapRegion(fd int, size int) ([]byte, error) {
	return unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (linuxBackend) munmapRegion(region []byte) error {
	return unix.Munmap(region)
}

func (linuxBackend) txSync(fd int) error {
	return doIoctl(fd, niocTxSync, nil)
}

func (linuxBackend) closeFD(fd int) error {
	return unix.Close(fd)
}

// ethtool TSO query, modeled on linux/ethtool.h's ETHTOOL_GTSO command
// delivered through SIOCETHTOOL: an ifreq whose data pointer addresses
// a small command struct rather than carrying the value inline.
const (
	siocEthtool = 0x8946
	ethtoolGTSO = 0x0000001e
)

type ethtoolValue struct {
	cmd  uint32
	data uint32
}

type ethtoolIfreq struct {
	name [unix.IFNAMSIZ]byte
	data unsafe.Pointer
}

func (linuxBackend) segOffloadEnabled(name string) (bool, error) {
	sock, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return false, err
	}
	defer unix.Close(sock)

	val := ethtoolValue{cmd: ethtoolGTSO}
	req := ethtoolIfreq{data: unsafe.Pointer(&val)}
	copy(req.name[:], name)

	if err := doIoctl(sock, siocEthtool, unsafe.Pointer(&req)); err != nil {
		// Not every NIC driver answers ETHTOOL_GTSO; treat that as
		// "unknown, assume off" rather than failing worker init over a
		// diagnostics-only query.
		return false, nil
	}
	return val.data != 0, nil
}
