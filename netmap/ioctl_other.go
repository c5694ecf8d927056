// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

//go:build !linux

package netmap

import "errors"

// errUnsupported is returned by every backend method on platforms that
// lack ring-fabric support. Per spec §6, the cmd/ entry points turn this
// into a printed diagnostic and a process exit.
var errUnsupported = errors.New("netmap: ring fabric not supported on this platform")

type noopBackend struct{}

func newBackend() backend { return noopBackend{} }

func (noopBackend) openControl() (int, error) { return -1, errUnsupported }

func (noopBackend) ifaceUp(string) (bool, error) { return false, errUnsupported }

func (noopBackend) setPromisc(string, bool) error { return errUnsupported }

func (noopBackend) queryRings(int, string) (int, int, uintptr, int, uintptr, error) {
	return 0, 0, 0, 0, 0, errUnsupported
}

func (noopBackend) registerRing(int, string, int) (int, int, uintptr, uintptr, error) {
	return -1, 0, 0, 0, errUnsupported
}

func (noopBackend) mmapRegion(int, int) ([]byte, error) { return nil, errUnsupported }

func (noopBackend) munmapRegion([]byte) error { return errUnsupported }

func (noopBackend) txSync(int) error { return errUnsupported }

func (noopBackend) closeFD(int) error { return errUnsupported }

func (noopBackend) segOffloadEnabled(string) (bool, error) { return false, errUnsupported }
