// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"time"

	"github.com/google/gopacket"
)

// Action is a downstream verdict a Frame may carry.
type Action int

const (
	// ActionNone means no verdict has been set (or the verdict is
	// "forward as usual").
	ActionNone Action = iota
	// ActionDrop means the downstream stage wants this frame dropped
	// rather than forwarded (spec §4.5 step 1).
	ActionDrop
)

// Flag tags additional Frame state (spec §6 "Frame object contract").
type Flag uint8

const (
	// FlagSkipChecksum marks a frame as not needing checksum
	// validation (spec §4.4 step 6).
	FlagSkipChecksum Flag = 1 << iota
	// FlagPseudo marks a synthetic frame with no backing ring slot;
	// the Zero-Copy Forwarder never runs on these (spec §4.5
	// preconditions).
	FlagPseudo
)

// Ref is the back-reference triple stashed on a zero-copy frame (spec
// §3 "Frame Reference"): it lets the release callback locate the exact
// source ring/slot whose buffer index must be swapped.
type Ref struct {
	Worker *Worker
	Ring   int
	Slot   uint32
}

// ReleaseFunc is invoked exactly once when the downstream pipeline
// finishes with a frame (spec §6 "release callback", §9 "Pluggable
// release callback").
type ReleaseFunc func(f Frame)

// Frame is the external packet/frame object contract (spec §6): it is
// consumed, not defined, here.
type Frame interface {
	// AttachExternal attaches externally-owned (zero-copy) data
	// without copying (spec §4.4 step 7, zero-copy mode).
	AttachExternal(data []byte)
	// CopyIn copies data into the frame's own buffer (spec §4.4 step
	// 7, copy mode). Returns an error if the frame has no room.
	CopyIn(data []byte) error

	SetSourceTag(tag string)
	SetLinkDevice(iface string)
	SetLinkType(linkType int)
	SetTimestamp(t time.Time)

	SetFlag(f Flag)
	HasFlag(f Flag) bool
	Action() Action

	SetReleaseFunc(fn ReleaseFunc)
	// Release invokes the release callback set by SetReleaseFunc, if
	// any. The downstream pipeline stage that holds a frame at verdict
	// time calls this exactly once when it is done with the frame
	// (spec §6 "release callback").
	Release()
	SetRef(ref Ref)
	Ref() (Ref, bool)

	// CaptureInfo satisfies gopacket's metadata contract so a decode
	// stage built on gopacket can consume frames from this core
	// directly (spec SPEC_FULL.md "gopacket interop").
	CaptureInfo() gopacket.CaptureInfo
}

// Pool allocates and recycles Frame objects (spec §6 "being returned to
// a pool").
type Pool interface {
	// Acquire returns a frame object, or ok=false if none are free
	// right now (spec §4.4 step 3).
	Acquire() (f Frame, ok bool)
	// Release returns a frame to the pool.
	Release(f Frame)
	// WaitFree blocks until at least one frame object is free (spec
	// §4.3 step 2, backpressure toward the allocation side).
	WaitFree()
}

// DownstreamSlot is the next pipeline stage (spec §6 "Downstream slot
// contract": process(worker_thread, slot, frame) -> OK | FAIL, where
// the DownstreamSlot value itself is "slot").
type DownstreamSlot interface {
	Process(workerThread int, frame Frame) bool
}

// LinkTypeEthernet is the link type this core always stamps on frames
// it originates (spec §4.4 step 4).
const LinkTypeEthernet = 1
