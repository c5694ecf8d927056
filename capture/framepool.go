// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/google/gopacket"
)

// BufferFrame is a ready-to-use Frame implementation backed by a fixed
// buffer: either a slice it owns (copy mode) or one it borrows from a
// ring's packet-buffer pool (zero-copy mode, spec §4.4 step 7).
// Embedding programs that have no Frame type of their own can use this
// one directly, the way the teacher's examples write straight into a
// *pcapgo.NgWriter without a frame abstraction at all.
type BufferFrame struct {
	own  [2048]byte
	data []byte

	sourceTag  string
	linkDevice string
	linkType   int
	ts         time.Time

	flags  Flag
	action Action

	release ReleaseFunc
	ref     Ref
	hasRef  bool
}

var _ Frame = (*BufferFrame)(nil)

// AttachExternal implements Frame.
func (f *BufferFrame) AttachExternal(data []byte) { f.data = data }

// CopyIn implements Frame.
func (f *BufferFrame) CopyIn(data []byte) error {
	if len(data) > len(f.own) {
		return errors.New("capture: frame too small for packet")
	}
	n := copy(f.own[:], data)
	f.data = f.own[:n]
	return nil
}

func (f *BufferFrame) SetSourceTag(tag string)    { f.sourceTag = tag }
func (f *BufferFrame) SetLinkDevice(iface string) { f.linkDevice = iface }
func (f *BufferFrame) SetLinkType(linkType int)   { f.linkType = linkType }
func (f *BufferFrame) SetTimestamp(t time.Time)   { f.ts = t }

func (f *BufferFrame) SetFlag(flag Flag)      { f.flags |= flag }
func (f *BufferFrame) HasFlag(flag Flag) bool { return f.flags&flag != 0 }
func (f *BufferFrame) Action() Action         { return f.action }

// SetAction lets a downstream pipeline stage record a verdict (spec
// §4.5 step 1); it is the DownstreamSlot side of the Frame contract,
// not something the capture core itself calls.
func (f *BufferFrame) SetAction(a Action) { f.action = a }

func (f *BufferFrame) SetReleaseFunc(fn ReleaseFunc) { f.release = fn }
func (f *BufferFrame) SetRef(ref Ref)                { f.ref = ref; f.hasRef = true }
func (f *BufferFrame) Ref() (Ref, bool)              { return f.ref, f.hasRef }

// Data returns the frame's current packet bytes.
func (f *BufferFrame) Data() []byte { return f.data }

// SourceTag returns the tag SetSourceTag last recorded.
func (f *BufferFrame) SourceTag() string { return f.sourceTag }

// CaptureInfo implements Frame, satisfying gopacket's metadata
// contract (spec SPEC_FULL.md "gopacket interop").
func (f *BufferFrame) CaptureInfo() gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     f.ts,
		CaptureLength: len(f.data),
		Length:        len(f.data),
	}
}

// reset clears a BufferFrame for reuse, leaving its backing array in
// place so FramePool never reallocates.
func (f *BufferFrame) reset() {
	data := f.own[:0]
	*f = BufferFrame{}
	f.data = data
}

// Release implements Frame.
func (f *BufferFrame) Release() {
	if f.release != nil {
		f.release(f)
	}
}

// FramePool is a fixed-capacity Pool of *BufferFrame values (spec §4.3
// step 2, §4.4 step 3). Acquire reports ok=false once every frame is
// checked out, exercising the same backpressure path
// snf.RingReceiver's Free/pre-allocated request buffers provide in the
// teacher, generalized to a plain free-list since this package has no
// cgo request-object lifecycle to mirror.
type FramePool struct {
	mu   sync.Mutex
	cond *sync.Cond
	free []*BufferFrame
}

var _ Pool = (*FramePool)(nil)

// NewFramePool builds a FramePool with n pre-allocated frames.
func NewFramePool(n int) *FramePool {
	p := &FramePool{}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < n; i++ {
		p.free = append(p.free, &BufferFrame{})
	}
	return p
}

// Acquire implements Pool.
func (p *FramePool) Acquire() (Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil, false
	}
	f := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	f.reset()
	return f, true
}

// Release implements Pool.
func (p *FramePool) Release(frame Frame) {
	f := frame.(*BufferFrame)
	p.mu.Lock()
	p.free = append(p.free, f)
	p.mu.Unlock()
	p.cond.Broadcast()
}

// WaitFree implements Pool.
func (p *FramePool) WaitFree() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.free) == 0 {
		p.cond.Wait()
	}
}
