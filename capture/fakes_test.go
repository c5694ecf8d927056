// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"errors"
	"time"

	"github.com/google/gopacket"
)

// testFrame is a minimal Frame implementation for exercising
// drainRing/forwardOrDrop without a real downstream pipeline.
type testFrame struct {
	buf  [2048]byte
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

func (f *testFrame) AttachExternal(data []byte) { f.data = data }

func (f *testFrame) CopyIn(data []byte) error {
	if len(data) > len(f.buf) {
		return errors.New("testFrame: buffer too small")
	}
	n := copy(f.buf[:], data)
	f.data = f.buf[:n]
	return nil
}

func (f *testFrame) SetSourceTag(tag string)    { f.sourceTag = tag }
func (f *testFrame) SetLinkDevice(iface string) { f.linkDevice = iface }
func (f *testFrame) SetLinkType(linkType int)   { f.linkType = linkType }
func (f *testFrame) SetTimestamp(t time.Time)   { f.ts = t }

func (f *testFrame) SetFlag(flag Flag)      { f.flags |= flag }
func (f *testFrame) HasFlag(flag Flag) bool { return f.flags&flag != 0 }
func (f *testFrame) Action() Action         { return f.action }

func (f *testFrame) SetReleaseFunc(fn ReleaseFunc) { f.release = fn }
func (f *testFrame) SetRef(ref Ref)                { f.ref = ref; f.hasRef = true }
func (f *testFrame) Ref() (Ref, bool)              { return f.ref, f.hasRef }

func (f *testFrame) CaptureInfo() gopacket.CaptureInfo {
	return gopacket.CaptureInfo{Timestamp: f.ts, CaptureLength: len(f.data), Length: len(f.data)}
}

// Release implements Frame. It invokes the frame's release callback if
// one was set, the way a real downstream pipeline would once it
// finishes with the frame.
func (f *testFrame) Release() {
	if f.release != nil {
		f.release(f)
	}
}

// testPool is a fixed-capacity Frame pool; Acquire reports ok=false once
// exhausted, matching spec §4.4 step 3's allocation-failure path.
type testPool struct {
	free []*testFrame
}

func newTestPool(n int) *testPool {
	p := &testPool{}
	for i := 0; i < n; i++ {
		p.free = append(p.free, &testFrame{})
	}
	return p
}

func (p *testPool) Acquire() (Frame, bool) {
	if len(p.free) == 0 {
		return nil, false
	}
	f := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	*f = testFrame{}
	return f, true
}

func (p *testPool) Release(f Frame) {
	p.free = append(p.free, f.(*testFrame))
}

func (p *testPool) WaitFree() {}

// testDownstream records every frame handed to it and can be configured
// to fail or to tag a DROP verdict.
type testDownstream struct {
	fail    bool
	dropAll bool
	seen    []*testFrame
}

func (d *testDownstream) Process(workerThread int, frame Frame) bool {
	tf := frame.(*testFrame)
	d.seen = append(d.seen, tf)
	if d.dropAll {
		tf.action = ActionDrop
	}
	return !d.fail
}
