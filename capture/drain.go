// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import "time"

// drainResult is the outcome of one drainRing call (spec §4.4:
// "Return DRAIN_OK" / "return DRAIN_FAILURE").
type drainResult int

const (
	drainOK drainResult = iota
	drainFailure
)

// drainRing drains every currently-readable slot on source ring i (spec
// §4.4 "Ring Drain"). ringTimestamp stands in for "the ring's
// timestamp," which this core borrows from the caller rather than
// reading out of the mapped region itself.
func (w *Worker) drainRing(i int, ringTimestamp time.Time) drainResult {
	ring := w.source.Ring(i)

	avail := ring.RXAvail()
	cur := ring.RXCur()

	for n := 0; n < avail; n++ {
		slot := ring.RXSlot(cur)
		data := w.source.Buffer(slot.BufIdx)[:slot.Len]

		if w.filterProg.Execute(data) == 0 {
			cur = ring.RXNext(cur)
			continue
		}

		frame, ok := w.pool.Acquire()
		if !ok {
			ring.PublishRXCursor(cur)
			return drainFailure
		}

		frame.SetSourceTag("wire")
		frame.SetLinkDevice(w.cfg.Iface)
		frame.SetLinkType(LinkTypeEthernet)
		frame.SetTimestamp(ringTimestamp)

		w.counters.AddPacket(uint32(slot.Len))
		applyChecksumPolicy(w.cfg.ChecksumMode, w.checker, w.counters.Packets, w.liveDevice, frame)

		if w.zeroCopy {
			frame.AttachExternal(data)
			frame.SetReleaseFunc(w.releaseZeroCopy)
			frame.SetRef(Ref{Worker: w, Ring: i, Slot: cur})
		} else {
			if err := frame.CopyIn(data); err != nil {
				w.pool.Release(frame)
				ring.PublishRXCursor(cur)
				return drainFailure
			}
			// Copy-mode frames carry no ring back-reference to
			// forward; their release callback is the plain
			// "pool-return" variant of the discriminated callback
			// (spec §9 "Pluggable release callback").
			frame.SetReleaseFunc(w.releaseCopy)
		}

		if !w.downstream.Process(w.index, frame) {
			w.pool.Release(frame)
			ring.PublishRXCursor(cur)
			return drainFailure
		}

		cur = ring.RXNext(cur)
	}

	ring.PublishRXCursor(cur)
	return drainOK
}

// releaseZeroCopy is the worker-owned half of the Zero-Copy Forwarder
// (spec §4.5): it is set as a zero-copy frame's release callback and
// defers to forwardOrDrop.
func (w *Worker) releaseZeroCopy(f Frame) {
	forwardOrDrop(w, f)
}

// releaseCopy is the "pool-return" variant of the discriminated release
// callback (spec §9 "Pluggable release callback"): a copy-mode frame
// owns no ring slot to forward, so releasing it is just handing it back
// to the pool.
func (w *Worker) releaseCopy(f Frame) {
	w.pool.Release(f)
}
