// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import "github.com/ringfab/ringcap/netmap"

// forwardOrDrop implements the Zero-Copy Forwarder release callback
// (spec §4.5). It is reached only through releaseZeroCopy, which
// drainRing sets solely on zero-copy frames (copy-mode frames get
// releaseCopy instead). A frame with no Frame Reference, or one tagged
// FlagPseudo, is returned to the pool without being forwarded.
func forwardOrDrop(w *Worker, f Frame) {
	defer w.pool.Release(f)

	ref, ok := f.Ref()
	if !ok || f.HasFlag(FlagPseudo) {
		return
	}

	if w.cfg.Mode == ModeIPS && f.Action() == ActionDrop {
		// Inline drop: the slot's buffer returns to the RX ring as
		// usual when head advances; it is never placed on a TX ring.
		return
	}

	srcRing := w.source.Ring(ref.Ring)
	dstRing := w.egress.Ring(ref.Ring % w.egress.RingsCount())

	dstRing.LockTX()
	defer dstRing.UnlockTX()

	if !dstRing.TXHasFreeSlot() {
		w.counters.AddDrop()
		return
	}

	rxSlot := srcRing.RXSlot(ref.Slot)
	txCur := dstRing.TXCur()
	txSlot := dstRing.TXSlot(txCur)

	rxSlot.BufIdx, txSlot.BufIdx = txSlot.BufIdx, rxSlot.BufIdx
	txSlot.Len = rxSlot.Len
	rxSlot.Flags |= netmap.NSBufChanged
	txSlot.Flags |= netmap.NSBufChanged

	dstRing.AdvanceTX(dstRing.TXNext(txCur))
}
