// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"testing"

	"github.com/ringfab/ringcap/netmap"
)

// ipsWorker builds a single-threaded inline IPS worker over a fake
// backend where both ingress and egress share the same ring count.
func ipsWorker(t *testing.T, rings int) (*Worker, *netmap.FakeBackend) {
	t.Helper()
	b := netmap.NewFakeBackend(rings, 16)
	b.SetUp("eth0", true)
	b.SetUp("eth1", true)
	reg := netmap.NewRegistryForTesting(b, nil)

	cfg := baseConfig(reg, "eth0", 1)
	cfg.Mode = ModeIPS
	cfg.EgressIface = "eth1"
	cfg.ZeroCopyEligible = true

	w, err := NewWorker(cfg)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return w, b
}

func TestForwardSwapsBufIdxOnAccept(t *testing.T) {
	w, _ := ipsWorker(t, 1)
	defer w.Close()

	srcRing := w.source.Ring(0)
	dstRing := w.egress.Ring(0)

	rxSlot := srcRing.RXSlot(5)
	rxSlot.BufIdx, rxSlot.Len = 42, 100

	txCurBefore := dstRing.TXCur()
	txSlotBefore := dstRing.TXSlot(txCurBefore)
	origTXBuf := txSlotBefore.BufIdx

	f := &testFrame{action: ActionNone}
	f.SetRef(Ref{Worker: w, Ring: 0, Slot: 5})

	forwardOrDrop(w, f)

	if rxSlot.BufIdx != origTXBuf {
		t.Fatalf("RX slot buf_idx = %d, want swapped-in TX buf_idx %d", rxSlot.BufIdx, origTXBuf)
	}
	if dstRing.TXSlot(txCurBefore).BufIdx != 42 {
		t.Fatalf("TX slot buf_idx = %d, want 42", dstRing.TXSlot(txCurBefore).BufIdx)
	}
	if dstRing.TXSlot(txCurBefore).Len != 100 {
		t.Fatalf("TX slot len = %d, want 100", dstRing.TXSlot(txCurBefore).Len)
	}
	if rxSlot.Flags&netmap.NSBufChanged == 0 {
		t.Fatalf("expected RX slot NSBufChanged flag set")
	}
	if dstRing.TXSlot(txCurBefore).Flags&netmap.NSBufChanged == 0 {
		t.Fatalf("expected TX slot NSBufChanged flag set")
	}
	if dstRing.TXCur() == txCurBefore {
		t.Fatalf("expected TX cursor to advance")
	}
	if w.counters.Drops != 0 {
		t.Fatalf("expected no drops on a successful swap, got %d", w.counters.Drops)
	}
}

func TestForwardIPSDropDoesNotAdvanceTX(t *testing.T) {
	w, _ := ipsWorker(t, 1)
	defer w.Close()

	dstRing := w.egress.Ring(0)
	txCurBefore := dstRing.TXCur()

	rxSlot := w.source.Ring(0).RXSlot(3)
	origBufIdx := rxSlot.BufIdx

	f := &testFrame{action: ActionDrop}
	f.SetRef(Ref{Worker: w, Ring: 0, Slot: 3})

	forwardOrDrop(w, f)

	if dstRing.TXCur() != txCurBefore {
		t.Fatalf("TX cursor advanced on a DROP verdict")
	}
	if rxSlot.BufIdx != origBufIdx {
		t.Fatalf("RX slot buf_idx changed on a DROP verdict")
	}
	if w.counters.Drops != 0 {
		t.Fatalf("a DROP verdict must not count as a TX-full drop, got %d drops", w.counters.Drops)
	}
}

func TestForwardTXFullCountsAsDrop(t *testing.T) {
	w, _ := ipsWorker(t, 1)
	defer w.Close()

	dstRing := w.egress.Ring(0)
	// Fill the TX ring to capacity by advancing tail to equal cur.
	netmap.SetTXFull(dstRing)

	txCurBefore := dstRing.TXCur()

	f := &testFrame{action: ActionNone}
	f.SetRef(Ref{Worker: w, Ring: 0, Slot: 0})

	forwardOrDrop(w, f)

	if w.counters.Drops != 1 {
		t.Fatalf("expected 1 drop when TX ring is full, got %d", w.counters.Drops)
	}
	if dstRing.TXCur() != txCurBefore {
		t.Fatalf("TX cursor must not advance when the ring was full")
	}
}

func TestForwardPseudoFrameIsNoop(t *testing.T) {
	w, _ := ipsWorker(t, 1)
	defer w.Close()

	f := &testFrame{}
	f.SetFlag(FlagPseudo)
	f.SetRef(Ref{Worker: w, Ring: 0, Slot: 0})

	dstRing := w.egress.Ring(0)
	txCurBefore := dstRing.TXCur()

	forwardOrDrop(w, f)

	if dstRing.TXCur() != txCurBefore {
		t.Fatalf("a pseudo frame must never reach the TX ring")
	}
}
