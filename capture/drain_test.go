// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"testing"
	"time"

	"github.com/ringfab/ringcap/filter"
	"github.com/ringfab/ringcap/netmap"
)

// deliver writes n frames of payload into ring starting at its current
// RX cursor and advances the RX tail to make them readable.
func deliver(ring *netmap.Ring, payloads [][]byte, bufIdxBase uint32, buffer func(uint32) []byte) {
	cur := ring.RXCur()
	for i, p := range payloads {
		slot := ring.RXSlot(cur)
		slot.BufIdx = bufIdxBase + uint32(i)
		slot.Len = uint16(len(p))
		copy(buffer(slot.BufIdx), p)
		cur = ring.RXNext(cur)
	}
	netmap.DeliverRX(ring, uint32(len(payloads)))
}

func TestDrainRingCaptureOnlyDeliversAllFrames(t *testing.T) {
	reg := fakeRegistry(1, 32, "eth0")
	pool := newTestPool(32)
	down := &testDownstream{}
	cfg := baseConfig(reg, "eth0", 1)
	cfg.Pool, cfg.Downstream = pool, down

	w, err := NewWorker(cfg)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	defer w.Close()

	ring := w.source.Ring(0)
	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	deliver(ring, payloads, 1, w.source.Buffer)

	if res := w.drainRing(0, time.Now()); res != drainOK {
		t.Fatalf("drainRing = %v, want drainOK", res)
	}

	if len(down.seen) != len(payloads) {
		t.Fatalf("downstream saw %d frames, want %d", len(down.seen), len(payloads))
	}
	if w.counters.Packets != uint64(len(payloads)) {
		t.Fatalf("counters.Packets = %d, want %d", w.counters.Packets, len(payloads))
	}
	for i, p := range payloads {
		if string(down.seen[i].data) != string(p) {
			t.Fatalf("frame %d = %q, want %q", i, down.seen[i].data, p)
		}
	}

	// A copy-mode frame still carries a "pool-return" release callback
	// even though it owns no ring slot to forward.
	before := len(pool.free)
	down.seen[0].Release()
	if len(pool.free) != before+1 {
		t.Fatalf("expected releasing a copy-mode frame to return it to the pool")
	}
}

func TestDrainRingBPFRejectAllPassesNothing(t *testing.T) {
	reg := fakeRegistry(1, 32, "eth0")
	down := &testDownstream{}
	cfg := baseConfig(reg, "eth0", 1)
	cfg.Downstream = down
	cfg.FilterSource = "tcp port 1"
	cfg.FilterCompiler = filter.L4Compiler{}

	w, err := NewWorker(cfg)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	defer w.Close()

	ring := w.source.Ring(0)
	// An all-zero frame (EtherType 0, not IPv4) never matches "tcp port 1".
	payload := make([]byte, 64)
	deliver(ring, [][]byte{payload}, 1, w.source.Buffer)

	if res := w.drainRing(0, time.Now()); res != drainOK {
		t.Fatalf("drainRing = %v, want drainOK", res)
	}
	if len(down.seen) != 0 {
		t.Fatalf("expected 0 frames downstream, got %d", len(down.seen))
	}
	if w.counters.Packets != 0 {
		t.Fatalf("expected packets counter unchanged by a rejected frame, got %d", w.counters.Packets)
	}
}

func TestDrainRingPoolExhaustionReturnsDrainFailure(t *testing.T) {
	reg := fakeRegistry(1, 32, "eth0")
	pool := newTestPool(1)
	down := &testDownstream{}
	cfg := baseConfig(reg, "eth0", 1)
	cfg.Pool, cfg.Downstream = pool, down

	w, err := NewWorker(cfg)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	defer w.Close()

	ring := w.source.Ring(0)
	deliver(ring, [][]byte{[]byte("a"), []byte("b")}, 1, w.source.Buffer)

	if res := w.drainRing(0, time.Now()); res != drainFailure {
		t.Fatalf("drainRing = %v, want drainFailure", res)
	}
	if len(down.seen) != 1 {
		t.Fatalf("expected exactly 1 frame delivered before pool exhaustion, got %d", len(down.seen))
	}
}

func TestDrainRingDownstreamFailureReturnsDrainFailure(t *testing.T) {
	reg := fakeRegistry(1, 32, "eth0")
	down := &testDownstream{fail: true}
	cfg := baseConfig(reg, "eth0", 1)
	cfg.Downstream = down

	w, err := NewWorker(cfg)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	defer w.Close()

	ring := w.source.Ring(0)
	deliver(ring, [][]byte{[]byte("a")}, 1, w.source.Buffer)

	if res := w.drainRing(0, time.Now()); res != drainFailure {
		t.Fatalf("drainRing = %v, want drainFailure", res)
	}
}
