// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import "sync/atomic"

// LiveDevice is the external aggregate-counter contract (spec §6
// "Live-device contract"): atomic counters shared by every worker on a
// device, plus the checksum-auto-mode decision.
type LiveDevice interface {
	AddPackets(n uint64)
	AddDrops(n uint64)
	AddInvalidChecksums(n uint64)

	IgnoreChecksum() bool
	SetIgnoreChecksum(bool)

	Packets() uint64
	InvalidChecksums() uint64
}

// Counters are one worker thread's local packet/byte/drop counters
// (spec §3 "Worker Context", §5 "Statistics counters"). They are only
// ever touched by the worker thread that owns them until Flush, so no
// atomics are needed here.
type Counters struct {
	Packets uint64
	Bytes   uint64
	Drops   uint64
}

// AddPacket records one received frame of length n bytes.
func (c *Counters) AddPacket(n uint32) {
	c.Packets++
	c.Bytes += uint64(n)
}

// AddDrop records one dropped frame. The forwarder calls it for a frame
// it cannot place on a full TX ring; a failed frame allocation during a
// drain is not counted here.
func (c *Counters) AddDrop() {
	c.Drops++
}

// Flush adds the packets and drops accumulated this cycle into ld's
// aggregate counters and resets the local copy (spec §4.3 step 8).
// LiveDevice has no byte counter, so Bytes is reset without being
// added anywhere.
func (c *Counters) Flush(ld LiveDevice) {
	if c.Packets != 0 {
		ld.AddPackets(c.Packets)
	}
	if c.Drops != 0 {
		ld.AddDrops(c.Drops)
	}
	c.Packets, c.Bytes, c.Drops = 0, 0, 0
}

// AtomicLiveDevice is a ready-to-use LiveDevice wiring the aggregate
// counters to plain atomics, for embedding programs that have no
// live-device registry of their own to inject (spec SPEC_FULL.md
// "Ring/queue statistics").
type AtomicLiveDevice struct {
	pkts, drops, invalid uint64
	ignore               int32
}

var _ LiveDevice = (*AtomicLiveDevice)(nil)

func (d *AtomicLiveDevice) AddPackets(n uint64)          { atomic.AddUint64(&d.pkts, n) }
func (d *AtomicLiveDevice) AddDrops(n uint64)            { atomic.AddUint64(&d.drops, n) }
func (d *AtomicLiveDevice) AddInvalidChecksums(n uint64) { atomic.AddUint64(&d.invalid, n) }

func (d *AtomicLiveDevice) IgnoreChecksum() bool { return atomic.LoadInt32(&d.ignore) != 0 }

func (d *AtomicLiveDevice) SetIgnoreChecksum(v bool) {
	var n int32
	if v {
		n = 1
	}
	atomic.StoreInt32(&d.ignore, n)
}

// Packets returns the aggregate packet count.
func (d *AtomicLiveDevice) Packets() uint64 { return atomic.LoadUint64(&d.pkts) }

// Drops returns the aggregate drop count.
func (d *AtomicLiveDevice) Drops() uint64 { return atomic.LoadUint64(&d.drops) }

// InvalidChecksums returns the aggregate invalid-checksum count.
func (d *AtomicLiveDevice) InvalidChecksums() uint64 { return atomic.LoadUint64(&d.invalid) }
