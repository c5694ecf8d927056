// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"sync"

	"github.com/google/gopacket/pcapgo"
)

// PcapNgSink is a DownstreamSlot that writes every frame it receives to
// a pcapng file, adapted from the teacher's sniffer example writing
// straight into a *pcapgo.NgWriter under a shared mutex (examples/
// sniffer/main.go). Every worker thread may call Process concurrently.
type PcapNgSink struct {
	mu sync.Mutex
	w  *pcapgo.NgWriter
}

var _ DownstreamSlot = (*PcapNgSink)(nil)

// NewPcapNgSink wraps w for concurrent use by multiple worker threads.
func NewPcapNgSink(w *pcapgo.NgWriter) *PcapNgSink {
	return &PcapNgSink{w: w}
}

// Process implements DownstreamSlot. It never tags ActionDrop; a pcap
// sink is a terminal stage, not a filtering one. On success it releases
// the frame itself, since nothing downstream of a pcap sink will ever
// hold the frame longer; on failure the caller owns returning the frame
// to the pool (spec §4.4 step 8), so Process must not release it too.
func (s *PcapNgSink) Process(workerThread int, frame Frame) bool {
	bf, ok := frame.(*BufferFrame)
	if !ok {
		return false
	}

	s.mu.Lock()
	err := s.w.WritePacket(frame.CaptureInfo(), bf.Data())
	s.mu.Unlock()

	if err != nil {
		return false
	}
	frame.Release()
	return true
}

// Flush flushes the underlying writer's buffered blocks to disk.
func (s *PcapNgSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}
