// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const pollEventsIn = unix.POLLIN | unix.POLLERR | unix.POLLHUP | unix.POLLNVAL

// Run is the Receive Worker's main loop (spec §4.3). It blocks until
// the process-wide shutdown sentinel is observed.
func (w *Worker) Run() error {
	pollFDs := make([]unix.PollFd, w.ringTo-w.ringFrom+1)
	for i := range pollFDs {
		pollFDs[i].Fd = int32(w.source.Ring(w.ringFrom + i).FD)
		pollFDs[i].Events = pollEventsIn
	}

	for {
		// Step 1: shutdown check.
		if IsShuttingDown() {
			return nil
		}

		// Step 2: backpressure toward the frame-allocation side.
		w.pool.WaitFree()

		// Step 3: poll with a 100ms timeout.
		n, err := unix.Poll(pollFDs, w.cfg.pollTimeoutMillis())
		if err != nil {
			// Step 4: retry silently on EINTR, otherwise log and retry.
			if err != unix.EINTR {
				w.log.Error("poll failed", zap.String("iface", w.cfg.Iface), zap.Error(err))
			}
			continue
		}
		if n == 0 {
			// Step 5: timeout.
			continue
		}

		loggedFatal := false
		now := time.Now()

		for i, pfd := range pollFDs {
			ring := w.ringFrom + i

			// Step 7: fatal events are logged at most once per cycle
			// and the entry is skipped.
			if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
				if !loggedFatal {
					w.log.Error("ring reported fatal poll event",
						zap.String("iface", w.cfg.Iface), zap.Int("ring", ring),
						zap.Int16("revents", pfd.Revents))
					loggedFatal = true
				}
				continue
			}

			if pfd.Revents&unix.POLLIN == 0 {
				continue
			}

			// Step 6: drain the ring, then opportunistically TX-sync.
			w.drainRing(ring, now)
			w.maybeTXSync(ring)
		}

		// Step 8: flush per-thread counters.
		w.counters.Flush(w.liveDevice)
	}
}

// maybeTXSync implements spec §4.3 step 6's inline-mode TX sync: a
// non-blocking try-acquire, since the same TX ring may be concurrently
// mutated by a release callback; skipping sync here is fine because the
// next poll cycle retries.
func (w *Worker) maybeTXSync(srcRing int) {
	if w.cfg.Mode == ModeNone {
		return
	}
	dst := w.egress.Ring(srcRing % w.egress.RingsCount())
	if !dst.TryLockTX() {
		return
	}
	defer dst.UnlockTX()
	if err := w.egress.TXSync(dst); err != nil {
		w.log.Error("TX sync failed",
			zap.String("iface", w.cfg.EgressIface), zap.Int("ring", dst.Index), zap.Error(err))
	}
}
