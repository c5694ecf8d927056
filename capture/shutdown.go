// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import "sync/atomic"

// shuttingDown is the process-wide shutdown sentinel every worker's
// main loop checks at the top of each poll cycle (spec §5
// "Cancellation", §9 "Global state"). It is a package-level singleton
// rather than a field on Worker because the spec models it as
// process-wide, not per-device.
var shuttingDown int32

// Shutdown signals every running worker to exit after its current
// drain iteration.
func Shutdown() {
	atomic.StoreInt32(&shuttingDown, 1)
}

// IsShuttingDown reports the current value of the shutdown sentinel.
func IsShuttingDown() bool {
	return atomic.LoadInt32(&shuttingDown) != 0
}

// ResetShutdown clears the sentinel. Exposed for tests that start more
// than one worker run in the same process.
func ResetShutdown() {
	atomic.StoreInt32(&shuttingDown, 0)
}
