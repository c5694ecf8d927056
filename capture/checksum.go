// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

// AutoChecksumChecker decides, given this worker's packet count and the
// live device's packet/invalid-checksum counts, whether checksum
// validation should be skipped from here on (spec §4.4 step 6, AUTO).
type AutoChecksumChecker func(workerPackets, devicePackets, deviceInvalidChecksums uint64) bool

// minAutoSample is the number of device-wide packets required before
// DefaultAutoChecksumChecker will render a verdict; below that, a
// handful of genuinely corrupt packets would look indistinguishable
// from checksum offload.
const minAutoSample = 1000

// DefaultAutoChecksumChecker flags checksum offload once the live
// device has seen enough traffic to judge: fewer than one invalid
// checksum per thousand packets over a large-enough sample. NICs that
// perform checksum offload never recompute the checksum for locally
// generated traffic, so a sustained, low invalid-rate is evidence of
// offload rather than of a noisy link.
func DefaultAutoChecksumChecker(workerPackets, devicePackets, deviceInvalidChecksums uint64) bool {
	if devicePackets < minAutoSample {
		return false
	}
	return deviceInvalidChecksums*1000 < devicePackets
}

// applyChecksumPolicy tags f per spec §4.4 step 6 and, in AUTO mode,
// may flip the live device's sticky ignore-checksum decision.
func applyChecksumPolicy(mode ChecksumMode, checker AutoChecksumChecker, workerPackets uint64, ld LiveDevice, f Frame) {
	switch mode {
	case ChecksumDisable:
		f.SetFlag(FlagSkipChecksum)
	case ChecksumAuto:
		if ld.IgnoreChecksum() {
			f.SetFlag(FlagSkipChecksum)
			return
		}
		if checker == nil {
			checker = DefaultAutoChecksumChecker
		}
		if checker(workerPackets, ld.Packets(), ld.InvalidChecksums()) {
			ld.SetIgnoreChecksum(true)
			f.SetFlag(FlagSkipChecksum)
		}
	case ChecksumValidate:
		// no-op; the downstream stage computes the checksum itself.
	}
}
