// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import "testing"

func TestDefaultAutoChecksumCheckerBelowSampleNeverSkips(t *testing.T) {
	if DefaultAutoChecksumChecker(1, 999, 0) {
		t.Fatalf("expected no verdict below the minimum sample size")
	}
}

func TestDefaultAutoChecksumCheckerLowInvalidRateSkips(t *testing.T) {
	if !DefaultAutoChecksumChecker(1, 10000, 1) {
		t.Fatalf("expected skip verdict for a 1-in-10000 invalid rate")
	}
}

func TestDefaultAutoChecksumCheckerHighInvalidRateDoesNotSkip(t *testing.T) {
	if DefaultAutoChecksumChecker(1, 10000, 500) {
		t.Fatalf("expected no skip verdict for a 5% invalid rate")
	}
}

func TestApplyChecksumPolicyDisableAlwaysTags(t *testing.T) {
	f := &testFrame{}
	ld := &AtomicLiveDevice{}
	applyChecksumPolicy(ChecksumDisable, nil, 1, ld, f)
	if !f.HasFlag(FlagSkipChecksum) {
		t.Fatalf("expected ChecksumDisable to tag the frame")
	}
}

func TestApplyChecksumPolicyValidateNeverTags(t *testing.T) {
	f := &testFrame{}
	ld := &AtomicLiveDevice{}
	ld.AddPackets(100000)
	applyChecksumPolicy(ChecksumValidate, nil, 1, ld, f)
	if f.HasFlag(FlagSkipChecksum) {
		t.Fatalf("ChecksumValidate must never tag the frame")
	}
}

func TestApplyChecksumPolicyAutoStickyOnceDeviceSkips(t *testing.T) {
	f1 := &testFrame{}
	ld := &AtomicLiveDevice{}
	ld.SetIgnoreChecksum(true)

	applyChecksumPolicy(ChecksumAuto, nil, 1, ld, f1)
	if !f1.HasFlag(FlagSkipChecksum) {
		t.Fatalf("expected frame to be tagged once the live device already decided to skip")
	}
}

func TestApplyChecksumPolicyAutoConsultsChecker(t *testing.T) {
	f := &testFrame{}
	ld := &AtomicLiveDevice{}
	ld.AddPackets(5000)

	called := false
	checker := func(workerPackets, devicePackets, deviceInvalid uint64) bool {
		called = true
		return true
	}

	applyChecksumPolicy(ChecksumAuto, checker, 7, ld, f)
	if !called {
		t.Fatalf("expected the custom checker to be consulted")
	}
	if !f.HasFlag(FlagSkipChecksum) {
		t.Fatalf("expected frame tagged once checker returns true")
	}
	if !ld.IgnoreChecksum() {
		t.Fatalf("expected the live device's decision to become sticky")
	}
}
