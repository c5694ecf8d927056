// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

// Package capture implements the multi-threaded receive engine and the
// zero-copy forwarding path built on top of package netmap's ring
// fabric (spec §4.2–4.7).
package capture

import (
	"go.uber.org/zap"

	"github.com/ringfab/ringcap/filter"
	"github.com/ringfab/ringcap/netmap"
)

// CopyMode selects the worker's deployment mode (spec §6 "Configuration
// input").
type CopyMode int

const (
	// ModeNone is passive capture only.
	ModeNone CopyMode = iota
	// ModeIPS forwards accepted frames to an egress device and drops
	// frames the downstream stage tags DROP. Forwarding happens only on
	// the zero-copy path (Config.ZeroCopyEligible); copy-mode frames are
	// returned to the pool and never forwarded.
	ModeIPS
	// ModeTAP forwards every frame to an egress device regardless of
	// verdict, on the zero-copy path only, as for ModeIPS.
	ModeTAP
)

func (m CopyMode) String() string {
	switch m {
	case ModeNone:
		return "NONE"
	case ModeIPS:
		return "IPS"
	case ModeTAP:
		return "TAP"
	default:
		return "UNKNOWN"
	}
}

// ChecksumMode selects the worker's checksum-validation policy (spec
// §4.4 step 6).
type ChecksumMode int

const (
	// ChecksumDisable tags every frame "skip checksum."
	ChecksumDisable ChecksumMode = iota
	// ChecksumAuto defers to an auto-mode heuristic per live device.
	ChecksumAuto
	// ChecksumValidate leaves checksum validation to the downstream
	// stage.
	ChecksumValidate
)

// Config is the per-interface configuration a Worker is built from
// (spec §6 "Configuration input").
type Config struct {
	// Iface is the ingress interface name.
	Iface string
	// EgressIface is the egress interface name, required when Mode is
	// ModeIPS or ModeTAP.
	EgressIface string

	// Threads is the number of worker threads configured for this
	// interface; must not exceed the device's ring count.
	Threads int

	Mode         CopyMode
	ChecksumMode ChecksumMode
	Promiscuous  bool

	// FilterSource is an optional filter expression. Empty means
	// "accept all" (spec §4.6).
	FilterSource string
	// FilterCompiler compiles FilterSource into bytecode at worker
	// init (spec §4.2 step 6). Required whenever FilterSource is
	// non-empty; compiling filter expressions is otherwise out of
	// scope for this package (spec §1 Non-goals).
	FilterCompiler filter.Compiler

	// MaxSnapLen bounds the capture length passed to FilterCompiler.
	MaxSnapLen int

	// PollTimeoutMillis overrides the default 100ms poll timeout
	// (spec §4.3 step 3); zero means "use the default."
	PollTimeoutMillis int

	// ZeroCopyEligible hints that this deployment topology runs each
	// frame's full pipeline on the thread that owns the source ring
	// (spec §4.2 step 7, "one-thread-does-everything" worker mode). The
	// Worker does no run-mode detection of its own: zero-copy is enabled
	// exactly when this flag is true and Mode is ModeIPS or ModeTAP.
	ZeroCopyEligible bool

	// SegOffloadEnabled, when true, makes worker init emit the
	// hardware-segmentation-offload warning (spec §4.2 step 8). Leave
	// unset to let the worker query the interface itself.
	SegOffloadEnabled bool

	// Registry is the device registry workers open handles through.
	// Nil means netmap.NewRegistry(Logger) is used.
	Registry *netmap.Registry

	// Pool supplies and recycles Frame objects (spec §4.3 step 2, §4.4
	// step 3). Required.
	Pool Pool
	// Downstream is the next pipeline stage (spec §4.4 step 8).
	// Required.
	Downstream DownstreamSlot
	// LiveDevice is the aggregate-counter record this worker flushes
	// into (spec §4.3 step 8). Nil means a private *AtomicLiveDevice is
	// created, which is only useful for a single-interface program;
	// multiple workers on the same interface should share one.
	LiveDevice LiveDevice
	// ChecksumChecker overrides DefaultAutoChecksumChecker for
	// ChecksumAuto mode. Nil uses the default.
	ChecksumChecker AutoChecksumChecker

	// Logger receives structured diagnostics. Nil defaults to a no-op
	// logger.
	Logger *zap.Logger
}

const defaultPollTimeoutMillis = 100

func (c *Config) pollTimeoutMillis() int {
	if c.PollTimeoutMillis > 0 {
		return c.PollTimeoutMillis
	}
	return defaultPollTimeoutMillis
}
