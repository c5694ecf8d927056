// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ringfab/ringcap/filter"
	"github.com/ringfab/ringcap/netmap"
)

// Worker is one Receive Worker: it owns a contiguous range of a source
// device's rings, polls them, filters and dispatches frames downstream,
// and — in inline mode — drives TX synchronization on the egress device
// (spec §2 "Receive Worker", §3 "Worker Context").
type Worker struct {
	cfg Config
	log *zap.Logger

	registry *netmap.Registry
	source   *netmap.Handle
	egress   *netmap.Handle // nil unless Mode != ModeNone

	index    int
	ringFrom int
	ringTo   int

	filterProg filter.Filter
	zeroCopy   bool

	pool       Pool
	downstream DownstreamSlot
	liveDevice LiveDevice
	checker    AutoChecksumChecker

	counters Counters
}

// NewWorker builds and initializes a Worker from cfg (spec §4.2). On
// any initialization failure, handles already opened by this call are
// released before returning the error.
func NewWorker(cfg Config) (*Worker, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	reg := cfg.Registry
	if reg == nil {
		reg = netmap.NewRegistry(log)
	}

	ld := cfg.LiveDevice
	if ld == nil {
		ld = &AtomicLiveDevice{}
	}

	// openKind maps a registry open failure onto the capture Kind of the
	// same meaning; anything else is a resource failure.
	openKind := func(err error) Kind {
		var nmErr *netmap.Error
		if errors.As(err, &nmErr) {
			switch nmErr.Kind {
			case netmap.ErrIfaceDown:
				return ErrIfaceDown
			case netmap.ErrConfig:
				return ErrConfig
			}
		}
		return ErrResource
	}

	// Step 1: open the source handle.
	source, err := reg.Open(cfg.Iface, cfg.Promiscuous, false)
	if err != nil {
		return nil, newErr(openKind(err), cfg.Iface, "open source", err)
	}

	w := &Worker{
		cfg:        cfg,
		log:        log,
		registry:   reg,
		source:     source,
		pool:       cfg.Pool,
		downstream: cfg.Downstream,
		liveDevice: ld,
		checker:    cfg.ChecksumChecker,
	}

	// Step 2: threads must not exceed the device's ring count.
	ringsCnt := source.RingsCount()
	if cfg.Threads <= 0 || cfg.Threads > ringsCnt {
		w.teardown()
		return nil, newErr(ErrConfig, cfg.Iface, "init",
			errThreadsExceedRings(cfg.Threads, ringsCnt))
	}

	// Step 3: atomically claim a worker index.
	w.index = source.ClaimWorker()

	// Step 4: partition rings. The last worker's range runs to the
	// final ring regardless of chunk size, absorbing any remainder left
	// by the integer division (spec §8 "rings_cnt % threads != 0").
	chunk := ringsCnt / cfg.Threads
	w.ringFrom = w.index * chunk
	if w.index == cfg.Threads-1 {
		w.ringTo = ringsCnt - 1
	} else {
		w.ringTo = w.ringFrom + chunk - 1
	}

	// Step 5: open the egress handle for inline modes.
	if cfg.Mode != ModeNone {
		if cfg.EgressIface == "" {
			w.teardown()
			return nil, newErr(ErrConfig, cfg.Iface, "init", errMissingEgress)
		}
		egress, err := reg.Open(cfg.EgressIface, false, false)
		if err != nil {
			w.teardown()
			return nil, newErr(openKind(err), cfg.EgressIface, "open egress", err)
		}
		w.egress = egress
	}

	// Step 6: compile the filter, if any.
	if cfg.FilterSource != "" {
		if cfg.FilterCompiler == nil {
			w.teardown()
			return nil, newErr(ErrConfig, cfg.Iface, "init", errMissingCompiler)
		}
		prog, err := cfg.FilterCompiler.Compile(filter.LinkEthernet, cfg.MaxSnapLen, cfg.FilterSource)
		if err != nil {
			w.teardown()
			return nil, newErr(ErrConfig, cfg.Iface, "filter compile", err)
		}
		ev, err := filter.NewEvaluator(prog)
		if err != nil {
			w.teardown()
			return nil, newErr(ErrConfig, cfg.Iface, "filter compile", err)
		}
		w.filterProg = ev
	} else {
		w.filterProg = filter.Accept
	}

	// Step 7: zero-copy is only safe when this worker's thread runs a
	// frame's entire pipeline; ZeroCopyEligible is the embedding
	// program's declaration of that topology.
	w.zeroCopy = cfg.Mode != ModeNone && cfg.ZeroCopyEligible

	// Step 8: warn on hardware segmentation offload.
	segOn := cfg.SegOffloadEnabled
	if !segOn {
		if detected, err := source.SegOffloadEnabled(); err == nil {
			segOn = detected
		}
	}
	if segOn {
		log.Warn("hardware segmentation offload enabled; frames may exceed ring slot size",
			zap.String("iface", cfg.Iface))
	}

	log.Info("receive worker initialized",
		zap.String("iface", cfg.Iface),
		zap.Int("worker_index", w.index),
		zap.Int("ring_from", w.ringFrom),
		zap.Int("ring_to", w.ringTo),
		zap.String("mode", cfg.Mode.String()),
		zap.Bool("zero_copy", w.zeroCopy))

	return w, nil
}

// teardown releases the egress handle first, then the source handle
// (spec §4.7). Safe to call on a partially-initialized Worker.
func (w *Worker) teardown() {
	if w.egress != nil {
		if err := w.registry.Release(w.egress); err != nil {
			w.log.Error("egress release failed", zap.String("iface", w.cfg.EgressIface), zap.Error(err))
		}
		w.egress = nil
	}
	if w.source != nil {
		if err := w.registry.Release(w.source); err != nil {
			w.log.Error("source release failed", zap.String("iface", w.cfg.Iface), zap.Error(err))
		}
		w.source = nil
	}
}

// Close tears the worker down (spec §4.7 "Teardown").
func (w *Worker) Close() { w.teardown() }

// Index returns the worker's claimed index within its source device.
func (w *Worker) Index() int { return w.index }

// RingRange returns the inclusive [from, to] range of source rings
// this worker owns.
func (w *Worker) RingRange() (from, to int) { return w.ringFrom, w.ringTo }

var (
	errMissingEgress   = errors.New("egress interface required for inline copy mode")
	errMissingCompiler = errors.New("filter source given without a compiler")
)

func errThreadsExceedRings(threads, rings int) error {
	return fmt.Errorf("threads (%d) exceed ring count (%d)", threads, rings)
}
