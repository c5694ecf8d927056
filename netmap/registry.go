// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

// Package netmap models a kernel-bypass, memory-mapped NIC ring fabric
// (modeled on netmap(4)'s /dev/netmap control protocol). It owns the
// process-wide device registry, per-device handles and their per-ring
// descriptors; everything above the ring (partitioning rings among
// worker threads, filtering, zero-copy forwarding) lives in package
// capture.
package netmap

import (
	"sync"

	"go.uber.org/zap"
)

// Registry is the process-wide mapping from interface name to an open
// device Handle (spec §3 "Device Registry", §4.1).
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
	b       backend
	log     *zap.Logger
}

// NewRegistry builds a Registry backed by the real ring-fabric backend
// for the current platform. A nil logger defaults to a no-op logger.
func NewRegistry(log *zap.Logger) *Registry {
	return newRegistryWithBackend(newBackend(), log)
}

func newRegistryWithBackend(b backend, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{handles: make(map[string]*Handle), b: b, log: log}
}

// Open returns a reference-counted Handle for the named interface,
// opening it if this is the first reference (spec §4.1 "open").
//
// The verbose flag only affects diagnostic logging verbosity; it does
// not change behavior.
func (r *Registry) Open(name string, promiscuous, verbose bool) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[name]; ok {
		h.refCount++
		if verbose {
			r.log.Debug("netmap handle reused",
				zap.String("iface", name), zap.Int("refcount", h.refCount))
		}
		return h, nil
	}

	h, err := openHandle(r.b, r.log, name, promiscuous)
	if err != nil {
		return nil, err
	}
	h.refCount = 1
	r.handles[name] = h
	return h, nil
}

// Release decrements h's reference count, tearing the handle down and
// removing it from the registry when the count reaches zero (spec §4.1
// "release"). Releasing a handle the registry does not know about (for
// example, one already fully released) returns a NOT_FOUND error
// without altering state.
func (r *Registry) Release(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.handles[h.Name]
	if !ok || cur != h {
		return newErr(ErrNotFound, h.Name, "release", nil)
	}

	h.refCount--
	if h.refCount < 0 {
		// Not reachable while every handle in the map has a count of
		// at least 1 (a second release of a fully released handle
		// returns NOT_FOUND above); clamp so the invariant "refcount
		// never negative" holds regardless.
		h.refCount = 0
	}
	if h.refCount > 0 {
		return nil
	}

	delete(r.handles, h.Name)
	return h.close()
}

// RefCount returns the current reference count for a handle still
// present in the registry, and whether it was found at all. Exposed
// for tests exercising the open/release invariants (spec §8).
func (r *Registry) RefCount(name string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[name]
	if !ok {
		return 0, false
	}
	return h.refCount, true
}
