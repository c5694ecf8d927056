// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package netmap

import (
	"sync"
	"testing"
)

func openTestHandle(t *testing.T, rings, numSlots int) (*Registry, *Handle) {
	t.Helper()
	b := NewFakeBackend(rings, numSlots)
	b.SetUp("eth0", true)
	r := NewRegistryForTesting(b, nil)
	h, err := r.Open("eth0", false, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.RingsCount() != rings {
		t.Fatalf("expected %d rings, got %d", rings, h.RingsCount())
	}
	return r, h
}

func TestHandleClaimWorkerConcurrent(t *testing.T) {
	_, h := openTestHandle(t, 8, 16)

	const n = 64
	seen := make([]int32, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			seen[i] = int32(h.ClaimWorker())
		}(i)
	}
	wg.Wait()

	counts := make(map[int]int)
	for _, v := range seen {
		counts[int(v)]++
	}
	if len(counts) != n {
		t.Fatalf("expected %d distinct claimed indices, got %d: %v", n, len(counts), counts)
	}
	for i := 0; i < n; i++ {
		if counts[i] != 1 {
			t.Fatalf("claimed index %d was issued %d times, want exactly 1", i, counts[i])
		}
	}
}

func TestHandleRingsIndependentlyAddressable(t *testing.T) {
	_, h := openTestHandle(t, 4, 8)
	for i := 0; i < h.RingsCount(); i++ {
		ring := h.Ring(i)
		if ring.Index != i {
			t.Fatalf("ring %d reports index %d", i, ring.Index)
		}
	}
}
