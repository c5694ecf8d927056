// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package capture

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ringfab/ringcap/netmap"
)

// RunAll builds Threads-many Workers per Config — every thread for the
// same interface shares one netmap.Registry so they negotiate disjoint
// ring ranges off the same device handle's claim counter (spec §3
// "worker-claim counter") — then runs them all until the process-wide
// shutdown sentinel is set or one returns an error.
func RunAll(ctx context.Context, configs []Config) error {
	g, ctx := errgroup.WithContext(ctx)

	var sharedRegistry *netmap.Registry
	liveDevices := make(map[string]*AtomicLiveDevice)

	var workers []*Worker
	defer func() {
		for _, w := range workers {
			w.Close()
		}
	}()

	for _, cfg := range configs {
		if cfg.Registry == nil {
			if sharedRegistry == nil {
				log := cfg.Logger
				if log == nil {
					log = zap.NewNop()
				}
				sharedRegistry = netmap.NewRegistry(log)
			}
			cfg.Registry = sharedRegistry
		}
		if cfg.LiveDevice == nil {
			ld, ok := liveDevices[cfg.Iface]
			if !ok {
				ld = &AtomicLiveDevice{}
				liveDevices[cfg.Iface] = ld
			}
			cfg.LiveDevice = ld
		}
		for t := 0; t < cfg.Threads; t++ {
			w, err := NewWorker(cfg)
			if err != nil {
				return err
			}
			workers = append(workers, w)
		}
	}

	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Run()
		})
	}

	go func() {
		<-ctx.Done()
		Shutdown()
	}()

	return g.Wait()
}
