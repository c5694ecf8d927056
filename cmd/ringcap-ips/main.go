// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

// Command ringcap-ips wires an inline IPS deployment end to end: an
// ingress interface, a block-list verdict stage, and an egress
// interface that receives accepted frames via the zero-copy
// buffer-swap path. SNF has no inline-forwarding mode of its own, so
// this example has no direct teacher analogue; it is built from
// scratch against package capture's §4.2/§4.5 contracts.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ringfab/ringcap/capture"
	"github.com/ringfab/ringcap/filter"
	"github.com/ringfab/ringcap/netmap"
)

var (
	ingress     = flag.String("i", "", "ingress interface name")
	egress      = flag.String("o", "", "egress interface name")
	threads     = flag.Int("t", 1, "number of worker threads")
	blockExpr   = flag.String("block", "", `block-list expression, e.g. "tcp port 23"`)
	promiscuous = flag.Bool("p", true, "enable promiscuous mode")
)

// blockListStage tags every frame matching a compiled expression with
// ActionDrop; everything else passes through unmarked.
type blockListStage struct {
	filter filter.Filter
}

func (s *blockListStage) Process(workerThread int, frame capture.Frame) bool {
	bf, ok := frame.(*capture.BufferFrame)
	if !ok {
		return true
	}
	if s.filter != nil && s.filter.Execute(bf.Data()) != 0 {
		bf.SetAction(capture.ActionDrop)
	}
	// The verdict above is final and synchronous: release now so the
	// zero-copy forwarder can swap the buffer (or drop it) immediately.
	frame.Release()
	return true
}

func main() {
	flag.Parse()
	if *ingress == "" || *egress == "" {
		log.Fatal("usage: ringcap-ips -i <ingress> -o <egress> [-t threads] [-block expr]")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// No -block expression means no block-list filter: forward
	// everything (blockListStage treats a nil filter as "drop nothing").
	stage := &blockListStage{}
	if *blockExpr != "" {
		prog, err := filter.L4Compiler{}.Compile(filter.LinkEthernet, 65535, *blockExpr)
		if err != nil {
			logger.Fatal("compile block-list expression", zap.Error(err))
		}
		ev, err := filter.NewEvaluator(prog)
		if err != nil {
			logger.Fatal("build block-list evaluator", zap.Error(err))
		}
		stage.filter = ev
	}

	reg := netmap.NewRegistry(logger)

	cfg := capture.Config{
		Iface:            *ingress,
		EgressIface:      *egress,
		Threads:          *threads,
		Mode:             capture.ModeIPS,
		Promiscuous:      *promiscuous,
		ZeroCopyEligible: true,
		Pool:             capture.NewFramePool(4096),
		Downstream:       stage,
		Registry:         reg,
		Logger:           logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	if err := capture.RunAll(ctx, []capture.Config{cfg}); err != nil {
		logger.Fatal("run", zap.Error(err))
	}
}
