// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

// Command ringcap-sniffer is a capture-only wiring example: it opens
// an interface, optionally filters, and writes accepted frames to a
// pcapng file, adapted from the teacher's examples/sniffer/main.go.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"

	"github.com/ringfab/ringcap/capture"
	"github.com/ringfab/ringcap/filter"
	"github.com/ringfab/ringcap/netmap"
)

var (
	devName     = flag.String("i", "", "interface name")
	threads     = flag.Int("t", 1, "number of worker threads")
	pcapFile    = flag.String("w", "out.pcapng", "pcapng file to write")
	filterExpr  = flag.String("f", "", `filter expression, e.g. "tcp port 80"`)
	promiscuous = flag.Bool("p", true, "enable promiscuous mode")
)

func main() {
	flag.Parse()
	if *devName == "" {
		log.Fatal("usage: ringcap-sniffer -i <iface> [-t threads] [-w out.pcapng] [-f expr]")
	}

	log.Println("opening", *devName)
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	f, err := os.Create(*pcapFile)
	if err != nil {
		logger.Fatal("create pcap file", zap.Error(err))
	}
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		logger.Fatal("new pcapng writer", zap.Error(err))
	}
	sink := capture.NewPcapNgSink(w)
	defer func() {
		if err := sink.Flush(); err != nil {
			logger.Error("flush pcapng writer", zap.Error(err))
		}
		w.Flush()
	}()

	cfg := capture.Config{
		Iface:       *devName,
		Threads:     *threads,
		Mode:        capture.ModeNone,
		Promiscuous: *promiscuous,
		Pool:        capture.NewFramePool(4096),
		Downstream:  sink,
		Logger:      logger,
	}
	if *filterExpr != "" {
		cfg.FilterSource = *filterExpr
		cfg.FilterCompiler = filter.L4Compiler{}
		cfg.MaxSnapLen = 65535
	}

	reg := netmap.NewRegistry(logger)
	cfg.Registry = reg

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
