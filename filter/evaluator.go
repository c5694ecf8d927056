// Copyright 2019 Yerden Zhumabekov. All rights reserved.
//
// Use of this source code is governed by MIT license which
// can be found in the LICENSE file in the root of the source
// tree.

package filter

import "golang.org/x/net/bpf"

// Evaluator wraps a pre-compiled BPF program and evaluates it against
// one frame at a time (spec §4.6 "Filter Evaluator"). It is stateless
// and allocation-free on the hot path: golang.org/x/net/bpf.VM.Run does
// not allocate. Compilation of filter expressions into bytecode is an
// explicit non-goal of this package (spec §1); see package filter's
// Compiler for the one narrow exception this repo ships.
type Evaluator struct {
	vm *bpf.VM
}

var _ Filter = (*Evaluator)(nil)

// NewEvaluator builds an Evaluator from a compiled BPF program. An empty
// program means "accept all" (spec §4.6).
func NewEvaluator(prog []bpf.Instruction) (*Evaluator, error) {
	if len(prog) == 0 {
		return &Evaluator{}, nil
	}
	vm, err := bpf.NewVM(prog)
	if err != nil {
		return nil, err
	}
	return &Evaluator{vm: vm}, nil
}

// Execute runs the program over pkt, returning non-zero if the packet
// is accepted.
func (e *Evaluator) Execute(pkt []byte) int {
	if e.vm == nil {
		return 1
	}
	n, err := e.vm.Run(pkt)
	if err != nil || n == 0 {
		return 0
	}
	return 1
}
