// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workload provides sample workloads for the benchmark engine.
//
// Two workloads exercise opposite ends of the concurrency spectrum:
//   - just_wait sleeps, so concurrent calls overlap almost perfectly
//   - grezzo spins the CPU, so concurrent calls compete for cores
package workload

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

var (
	// ErrUnknownWorkload is returned by Lookup for unregistered names.
	ErrUnknownWorkload = errors.New("unknown workload")

	// ErrBadArgs is returned when a workload receives arguments it cannot use.
	ErrBadArgs = errors.New("bad workload arguments")
)

// WaitUnit is the sleep duration per unit of n for JustWait.
const WaitUnit = 100 * time.Millisecond

// maxGrezzoExponent caps Grezzo's loop size at 2^40 iterations.
const maxGrezzoExponent = 40

var lastSum atomic.Uint64

// JustWait sleeps for n × 100ms. It expects a single non-negative int.
func JustWait(args ...any) error {
	n, err := intArg(args)
	if err != nil {
		return err
	}
	time.Sleep(time.Duration(n) * WaitUnit)
	return nil
}

// Grezzo burns CPU by counting through 2^n loop iterations.
func Grezzo(args ...any) error {
	n, err := intArg(args)
	if err != nil {
		return err
	}
	if n > maxGrezzoExponent {
		return fmt.Errorf("%w: exponent %d exceeds %d", ErrBadArgs, n, maxGrezzoExponent)
	}

	var acc uint64
	for i := uint64(0); i < uint64(1)<<n; i++ {
		acc += i
	}
	// Publish the sum so the loop is not optimized away.
	lastSum.Store(acc)
	return nil
}

func intArg(args []any) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: want 1 argument, got %d", ErrBadArgs, len(args))
	}
	n, ok := args[0].(int)
	if !ok {
		return 0, fmt.Errorf("%w: want int, got %T", ErrBadArgs, args[0])
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: argument must be non-negative, got %d", ErrBadArgs, n)
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var registry = map[string]benchmark.Workload{
	"just_wait": JustWait,
	"grezzo":    Grezzo,
}

// Lookup returns the workload registered under name.
func Lookup(name string) (benchmark.Workload, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownWorkload, name, Names())
	}
	return fn, nil
}

// Names returns the registered workload names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invocation looks up name and binds it to args.
func Invocation(name string, args ...any) (benchmark.Invocation, error) {
	fn, err := Lookup(name)
	if err != nil {
		return benchmark.Invocation{}, err
	}
	return benchmark.NewInvocation(name, fn, args...), nil
}
