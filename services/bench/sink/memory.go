// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"context"
	"sync"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

// MemorySink collects results in memory in the order they are recorded.
//
// Thread Safety: Safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	results []*benchmark.Result
	closed  bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends r.
func (m *MemorySink) Record(ctx context.Context, r *benchmark.Result) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSinkClosed
	}
	m.results = append(m.results, r)
	return nil
}

// Results returns a copy of the recorded results.
func (m *MemorySink) Results() []*benchmark.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*benchmark.Result, len(m.results))
	copy(out, m.results)
	return out
}

// Len returns the number of recorded results.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// Close marks the sink closed. Recorded results stay readable.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Sink = (*MemorySink)(nil)
