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
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func createTestResult() *benchmark.Result {
	return &benchmark.Result{
		Workload: "just_wait",
		Args:     []any{5},
		Config: benchmark.Config{
			ThreadCount:          4,
			PerThreadRepetitions: 4,
			TrialCount:           16,
		},
		MeanTime:     0.5012,
		VarianceTime: 0.00002,
		Stats:        benchmark.Summary{Min: 0.5001, Max: 0.503, Median: 0.501, StdDev: 0.0045},
		TotalCalls:   256,
		Timestamp:    1735689600000,
	}
}

// recordingSink counts calls and can be told to fail.
type recordingSink struct {
	mu        sync.Mutex
	records   int
	closes    int
	recordErr error
	closeErr  error
}

func (s *recordingSink) Record(ctx context.Context, r *benchmark.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.records++
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

// -----------------------------------------------------------------------------
// Func / Discard
// -----------------------------------------------------------------------------

func TestFunc(t *testing.T) {
	var got *benchmark.Result
	s := Func(func(_ context.Context, r *benchmark.Result) error {
		got = r
		return nil
	})

	r := createTestResult()
	require.NoError(t, s.Record(context.Background(), r))
	assert.Same(t, r, got)
	assert.NoError(t, s.Close())
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Record(context.Background(), createTestResult()))
	assert.NoError(t, Discard.Close())
}

// -----------------------------------------------------------------------------
// Composite
// -----------------------------------------------------------------------------

func TestComposite(t *testing.T) {
	ctx := context.Background()

	t.Run("fans out in order", func(t *testing.T) {
		a, b := &recordingSink{}, &recordingSink{}
		c := NewComposite(a, nil, b)
		assert.Equal(t, 2, c.Len())

		require.NoError(t, c.Record(ctx, createTestResult()))
		require.NoError(t, c.Record(ctx, createTestResult()))
		assert.Equal(t, 2, a.records)
		assert.Equal(t, 2, b.records)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		cause := errors.New("disk full")
		a, b := &recordingSink{recordErr: cause}, &recordingSink{}
		c := NewComposite(a, b)

		err := c.Record(ctx, createTestResult())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSinkFailed)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 0, b.records)
	})

	t.Run("does not double wrap", func(t *testing.T) {
		inner := NewComposite(&recordingSink{recordErr: errors.New("boom")})
		outer := NewComposite(inner)

		err := outer.Record(ctx, createTestResult())
		require.Error(t, err)
		assert.Equal(t, 1, strings.Count(err.Error(), ErrSinkFailed.Error()))
	})

	t.Run("close joins errors", func(t *testing.T) {
		e1, e2 := errors.New("close 1"), errors.New("close 2")
		a, b := &recordingSink{closeErr: e1}, &recordingSink{closeErr: e2}
		c := NewComposite(a, b)

		err := c.Close()
		assert.ErrorIs(t, err, e1)
		assert.ErrorIs(t, err, e2)
		assert.Equal(t, 1, a.closes)
		assert.Equal(t, 1, b.closes)

		assert.NoError(t, c.Close(), "second close is a no-op")
		assert.Equal(t, 1, a.closes)
		assert.ErrorIs(t, c.Record(ctx, createTestResult()), ErrSinkClosed)
	})

	t.Run("rejects nil arguments", func(t *testing.T) {
		c := NewComposite()
		//nolint:staticcheck // nil context is the point of the test
		assert.ErrorIs(t, c.Record(nil, createTestResult()), ErrNilContext)
		assert.ErrorIs(t, c.Record(ctx, nil), ErrNilResult)
	})
}

// -----------------------------------------------------------------------------
// MemorySink
// -----------------------------------------------------------------------------

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Record(ctx, createTestResult())
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.Len())

	results := m.Results()
	results[0] = nil
	assert.NotNil(t, m.Results()[0], "Results must return a copy")

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Record(ctx, createTestResult()), ErrSinkClosed)
	assert.Equal(t, 20, m.Len())
}
