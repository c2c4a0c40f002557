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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
	store "github.com/AleutianAI/benchsweep/services/bench/storage/badger"
)

func TestBadgerSink(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	s := NewBadgerSink(db)
	_, err = uuid.Parse(s.RunID())
	require.NoError(t, err, "run ID should be a UUID")

	for _, threads := range []int{1, 2, 4, 8} {
		r := createTestResult()
		r.ThreadCount = threads
		r.PerThreadRepetitions = 16 / threads
		require.NoError(t, s.Record(ctx, r))
	}

	results, err := s.List(ctx, s.RunID())
	require.NoError(t, err)
	require.Len(t, results, 4)

	// Ordered by identifier.
	assert.Equal(t, "just_wait_(5,)_1_16", results[0].Identifier())
	assert.Equal(t, "just_wait_(5,)_8_2", results[3].Identifier())
	assert.Equal(t, 16, results[0].TrialCount)
	assert.InDelta(t, 0.5012, results[0].MeanTime, 1e-12)
}

func TestBadgerSink_SeparateRuns(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	a := NewBadgerSinkWithRunID(db, "run-a")
	b := NewBadgerSinkWithRunID(db, "run-b")
	require.NoError(t, a.Record(ctx, createTestResult()))
	require.NoError(t, b.Record(ctx, createTestResult()))
	require.NoError(t, b.Record(ctx, func() *benchmark.Result {
		r := createTestResult()
		r.Workload = "grezzo"
		return r
	}()))

	runs, err := ListRuns(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, runs)

	got, err := ListResults(ctx, db, "run-b")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	none, err := ListResults(ctx, db, "run-c")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBadgerSink_Closed(t *testing.T) {
	db, err := store.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	s := NewBadgerSink(db)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Record(context.Background(), createTestResult()), ErrSinkClosed)

	// The database is still usable after the sink closes.
	_, err = s.List(context.Background(), s.RunID())
	assert.NoError(t, err)
}
