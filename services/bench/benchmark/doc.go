// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package benchmark measures how the wall-clock time of a workload changes
// when it is invoked concurrently by a number of worker goroutines.
//
// # Overview
//
// A benchmark run is parameterized by a Config:
//
//   - ThreadCount: number of concurrent workers per trial
//   - PerThreadRepetitions: sequential calls each worker makes
//   - TrialCount: number of fan-out/join rounds that are timed
//
// # Trial Protocol
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                              Trial                                │
//	├──────────────────────────────────────────────────────────────────┤
//	│                                                                   │
//	│   start ──► ┌──────────┐ ┌──────────┐       ┌──────────┐          │
//	│             │ worker 1 │ │ worker 2 │  ...  │ worker N │ fan-out  │
//	│             │ call × R │ │ call × R │       │ call × R │          │
//	│             └────┬─────┘ └────┬─────┘       └────┬─────┘          │
//	│                  └────────────┴──────┬───────────┘                │
//	│                                      ▼                            │
//	│                                    join ──► end       fan-in      │
//	│                                                                   │
//	└──────────────────────────────────────────────────────────────────┘
//
// Trials run strictly one after another. Each trial contributes one
// elapsed-time sample taken from the monotonic clock. After the last trial
// the samples are reduced to a mean and a sample variance. The variance of
// a single-trial run is defined as exactly zero.
//
// # Usage
//
//	inv := benchmark.NewInvocation("just_wait", workload.JustWait, 5)
//	result, err := benchmark.Run(ctx, inv, benchmark.Config{
//	    ThreadCount:          4,
//	    PerThreadRepetitions: 4,
//	    TrialCount:           16,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("mean=%.3fs variance=%.6f\n", result.MeanTime, result.VarianceTime)
//
// # Errors
//
// Invalid configurations fail with ErrInvalidConfig before any workload call
// is made. A workload that returns an error or panics fails the whole run
// with a *WorkloadError; no partial result is produced.
//
// # Thread Safety
//
// Run is safe for concurrent use, although concurrent runs will disturb each
// other's timings. Results are immutable after Run returns.
package benchmark
