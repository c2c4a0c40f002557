// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sweep runs a workload across a range of thread counts.
//
// # Overview
//
// A sweep keeps the total amount of work per trial fixed and varies how it
// is split across workers. For each thread count t the engine runs with
// TotalRepetitions/t sequential calls per worker, so every sweep point
// performs the same number of workload calls per trial:
//
//	threads  per-thread reps  calls per trial
//	      1               16               16
//	      2                8               16
//	      4                4               16
//	      8                2               16
//
// Each result goes to a sink.Sink as soon as it is produced.
//
// # Errors
//
// Every thread count is checked before the first benchmark runs. A thread
// count that does not divide TotalRepetitions exactly is rejected with
// benchmark.ErrInvalidConfig. Failures are returned as *Error, which names
// the workload, arguments and thread count that failed.
//
// # Thread Safety
//
// A Driver may be shared across goroutines. Sweeps run their thread counts
// sequentially.
package sweep
