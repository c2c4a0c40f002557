// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sink receives benchmark results as a sweep produces them.
//
// # Overview
//
// A Sink is handed each *benchmark.Result right after the engine returns it.
// Sinks never modify the result. The sweep driver aborts on the first sink
// error, so a sink that fails does not receive later results.
//
//	┌──────────┐   Record(ctx, r)   ┌───────────┐
//	│  sweep   │ ─────────────────▶ │ Composite │
//	└──────────┘                    └─────┬─────┘
//	                  ┌──────────┬────────┼─────────┬────────────┐
//	                  ▼          ▼        ▼         ▼            ▼
//	               File        Log     Badger   Prometheus     OTel
//
// # Implementations
//
//   - FileSink writes one indented JSON file per result, named after
//     Result.Identifier.
//   - LogSink logs each result through slog.
//   - MemorySink collects results in memory.
//   - BadgerSink persists results under a run ID.
//   - PrometheusSink exposes mean and variance as labeled gauges.
//   - OTelSink emits a span and histogram samples per result.
//
// # Thread Safety
//
// All Sink implementations are safe for concurrent use.
package sink
