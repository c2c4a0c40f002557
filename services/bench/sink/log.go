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
	"log/slog"
	"sync/atomic"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

// LogSink logs one line per result.
//
// When a FileSink is attached the line also carries the file the result was
// written to.
//
// Thread Safety: Safe for concurrent use.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
	files  *FileSink
	closed atomic.Bool
}

// LogOption configures a LogSink.
type LogOption func(*LogSink)

// WithLevel sets the level results are logged at. Default: Info.
func WithLevel(level slog.Level) LogOption {
	return func(l *LogSink) { l.level = level }
}

// WithFileSink adds the result file path to each log line.
func WithFileSink(f *FileSink) LogOption {
	return func(l *LogSink) { l.files = f }
}

// NewLogSink creates a sink logging through logger, or slog.Default if nil.
func NewLogSink(logger *slog.Logger, opts ...LogOption) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	l := &LogSink{logger: logger, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record logs r.
func (l *LogSink) Record(ctx context.Context, r *benchmark.Result) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}
	if l.closed.Load() {
		return ErrSinkClosed
	}

	attrs := []slog.Attr{
		slog.String("id", r.Identifier()),
		slog.String("workload", r.Workload),
		slog.String("args", benchmark.FormatArgs(r.Args)),
		slog.Int("threads", r.ThreadCount),
		slog.Int("seq_iter", r.PerThreadRepetitions),
		slog.Int("trials", r.TrialCount),
		slog.Float64("mean_s", r.MeanTime),
		slog.Float64("variance_s2", r.VarianceTime),
	}
	if l.files != nil {
		attrs = append(attrs, slog.String("file", l.files.PathFor(r)))
	}
	l.logger.LogAttrs(ctx, l.level, "benchmark result", attrs...)
	return nil
}

// Close marks the sink closed.
func (l *LogSink) Close() error {
	l.closed.Store(true)
	return nil
}

var _ Sink = (*LogSink)(nil)
