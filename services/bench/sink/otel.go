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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

// instrumentationName is the tracer and meter scope for OTelSink.
const instrumentationName = "github.com/AleutianAI/benchsweep/services/bench/sink"

var (
	// ErrInvalidOTelConfig is returned when the OTel configuration is invalid.
	ErrInvalidOTelConfig = errors.New("invalid opentelemetry configuration")

	// ErrOTelInitFailed is returned when metric instruments cannot be created.
	ErrOTelInitFailed = errors.New("opentelemetry initialization failed")
)

// OTelConfig configures the OpenTelemetry sink.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type OTelConfig struct {
	// ServiceVersion is reported as the instrumentation version.
	ServiceVersion string

	// TracerProvider is the tracer provider to use.
	// If nil, uses the global tracer provider.
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If nil, uses the global meter provider.
	MeterProvider metric.MeterProvider

	// TraceEnabled enables one span per recorded result.
	TraceEnabled bool

	// MetricsEnabled enables metric recording.
	MetricsEnabled bool
}

// DefaultOTelConfig returns a config with tracing and metrics enabled on
// the global providers.
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceVersion: "dev",
		TraceEnabled:   true,
		MetricsEnabled: true,
	}
}

// OTelSink exports results via OpenTelemetry.
//
// Description:
//
//	Every recorded result produces a "benchmark.record" span carrying the
//	sweep point and its statistics, and feeds these instruments:
//
//	  benchmark.mean      histogram  s
//	  benchmark.variance  histogram  s2
//	  benchmark.calls     counter    {call}
//	  benchmark.results   counter    {result}
//
//	When the result carries raw samples, each is also recorded on the
//	benchmark.trial histogram.
//
//	The sink never shuts down the providers; the caller owns them.
//
// Thread Safety: Safe for concurrent use.
type OTelSink struct {
	config OTelConfig
	tracer trace.Tracer
	meter  metric.Meter

	mean     metric.Float64Histogram
	variance metric.Float64Histogram
	trial    metric.Float64Histogram
	calls    metric.Int64Counter
	results  metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewOTelSink creates an OpenTelemetry sink.
//
// Inputs:
//
//	config - Must not be nil. Nil providers fall back to the globals.
//
// Outputs:
//
//	*OTelSink - The sink. Never nil on success.
//	error - ErrInvalidOTelConfig or ErrOTelInitFailed.
func NewOTelSink(config *OTelConfig) (*OTelSink, error) {
	if config == nil {
		return nil, ErrInvalidOTelConfig
	}
	cfg := *config

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	s := &OTelSink{
		config: cfg,
		tracer: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:  mp.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
	}

	if cfg.MetricsEnabled {
		if err := s.initializeMetrics(); err != nil {
			return nil, errors.Join(ErrOTelInitFailed, err)
		}
	}
	return s, nil
}

func (s *OTelSink) initializeMetrics() error {
	var err error

	s.mean, err = s.meter.Float64Histogram("benchmark.mean",
		metric.WithDescription("Mean trial time in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	s.variance, err = s.meter.Float64Histogram("benchmark.variance",
		metric.WithDescription("Sample variance of trial times"),
		metric.WithUnit("s2"),
	)
	if err != nil {
		return err
	}

	s.trial, err = s.meter.Float64Histogram("benchmark.trial",
		metric.WithDescription("Wall-clock time of individual trials"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	s.calls, err = s.meter.Int64Counter("benchmark.calls",
		metric.WithDescription("Workload calls made"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	s.results, err = s.meter.Int64Counter("benchmark.results",
		metric.WithDescription("Benchmark results recorded"),
		metric.WithUnit("{result}"),
	)
	return err
}

// resultAttributes identify the sweep point r was measured at.
func resultAttributes(r *benchmark.Result) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("benchmark.workload", r.Workload),
		attribute.String("benchmark.args", benchmark.FormatArgs(r.Args)),
		attribute.Int("benchmark.threads", r.ThreadCount),
		attribute.Int("benchmark.seq_iter", r.PerThreadRepetitions),
		attribute.Int("benchmark.trials", r.TrialCount),
	}
}

// Record emits a span and metric points for r.
func (s *OTelSink) Record(ctx context.Context, r *benchmark.Result) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	attrs := resultAttributes(r)

	if s.config.TraceEnabled {
		opts := []trace.SpanStartOption{trace.WithAttributes(attrs...)}
		if r.Timestamp > 0 {
			opts = append(opts, trace.WithTimestamp(time.UnixMilli(r.Timestamp)))
		}
		_, span := s.tracer.Start(ctx, "benchmark.record", opts...)
		span.SetAttributes(
			attribute.String("benchmark.id", r.Identifier()),
			attribute.Float64("benchmark.mean_seconds", r.MeanTime),
			attribute.Float64("benchmark.variance_seconds2", r.VarianceTime),
			attribute.Float64("benchmark.min_seconds", r.Stats.Min),
			attribute.Float64("benchmark.max_seconds", r.Stats.Max),
			attribute.Int("benchmark.total_calls", r.TotalCalls),
		)
		span.End()
	}

	if s.config.MetricsEnabled {
		set := metric.WithAttributes(attrs...)
		s.mean.Record(ctx, r.MeanTime, set)
		s.variance.Record(ctx, r.VarianceTime, set)
		for _, d := range r.Samples {
			s.trial.Record(ctx, d.Seconds(), set)
		}
		s.calls.Add(ctx, int64(r.TotalCalls), set)
		s.results.Add(ctx, 1, set)
	}
	return nil
}

// Close stops recording. Providers are left running.
func (s *OTelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Sink = (*OTelSink)(nil)
