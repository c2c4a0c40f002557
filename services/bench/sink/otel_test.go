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
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// findMetric returns the named metric from rm, or false.
func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestNewOTelSink(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		if _, err := NewOTelSink(nil); err != ErrInvalidOTelConfig {
			t.Errorf("err = %v, want ErrInvalidOTelConfig", err)
		}
	})

	t.Run("global providers", func(t *testing.T) {
		s, err := NewOTelSink(DefaultOTelConfig())
		if err != nil {
			t.Fatalf("NewOTelSink failed: %v", err)
		}
		if err := s.Record(context.Background(), createTestResult()); err != nil {
			t.Errorf("Record on global no-op providers failed: %v", err)
		}
	})
}

func TestOTelSink_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("emits span", func(t *testing.T) {
		spanRecorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
		defer tp.Shutdown(ctx)

		config := DefaultOTelConfig()
		config.TracerProvider = tp
		config.MetricsEnabled = false

		s, err := NewOTelSink(config)
		if err != nil {
			t.Fatalf("NewOTelSink failed: %v", err)
		}
		defer s.Close()

		if err := s.Record(ctx, createTestResult()); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		spans := spanRecorder.Ended()
		if len(spans) != 1 {
			t.Fatalf("Expected 1 span, got %d", len(spans))
		}
		span := spans[0]
		if span.Name() != "benchmark.record" {
			t.Errorf("Span name = %s, want benchmark.record", span.Name())
		}
		if !span.StartTime().Equal(time.UnixMilli(1735689600000)) {
			t.Errorf("StartTime = %v, want result timestamp", span.StartTime())
		}

		want := map[attribute.Key]attribute.Value{
			"benchmark.workload": attribute.StringValue("just_wait"),
			"benchmark.args":     attribute.StringValue("(5,)"),
			"benchmark.threads":  attribute.IntValue(4),
			"benchmark.id":       attribute.StringValue("just_wait_(5,)_4_4"),
		}
		got := make(map[attribute.Key]attribute.Value)
		for _, kv := range span.Attributes() {
			got[kv.Key] = kv.Value
		}
		for k, v := range want {
			if got[k] != v {
				t.Errorf("attribute %s = %v, want %v", k, got[k].Emit(), v.Emit())
			}
		}
	})

	t.Run("records metrics", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer mp.Shutdown(ctx)

		config := DefaultOTelConfig()
		config.MeterProvider = mp
		config.TraceEnabled = false

		s, err := NewOTelSink(config)
		if err != nil {
			t.Fatalf("NewOTelSink failed: %v", err)
		}

		r := createTestResult()
		r.Samples = []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			t.Fatalf("Collect failed: %v", err)
		}

		m, ok := findMetric(rm, "benchmark.results")
		if !ok {
			t.Fatal("benchmark.results not collected")
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
			t.Errorf("benchmark.results = %+v, want one point with value 1", m.Data)
		}

		m, ok = findMetric(rm, "benchmark.calls")
		if !ok {
			t.Fatal("benchmark.calls not collected")
		}
		if sum, ok := m.Data.(metricdata.Sum[int64]); !ok || sum.DataPoints[0].Value != 256 {
			t.Errorf("benchmark.calls = %+v, want 256", m.Data)
		}

		m, ok = findMetric(rm, "benchmark.trial")
		if !ok {
			t.Fatal("benchmark.trial not collected")
		}
		hist, ok := m.Data.(metricdata.Histogram[float64])
		if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 3 {
			t.Errorf("benchmark.trial = %+v, want 3 samples", m.Data)
		}

		if _, ok := findMetric(rm, "benchmark.mean"); !ok {
			t.Error("benchmark.mean not collected")
		}
	})

	t.Run("closed sink", func(t *testing.T) {
		s, _ := NewOTelSink(DefaultOTelConfig())
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := s.Record(ctx, createTestResult()); err != ErrSinkClosed {
			t.Errorf("err = %v, want ErrSinkClosed", err)
		}
	})
}
