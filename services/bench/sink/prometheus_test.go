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
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusSink_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheusSink(PrometheusConfig{Registry: reg})
	require.NoError(t, err)
	assert.Same(t, reg, p.Registry())

	ctx := context.Background()
	r := createTestResult()
	require.NoError(t, p.Record(ctx, r))

	r2 := createTestResult()
	r2.ThreadCount, r2.PerThreadRepetitions = 8, 2
	r2.MeanTime = 0.51
	require.NoError(t, p.Record(ctx, r2))

	assert.InDelta(t, 0.5012, testutil.ToFloat64(p.mean.WithLabelValues("just_wait", "(5,)", "4", "4")), 1e-12)
	assert.InDelta(t, 0.51, testutil.ToFloat64(p.mean.WithLabelValues("just_wait", "(5,)", "8", "2")), 1e-12)
	assert.InDelta(t, 0.00002, testutil.ToFloat64(p.variance.WithLabelValues("just_wait", "(5,)", "4", "4")), 1e-12)
	assert.Equal(t, float64(2), testutil.ToFloat64(p.results.WithLabelValues("just_wait")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.mean))
}

func TestPrometheusSink_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(PrometheusConfig{Registry: reg})
	require.NoError(t, err)

	_, err = NewPrometheusSink(PrometheusConfig{Registry: reg})
	assert.Error(t, err)

	_, err = NewPrometheusSink(PrometheusConfig{Registry: reg, Namespace: "other"})
	assert.NoError(t, err)
}

func TestPrometheusSink_WriteTextfile(t *testing.T) {
	p, err := NewPrometheusSink(PrometheusConfig{})
	require.NoError(t, err)
	require.NoError(t, p.Record(context.Background(), createTestResult()))

	path := filepath.Join(t.TempDir(), "benchsweep.prom")
	require.NoError(t, p.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE benchsweep_mean_seconds gauge")
	assert.Contains(t, text, `benchsweep_results_total{workload="just_wait"} 1`)
	assert.Contains(t, text, `threads="4"`)
}

func TestPrometheusSink_Closed(t *testing.T) {
	p, err := NewPrometheusSink(PrometheusConfig{})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Record(context.Background(), createTestResult()), ErrSinkClosed)
}
