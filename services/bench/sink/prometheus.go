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
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

// DefaultNamespace prefixes every metric PrometheusSink registers.
const DefaultNamespace = "benchsweep"

// resultLabels identify one sweep point.
var resultLabels = []string{"workload", "args", "threads", "reps"}

// PrometheusConfig configures a PrometheusSink.
type PrometheusConfig struct {
	// Namespace prefixes metric names. Default: DefaultNamespace.
	Namespace string

	// Registry receives the collectors. If nil, a fresh registry is created.
	Registry *prometheus.Registry
}

// PrometheusSink exposes each result as labeled gauges.
//
// Description:
//
//	Registers three collectors on the configured registry:
//
//	  <ns>_mean_seconds{workload,args,threads,reps}       gauge
//	  <ns>_variance_seconds2{workload,args,threads,reps}  gauge
//	  <ns>_results_total{workload}                        counter
//
//	Recording the same sweep point twice overwrites the gauges. The
//	registry can be scraped by the caller or dumped with WriteTextfile
//	for the node_exporter textfile collector.
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	registry *prometheus.Registry

	mean     *prometheus.GaugeVec
	variance *prometheus.GaugeVec
	results  *prometheus.CounterVec

	closed atomic.Bool
}

// NewPrometheusSink registers the sink's collectors.
//
// Outputs:
//
//	*PrometheusSink - The sink.
//	error - Non-nil if the collectors are already registered on the registry.
func NewPrometheusSink(cfg PrometheusConfig) (*PrometheusSink, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &PrometheusSink{
		registry: reg,
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "mean_seconds",
			Help:      "Mean wall-clock time of one trial in seconds",
		}, resultLabels),
		variance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "variance_seconds2",
			Help:      "Sample variance of trial times in seconds squared",
		}, resultLabels),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "results_total",
			Help:      "Number of benchmark results recorded by workload",
		}, []string{"workload"}),
	}

	for _, c := range []prometheus.Collector{s.mean, s.variance, s.results} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register prometheus collector: %w", err)
		}
	}
	return s, nil
}

// Registry returns the registry the collectors live on.
func (p *PrometheusSink) Registry() *prometheus.Registry {
	return p.registry
}

// Record sets the gauges for r's sweep point.
func (p *PrometheusSink) Record(ctx context.Context, r *benchmark.Result) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}
	if p.closed.Load() {
		return ErrSinkClosed
	}

	labels := prometheus.Labels{
		"workload": r.Workload,
		"args":     benchmark.FormatArgs(r.Args),
		"threads":  strconv.Itoa(r.ThreadCount),
		"reps":     strconv.Itoa(r.PerThreadRepetitions),
	}
	p.mean.With(labels).Set(r.MeanTime)
	p.variance.With(labels).Set(r.VarianceTime)
	p.results.WithLabelValues(r.Workload).Inc()
	return nil
}

// WriteTextfile writes the registry in text exposition format to path.
func (p *PrometheusSink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write prometheus textfile %s: %w", path, err)
	}
	return nil
}

// Close stops recording. Registered collectors keep their last values.
func (p *PrometheusSink) Close() error {
	p.closed.Store(true)
	return nil
}

var _ Sink = (*PrometheusSink)(nil)
