// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/benchsweep/cmd/benchsweep/config"
	"github.com/AleutianAI/benchsweep/pkg/logging"
	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
	"github.com/AleutianAI/benchsweep/services/bench/sink"
	store "github.com/AleutianAI/benchsweep/services/bench/storage/badger"
	"github.com/AleutianAI/benchsweep/services/bench/sweep"
	"github.com/AleutianAI/benchsweep/services/bench/telemetry"
)

// shutdownTimeout bounds the final telemetry flush.
const shutdownTimeout = 5 * time.Second

// changed reports whether the named flag was set on the command line.
func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// effectiveConfig loads --config and applies flag overrides on top.
func effectiveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	if changed(cmd, "out") {
		cfg.Output.ResultDir = outDir
	}
	if changed(cmd, "store") {
		cfg.Output.StorePath = storePath
	}
	if changed(cmd, "prom-textfile") {
		cfg.Output.PromTextfile = promTextfile
	}
	if changed(cmd, "raw-samples") {
		cfg.Output.RawSamples = rawSamples
	}
	if changed(cmd, "trace-exporter") {
		cfg.Telemetry.TraceExporter = traceExporter
	}
	if changed(cmd, "metric-exporter") {
		cfg.Telemetry.MetricExporter = metricExporter
	}
	if changed(cmd, "log-level") {
		cfg.Logging.Level = logLevel
	}
	if changed(cmd, "json-logs") && jsonLogs {
		cfg.Logging.Format = string(logging.FormatJSON)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config, out io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "benchsweep",
		Format:  format,
		Output:  out,
	})
}

func exporterActive(name string) bool {
	return name != "" && name != telemetry.ExporterNone
}

// outputs holds every sink a run writes to plus the resources behind them.
type outputs struct {
	composite *sink.Composite
	prom      *sink.PrometheusSink
	store     *sink.BadgerSink
	db        *badger.DB
}

func (o *outputs) Close() error {
	err := o.composite.Close()
	if o.db != nil {
		err = errors.Join(err, o.db.Close())
	}
	return err
}

// openOutputs builds the sink chain described by cfg.
func openOutputs(cfg config.Config, providers *telemetry.Providers, logger *slog.Logger) (*outputs, error) {
	o := &outputs{}
	var sinks []sink.Sink

	var files *sink.FileSink
	if cfg.Output.ResultDir != "" {
		files = sink.NewFileSink(cfg.Output.ResultDir)
		sinks = append(sinks, files)
	}
	sinks = append(sinks, sink.NewLogSink(logger, sink.WithFileSink(files)))

	if cfg.Output.StorePath != "" {
		storeCfg := store.DefaultConfig(cfg.Output.StorePath)
		storeCfg.Logger = logger.With(slog.String("component", "badger"))
		db, err := store.Open(storeCfg)
		if err != nil {
			return nil, fmt.Errorf("open result store: %w", err)
		}
		o.db = db
		o.store = sink.NewBadgerSink(db)
		sinks = append(sinks, o.store)
	}

	if cfg.Output.PromTextfile != "" || cfg.Telemetry.MetricExporter == telemetry.ExporterPrometheus {
		reg := providers.Registry
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		prom, err := sink.NewPrometheusSink(sink.PrometheusConfig{Registry: reg})
		if err != nil {
			o.closeDB()
			return nil, err
		}
		o.prom = prom
		sinks = append(sinks, prom)
	}

	traces := exporterActive(cfg.Telemetry.TraceExporter)
	metrics := exporterActive(cfg.Telemetry.MetricExporter)
	if traces || metrics {
		otelSink, err := sink.NewOTelSink(&sink.OTelConfig{
			ServiceVersion: version,
			TracerProvider: providers.TracerProvider,
			MeterProvider:  providers.MeterProvider,
			TraceEnabled:   traces,
			MetricsEnabled: metrics,
		})
		if err != nil {
			o.closeDB()
			return nil, err
		}
		sinks = append(sinks, otelSink)
	}

	o.composite = sink.NewComposite(sinks...)
	return o, nil
}

func (o *outputs) closeDB() {
	if o.db != nil {
		_ = o.db.Close()
	}
}

// runSweep implements "benchsweep run".
func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Slog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telCfg := cfg.Telemetry
	telCfg.ServiceVersion = version
	telCfg.Writer = cmd.OutOrStdout()
	telCfg.SetGlobal = true
	providers, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	out, err := openOutputs(cfg, providers, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Warn("closing outputs failed", slog.String("error", err.Error()))
		}
	}()

	invs := make([]benchmark.Invocation, 0, len(cfg.Workloads))
	for _, w := range cfg.Workloads {
		inv, err := w.Invocation()
		if err != nil {
			return err
		}
		invs = append(invs, inv)
	}

	engineOpts := []benchmark.Option{benchmark.WithLogger(log)}
	if cfg.Output.RawSamples {
		engineOpts = append(engineOpts, benchmark.WithRawSamples())
	}
	driver := sweep.NewDriver(out.composite,
		sweep.WithLogger(log),
		sweep.WithEngineOptions(engineOpts...),
	)

	all, err := driver.SweepAll(ctx, invs, cfg.Sweep)
	if err != nil {
		log.Error("sweep failed", slog.String("error", err.Error()))
		return err
	}

	if out.prom != nil && cfg.Output.PromTextfile != "" {
		if err := out.prom.WriteTextfile(cfg.Output.PromTextfile); err != nil {
			return err
		}
	}

	var flat []*benchmark.Result
	for _, results := range all {
		flat = append(flat, results...)
	}
	printResults(cmd.OutOrStdout(), flat)

	if out.store != nil {
		log.Info("results stored",
			slog.String("run_id", out.store.RunID()),
			slog.String("store", cfg.Output.StorePath),
		)
	}
	return nil
}

// printResults writes a summary table of results.
func printResults(w io.Writer, results []*benchmark.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKLOAD\tARGS\tTHREADS\tSEQ_ITER\tTRIALS\tMEAN(s)\tVARIANCE(s²)")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.6f\t%.3e\n",
			r.Workload, benchmark.FormatArgs(r.Args), r.ThreadCount,
			r.PerThreadRepetitions, r.TrialCount, r.MeanTime, r.VarianceTime)
	}
	_ = tw.Flush()
}

// runConfig implements "benchsweep config".
func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
