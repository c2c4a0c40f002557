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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/benchsweep/services/bench/workload"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath     string
	outDir         string
	storePath      string
	traceExporter  string
	metricExporter string
	promTextfile   string
	logLevel       string
	jsonLogs       bool
	rawSamples     bool
)

var (
	rootCmd = &cobra.Command{
		Use:   "benchsweep",
		Short: "Measure how workloads scale across thread counts",
		Long: `benchsweep runs each workload with a fixed amount of work per trial,
split across 1, 2, 4 and 8 concurrent workers, and reports the mean and
variance of the trial times.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the configured sweep",
		Args:  cobra.NoArgs,
		RunE:  runSweep, // Defined in run.go
	}

	historyCmd = &cobra.Command{
		Use:   "history [run-id]",
		Short: "List stored runs, or print the results of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory, // Defined in history.go
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  runConfig, // Defined in run.go
	}

	workloadsCmd = &cobra.Command{
		Use:   "workloads",
		Short: "List the registered workloads",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range workload.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the benchsweep version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "benchsweep %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "BadgerDB directory for result history")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Force JSON log output")

	runCmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for per-result JSON files")
	runCmd.Flags().StringVar(&traceExporter, "trace-exporter", "", "Trace exporter: none, stdout, otlp")
	runCmd.Flags().StringVar(&metricExporter, "metric-exporter", "", "Metric exporter: none, stdout, prometheus")
	runCmd.Flags().StringVar(&promTextfile, "prom-textfile", "", "Write Prometheus metrics to this file after the sweep")
	runCmd.Flags().BoolVar(&rawSamples, "raw-samples", false, "Keep every trial time in the results")

	rootCmd.AddCommand(runCmd, historyCmd, configCmd, workloadsCmd, versionCmd)
}
