// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Option configures a single Run.
type Option func(*runOptions)

type runOptions struct {
	keepSamples bool
	now         func() time.Time
	logger      *slog.Logger
	onTrial     func(trial int, elapsed time.Duration)
}

func defaultRunOptions() runOptions {
	return runOptions{
		now:    time.Now,
		logger: slog.Default(),
	}
}

// WithRawSamples keeps the per-trial timings on the Result.
func WithRawSamples() Option {
	return func(o *runOptions) { o.keepSamples = true }
}

// WithClock replaces the clock used for trial timestamps.
//
// The default is time.Now, whose readings carry Go's monotonic clock.
// Replacement clocks must be monotonic as well.
func WithClock(now func() time.Time) Option {
	return func(o *runOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger for trial progress. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTrialHook registers a callback invoked after each trial's join with
// the 1-based trial number and its elapsed time. The hook runs on the
// calling goroutine, outside the timed region.
func WithTrialHook(fn func(trial int, elapsed time.Duration)) Option {
	return func(o *runOptions) { o.onTrial = fn }
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Run benchmarks a workload invocation under the given configuration.
//
// Description:
//
//	For each of cfg.TrialCount trials, Run launches cfg.ThreadCount worker
//	goroutines that each call the workload cfg.PerThreadRepetitions times,
//	waits for all of them, and records the elapsed time between the moment
//	just before the first launch and the moment just after the join. The
//	samples are reduced into the mean and sample variance on the Result.
//
// Inputs:
//   - ctx: Checked before each trial. A running trial is not interrupted.
//   - inv: The workload and its arguments. Fn must not be nil.
//   - cfg: Benchmark parameters. All fields must be positive.
//   - opts: Optional behavior (raw samples, clock, logger, trial hook).
//
// Outputs:
//   - *Result: The summary. Nil on error.
//   - error: ErrInvalidConfig before any workload call, a *WorkloadError if
//     a call failed, or the context error if ctx was cancelled between trials.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	result, err := benchmark.Run(ctx, inv, benchmark.Config{
//	    ThreadCount: 4, PerThreadRepetitions: 4, TrialCount: 16,
//	})
func Run(ctx context.Context, inv Invocation, cfg Config, opts ...Option) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if inv.Fn == nil {
		return nil, fmt.Errorf("%w: workload %q has no function", ErrInvalidConfig, inv.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultRunOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.With(
		slog.String("workload", inv.Name),
		slog.String("args", inv.ArgsString()),
		slog.Int("threads", cfg.ThreadCount),
		slog.Int("repetitions", cfg.PerThreadRepetitions),
	)

	samples := make([]time.Duration, 0, cfg.TrialCount)
	for trial := 1; trial <= cfg.TrialCount; trial++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("benchmark %s cancelled before trial %d: %w", inv.Name, trial, err)
		}

		elapsed, err := runTrial(inv, cfg, trial, o.now)
		if err != nil {
			logger.Error("trial failed", slog.Int("trial", trial), slog.String("error", err.Error()))
			return nil, err
		}
		samples = append(samples, elapsed)

		logger.Debug("trial complete",
			slog.Int("trial", trial),
			slog.Float64("elapsed_seconds", elapsed.Seconds()),
		)
		if o.onTrial != nil {
			o.onTrial(trial, elapsed)
		}
	}

	return newResult(inv, cfg, samples, o.keepSamples), nil
}

// Bench returns a runner bound to cfg.
//
// Description:
//
//	Bench is the higher-order form of Run: configure once, then benchmark
//	any number of invocations with the same parameters.
//
// Example:
//
//	run := benchmark.Bench(benchmark.Config{ThreadCount: 2, PerThreadRepetitions: 8, TrialCount: 16})
//	result, err := run(benchmark.NewInvocation("grezzo", workload.Grezzo, 5))
func Bench(cfg Config, opts ...Option) func(inv Invocation) (*Result, error) {
	return func(inv Invocation) (*Result, error) {
		return Run(context.Background(), inv, cfg, opts...)
	}
}

// runTrial executes one fan-out/join round and returns its elapsed time.
func runTrial(inv Invocation, cfg Config, trial int, now func() time.Time) (time.Duration, error) {
	var g errgroup.Group

	start := now()
	for worker := 0; worker < cfg.ThreadCount; worker++ {
		g.Go(func() error {
			return runWorker(inv, cfg.PerThreadRepetitions, trial, worker)
		})
	}
	err := g.Wait()
	elapsed := now().Sub(start)

	if err != nil {
		return 0, err
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, nil
}

// runWorker calls the workload reps times, stopping at the first failure.
// Panics are recovered and reported as workload failures.
func runWorker(inv Invocation, reps, trial, worker int) (err error) {
	rep := 0
	defer func() {
		if r := recover(); r != nil {
			err = &WorkloadError{
				Workload:   inv.Name,
				Args:       inv.Args,
				Trial:      trial,
				Worker:     worker,
				Repetition: rep,
				Err:        fmt.Errorf("panic: %v", r),
			}
		}
	}()

	for ; rep < reps; rep++ {
		if callErr := inv.Call(); callErr != nil {
			return &WorkloadError{
				Workload:   inv.Name,
				Args:       inv.Args,
				Trial:      trial,
				Worker:     worker,
				Repetition: rep,
				Err:        callErr,
			}
		}
	}
	return nil
}

// newResult reduces the trial samples into a Result.
func newResult(inv Invocation, cfg Config, samples []time.Duration, keepSamples bool) *Result {
	variance := 0.0
	if cfg.TrialCount > 1 {
		variance = SampleVariance(samples)
	}

	// samples is never empty here: TrialCount >= 1 and every trial succeeded.
	summary, _ := Summarize(samples)

	args := make([]any, len(inv.Args))
	copy(args, inv.Args)

	r := &Result{
		Workload:     inv.Name,
		Args:         args,
		Config:       cfg,
		MeanTime:     Mean(samples),
		VarianceTime: variance,
		Stats:        summary,
		TotalCalls:   cfg.CallsPerTrial() * cfg.TrialCount,
		Timestamp:    time.Now().UTC().UnixMilli(),
	}
	if keepSamples {
		r.Samples = samples
	}
	return r
}
