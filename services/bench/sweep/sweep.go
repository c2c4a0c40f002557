// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
	"github.com/AleutianAI/benchsweep/services/bench/sink"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// ErrInvalidSweep indicates a sweep configuration that cannot run at all,
// such as an empty thread count list.
var ErrInvalidSweep = errors.New("invalid sweep configuration")

// Stage names the step of a sweep that failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageBenchmark Stage = "benchmark"
	StageSink      Stage = "sink"
)

// Error reports the sweep point at which a sweep failed.
type Error struct {
	Workload             string
	Args                 []any
	ThreadCount          int
	PerThreadRepetitions int
	Stage                Stage
	Err                  error
}

func (e *Error) Error() string {
	if e.Workload == "" {
		return fmt.Sprintf("sweep with %d threads x %d reps failed at %s: %v",
			e.ThreadCount, e.PerThreadRepetitions, e.Stage, e.Err)
	}
	return fmt.Sprintf("sweep %s%s with %d threads x %d reps failed at %s: %v",
		e.Workload, benchmark.FormatArgs(e.Args), e.ThreadCount, e.PerThreadRepetitions, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config describes one sweep.
type Config struct {
	// TotalRepetitions is the number of workload calls per trial, split
	// evenly across workers.
	TotalRepetitions int `yaml:"total_repetitions" validate:"min=1"`

	// TrialCount is the number of timed trials per sweep point.
	TrialCount int `yaml:"trial_count" validate:"min=1"`

	// ThreadCounts are the worker counts to sweep, in run order.
	ThreadCounts []int `yaml:"thread_counts" validate:"required,min=1,dive,min=1"`
}

// DefaultConfig returns 16 total repetitions and 16 trials over 1, 2, 4
// and 8 threads.
func DefaultConfig() Config {
	return Config{
		TotalRepetitions: 16,
		TrialCount:       16,
		ThreadCounts:     []int{1, 2, 4, 8},
	}
}

// PerThreadRepetitions splits total across threads.
//
// Outputs:
//
//	int - total/threads.
//	error - benchmark.ErrInvalidConfig when threads < 1, the quotient is
//	zero, or the division leaves a remainder.
func PerThreadRepetitions(total, threads int) (int, error) {
	if threads < 1 {
		return 0, fmt.Errorf("%w: thread count must be positive, got %d", benchmark.ErrInvalidConfig, threads)
	}
	reps := total / threads
	if reps == 0 {
		return 0, fmt.Errorf("%w: %d total repetitions leave no work for %d threads",
			benchmark.ErrInvalidConfig, total, threads)
	}
	if total%threads != 0 {
		return 0, fmt.Errorf("%w: %d total repetitions do not divide evenly across %d threads",
			benchmark.ErrInvalidConfig, total, threads)
	}
	return reps, nil
}

// Plan returns the engine configuration for every sweep point in order.
//
// The whole plan is validated before anything is returned, so a sweep
// built from it never stops partway on a configuration error.
func Plan(cfg Config) ([]benchmark.Config, error) {
	if len(cfg.ThreadCounts) == 0 {
		return nil, fmt.Errorf("%w: no thread counts", ErrInvalidSweep)
	}

	plan := make([]benchmark.Config, 0, len(cfg.ThreadCounts))
	for _, t := range cfg.ThreadCounts {
		reps, err := PerThreadRepetitions(cfg.TotalRepetitions, t)
		if err != nil {
			return nil, &Error{ThreadCount: t, Stage: StageValidate, Err: err}
		}
		bc := benchmark.Config{
			ThreadCount:          t,
			PerThreadRepetitions: reps,
			TrialCount:           cfg.TrialCount,
		}
		if err := bc.Validate(); err != nil {
			return nil, &Error{ThreadCount: t, PerThreadRepetitions: reps, Stage: StageValidate, Err: err}
		}
		plan = append(plan, bc)
	}
	return plan, nil
}

// -----------------------------------------------------------------------------
// Driver
// -----------------------------------------------------------------------------

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithEngineOptions passes options to every benchmark.Run call.
func WithEngineOptions(opts ...benchmark.Option) Option {
	return func(d *Driver) {
		d.engineOpts = append(d.engineOpts, opts...)
	}
}

// Driver runs sweeps and forwards results to a sink.
type Driver struct {
	sink       sink.Sink
	logger     *slog.Logger
	engineOpts []benchmark.Option
}

// NewDriver creates a driver writing to s. A nil s discards results.
func NewDriver(s sink.Sink, opts ...Option) *Driver {
	if s == nil {
		s = sink.Discard
	}
	d := &Driver{sink: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sweep runs inv at every thread count in cfg.
//
// Description:
//
//	Validates the full plan, then for each thread count runs the engine
//	and hands the result to the sink before moving on. The first engine
//	or sink failure stops the sweep.
//
// Inputs:
//
//	ctx - Checked between sweep points and passed to the engine and sink.
//	inv - The workload to run.
//	cfg - Sweep configuration.
//
// Outputs:
//
//	[]*benchmark.Result - One result per thread count, in cfg order.
//	error - *Error on failure. No results are returned with an error.
func (d *Driver) Sweep(ctx context.Context, inv benchmark.Invocation, cfg Config) ([]*benchmark.Result, error) {
	if ctx == nil {
		return nil, benchmark.ErrNilContext
	}
	plan, err := Plan(cfg)
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			se.Workload = inv.Name
			se.Args = inv.Args
		}
		return nil, err
	}

	logger := d.logger.With(
		slog.String("workload", inv.Name),
		slog.String("args", inv.ArgsString()),
	)
	logger.Info("sweep starting",
		slog.Int("points", len(plan)),
		slog.Int("total_repetitions", cfg.TotalRepetitions),
		slog.Int("trials", cfg.TrialCount),
	)

	start := time.Now()
	results := make([]*benchmark.Result, 0, len(plan))
	for _, bc := range plan {
		fail := func(stage Stage, err error) error {
			return &Error{
				Workload:             inv.Name,
				Args:                 inv.Args,
				ThreadCount:          bc.ThreadCount,
				PerThreadRepetitions: bc.PerThreadRepetitions,
				Stage:                stage,
				Err:                  err,
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, fail(StageBenchmark, err)
		}

		result, err := benchmark.Run(ctx, inv, bc, d.engineOpts...)
		if err != nil {
			logger.Error("sweep point failed",
				slog.Int("threads", bc.ThreadCount),
				slog.String("error", err.Error()),
			)
			return nil, fail(StageBenchmark, err)
		}

		if err := d.sink.Record(ctx, result); err != nil {
			if !errors.Is(err, sink.ErrSinkFailed) && !errors.Is(err, sink.ErrSinkClosed) {
				err = fmt.Errorf("%w: %w", sink.ErrSinkFailed, err)
			}
			return nil, fail(StageSink, err)
		}

		logger.Debug("sweep point done",
			slog.Int("threads", bc.ThreadCount),
			slog.Int("seq_iter", bc.PerThreadRepetitions),
			slog.Float64("mean_s", result.MeanTime),
		)
		results = append(results, result)
	}

	logger.Info("sweep complete",
		slog.Int("points", len(results)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

// SweepAll runs Sweep for each invocation in order and stops at the first
// failure. Results are keyed by position in invs.
func (d *Driver) SweepAll(ctx context.Context, invs []benchmark.Invocation, cfg Config) ([][]*benchmark.Result, error) {
	if _, err := Plan(cfg); err != nil {
		return nil, err
	}

	all := make([][]*benchmark.Result, 0, len(invs))
	for _, inv := range invs {
		results, err := d.Sweep(ctx, inv, cfg)
		if err != nil {
			return nil, err
		}
		all = append(all, results)
	}
	return all, nil
}

// Sweep runs a single sweep with a default driver writing to s.
func Sweep(ctx context.Context, inv benchmark.Invocation, cfg Config, s sink.Sink) ([]*benchmark.Result, error) {
	return NewDriver(s).Sweep(ctx, inv, cfg)
}
