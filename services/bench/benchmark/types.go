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
	"errors"
	"fmt"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfig indicates an invalid benchmark configuration.
	ErrInvalidConfig = errors.New("invalid benchmark configuration")

	// ErrWorkloadFailed indicates that a workload call failed inside a worker.
	ErrWorkloadFailed = errors.New("workload failed")

	// ErrNilContext is returned when a nil context is passed to Run.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNoSamples indicates that no samples were collected.
	ErrNoSamples = errors.New("no samples collected")
)

// WorkloadError describes a workload failure inside one worker of one trial.
//
// Description:
//
//	WorkloadError records where the failure happened so that the caller can
//	tell which call of which worker broke the run. It wraps both
//	ErrWorkloadFailed and the underlying cause.
//
// Thread Safety: Immutable after creation.
type WorkloadError struct {
	// Workload is the name of the failing workload.
	Workload string

	// Args are the arguments the workload was called with.
	Args []any

	// Trial is the 1-based trial number.
	Trial int

	// Worker is the 0-based worker index within the trial.
	Worker int

	// Repetition is the 0-based repetition index within the worker.
	Repetition int

	// Err is the error returned by the workload, or the recovered panic.
	Err error
}

// Error implements error.
func (e *WorkloadError) Error() string {
	return fmt.Sprintf("workload %s%s failed in trial %d (worker %d, repetition %d): %v",
		e.Workload, FormatArgs(e.Args), e.Trial, e.Worker, e.Repetition, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *WorkloadError) Unwrap() []error {
	return []error{ErrWorkloadFailed, e.Err}
}

// -----------------------------------------------------------------------------
// Workload
// -----------------------------------------------------------------------------

// Workload is a function that can be benchmarked.
//
// Any return value of the underlying computation is discarded by the engine;
// only the error matters. A non-nil error or a panic fails the run.
type Workload func(args ...any) error

// Invocation binds a workload to the arguments it is called with.
//
// Thread Safety: Immutable after creation; safe for concurrent use as long
// as the bound workload itself is.
type Invocation struct {
	// Name identifies the workload in results and file names.
	Name string

	// Fn is the workload function.
	Fn Workload

	// Args are the positional arguments passed to Fn on every call.
	Args []any
}

// NewInvocation creates an invocation. The argument slice is copied.
func NewInvocation(name string, fn Workload, args ...any) Invocation {
	copied := make([]any, len(args))
	copy(copied, args)
	return Invocation{Name: name, Fn: fn, Args: copied}
}

// Call invokes the workload once with the bound arguments.
func (i Invocation) Call() error {
	return i.Fn(i.Args...)
}

// ArgsString returns the argument tuple as used in result identifiers.
func (i Invocation) ArgsString() string {
	return FormatArgs(i.Args)
}

// FormatArgs renders an argument list as a tuple: (), (5,), (1, 2).
func FormatArgs(args []any) string {
	switch len(args) {
	case 0:
		return "()"
	case 1:
		return "(" + formatArg(args[0]) + ",)"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatArg(a any) string {
	if s, ok := a.(string); ok {
		return "'" + s + "'"
	}
	return fmt.Sprint(a)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config holds the parameters of one benchmark run.
//
// Description:
//
//	All three fields must be positive. The engine rejects configurations
//	that violate this instead of clamping them.
//
// Thread Safety: Safe for concurrent read access.
type Config struct {
	// ThreadCount is the number of concurrent workers per trial.
	ThreadCount int `json:"n_threads" yaml:"thread_count"`

	// PerThreadRepetitions is the number of sequential workload calls per worker.
	PerThreadRepetitions int `json:"seq_iter" yaml:"per_thread_repetitions"`

	// TrialCount is the number of timed fan-out/join rounds.
	TrialCount int `json:"iter" yaml:"trial_count"`
}

// DefaultConfig returns a single-worker, single-call, single-trial config.
//
// Outputs:
//   - Config: {ThreadCount: 1, PerThreadRepetitions: 1, TrialCount: 1}.
func DefaultConfig() Config {
	return Config{
		ThreadCount:          1,
		PerThreadRepetitions: 1,
		TrialCount:           1,
	}
}

// Validate checks that every field is positive.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig and names the offending field, or nil.
//
// Example:
//
//	cfg := Config{ThreadCount: 0, PerThreadRepetitions: 1, TrialCount: 1}
//	err := cfg.Validate() // "invalid benchmark configuration: thread count must be positive, got 0"
func (c Config) Validate() error {
	if c.ThreadCount < 1 {
		return fmt.Errorf("%w: thread count must be positive, got %d", ErrInvalidConfig, c.ThreadCount)
	}
	if c.PerThreadRepetitions < 1 {
		return fmt.Errorf("%w: per-thread repetitions must be positive, got %d", ErrInvalidConfig, c.PerThreadRepetitions)
	}
	if c.TrialCount < 1 {
		return fmt.Errorf("%w: trial count must be positive, got %d", ErrInvalidConfig, c.TrialCount)
	}
	return nil
}

// CallsPerTrial returns ThreadCount × PerThreadRepetitions.
func (c Config) CallsPerTrial() int {
	return c.ThreadCount * c.PerThreadRepetitions
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// Result is the summary of one benchmark run.
//
// Description:
//
//	Result echoes the workload, its arguments, and the configuration that
//	produced it, together with the mean and sample variance of the per-trial
//	elapsed times in seconds. The embedded Config is flattened in JSON so the
//	encoded form carries the keys fun, args, n_threads, seq_iter, iter, mean
//	and variance.
//
// Thread Safety: Immutable after Run returns; safe for concurrent read access.
// Consumers must not modify it.
type Result struct {
	// Workload is the benchmarked workload's name.
	Workload string `json:"fun"`

	// Args are the arguments the workload was called with.
	Args []any `json:"args"`

	// Config is the configuration that produced this result.
	Config

	// MeanTime is the arithmetic mean of the trial timings in seconds.
	MeanTime float64 `json:"mean"`

	// VarianceTime is the sample variance of the trial timings in seconds².
	// Exactly zero when TrialCount is 1.
	VarianceTime float64 `json:"variance"`

	// Stats holds additional descriptive statistics of the trial timings.
	Stats Summary `json:"stats"`

	// TotalCalls is the number of workload calls made across all trials.
	TotalCalls int `json:"total_calls"`

	// Timestamp is when the run finished (Unix milliseconds UTC).
	Timestamp int64 `json:"timestamp"`

	// Samples holds the raw trial timings when WithRawSamples is set.
	Samples []time.Duration `json:"samples,omitempty"`
}

// Identifier returns "<workload>_<args>_<threadCount>_<perThreadRepetitions>".
//
// Example:
//
//	r.Identifier() // "just_wait_(5,)_4_4"
func (r *Result) Identifier() string {
	return fmt.Sprintf("%s_%s_%d_%d", r.Workload, FormatArgs(r.Args), r.ThreadCount, r.PerThreadRepetitions)
}

// Map returns the result as a key-value mapping.
//
// Outputs:
//   - map[string]any: Keys fun, args, n_threads, seq_iter, iter, mean, variance.
func (r *Result) Map() map[string]any {
	args := make([]any, len(r.Args))
	copy(args, r.Args)
	return map[string]any{
		"fun":       r.Workload,
		"args":      args,
		"n_threads": r.ThreadCount,
		"seq_iter":  r.PerThreadRepetitions,
		"iter":      r.TrialCount,
		"mean":      r.MeanTime,
		"variance":  r.VarianceTime,
	}
}

// Summary holds descriptive statistics of trial timings, in seconds.
type Summary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
}
