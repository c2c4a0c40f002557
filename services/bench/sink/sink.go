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
	"fmt"
	"sync"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrSinkFailed indicates that a sink could not record a result.
	ErrSinkFailed = errors.New("sink failed")

	// ErrSinkClosed is returned when recording to a closed sink.
	ErrSinkClosed = errors.New("sink is closed")

	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilResult is returned when a nil result is passed.
	ErrNilResult = errors.New("result must not be nil")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Sink consumes benchmark results.
//
// Record must not modify r. Close releases resources; Record after Close
// returns ErrSinkClosed.
type Sink interface {
	Record(ctx context.Context, r *benchmark.Result) error
	Close() error
}

// checkArgs validates the arguments common to every Record implementation.
func checkArgs(ctx context.Context, r *benchmark.Result) error {
	if ctx == nil {
		return ErrNilContext
	}
	if r == nil {
		return ErrNilResult
	}
	return nil
}

// -----------------------------------------------------------------------------
// Func
// -----------------------------------------------------------------------------

// Func adapts a plain function to the Sink interface. Close is a no-op.
type Func func(ctx context.Context, r *benchmark.Result) error

// Record calls f.
func (f Func) Record(ctx context.Context, r *benchmark.Result) error {
	return f(ctx, r)
}

// Close does nothing.
func (f Func) Close() error { return nil }

// Discard is a Sink that drops every result.
var Discard Sink = Func(func(context.Context, *benchmark.Result) error { return nil })

// -----------------------------------------------------------------------------
// Composite
// -----------------------------------------------------------------------------

// Composite fans each result out to several sinks in order.
//
// Description:
//
//	Record stops at the first failing sink and returns its error wrapped
//	with ErrSinkFailed and the failing sink's position. Close closes every
//	sink and joins their errors.
//
// Thread Safety: Safe for concurrent use if the wrapped sinks are.
type Composite struct {
	sinks []Sink

	mu     sync.RWMutex
	closed bool
}

// NewComposite creates a composite over sinks. Nil entries are skipped.
func NewComposite(sinks ...Sink) *Composite {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Composite{sinks: kept}
}

// Len returns the number of wrapped sinks.
func (c *Composite) Len() int {
	return len(c.sinks)
}

// Record forwards r to each sink until one fails.
func (c *Composite) Record(ctx context.Context, r *benchmark.Result) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrSinkClosed
	}

	for i, s := range c.sinks {
		if err := s.Record(ctx, r); err != nil {
			if errors.Is(err, ErrSinkFailed) {
				return err
			}
			return fmt.Errorf("%w: sink %d (%T): %w", ErrSinkFailed, i, s, err)
		}
	}
	return nil
}

// Close closes every wrapped sink. Calling Close twice is a no-op.
func (c *Composite) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for _, s := range c.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = Func(nil)
	_ Sink = (*Composite)(nil)
)
