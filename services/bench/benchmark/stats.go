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
	"math"
	"slices"
	"time"
)

// -----------------------------------------------------------------------------
// Statistics Functions
// -----------------------------------------------------------------------------

// Mean returns the arithmetic mean of the samples in seconds.
//
// Outputs:
//   - float64: The mean, or 0 for an empty slice.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func Mean(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Seconds()
	}
	return sum / float64(len(samples))
}

// SampleVariance returns the sample variance (n-1 denominator) in seconds².
//
// Description:
//
//	Variance is undefined for fewer than two samples. Instead of dividing by
//	zero, SampleVariance returns exactly 0 in that case.
//
// Inputs:
//   - samples: Duration samples.
//
// Outputs:
//   - float64: The sample variance, never negative.
//
// Thread Safety: This function is stateless and safe for concurrent use.
//
// Example:
//
//	SampleVariance([]time.Duration{time.Second})                 // 0
//	SampleVariance([]time.Duration{time.Second, 3 * time.Second}) // 2
func SampleVariance(samples []time.Duration) float64 {
	if len(samples) < 2 {
		return 0
	}
	mean := Mean(samples)
	var sumSquaredDiff float64
	for _, s := range samples {
		diff := s.Seconds() - mean
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(len(samples)-1)
}

// Summarize computes min, max, median and standard deviation of the samples.
//
// Inputs:
//   - samples: Duration samples. Must not be empty.
//
// Outputs:
//   - Summary: Statistics in seconds.
//   - error: ErrNoSamples if samples is empty.
//
// Thread Safety: This function is stateless and safe for concurrent use.
func Summarize(samples []time.Duration) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, ErrNoSamples
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	return Summary{
		Min:    sorted[0].Seconds(),
		Max:    sorted[len(sorted)-1].Seconds(),
		Median: Percentile(sorted, 0.5).Seconds(),
		StdDev: math.Sqrt(SampleVariance(samples)),
	}, nil
}

// Percentile returns the p-th percentile of sorted samples using linear
// interpolation. The input must already be sorted in ascending order.
func Percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	fraction := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-fraction) + float64(sorted[upper])*fraction)
}
