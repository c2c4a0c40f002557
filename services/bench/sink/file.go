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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

// DefaultResultDir is the directory FileSink writes to when none is given.
const DefaultResultDir = "results"

// FileExt is the extension of result files.
const FileExt = ".txt"

// FileSink writes each result as indented JSON to <Dir>/<identifier>.txt.
//
// Description:
//
//	The file name is Result.Identifier with path separators replaced, so
//	string arguments containing "/" cannot escape Dir. An existing file with
//	the same name is overwritten. Dir is created on first write.
//
// Thread Safety: Safe for concurrent use.
type FileSink struct {
	dir string

	mu     sync.Mutex
	closed bool
	mkdir  bool
}

// NewFileSink creates a sink writing under dir. An empty dir means
// DefaultResultDir.
func NewFileSink(dir string) *FileSink {
	if dir == "" {
		dir = DefaultResultDir
	}
	return &FileSink{dir: dir}
}

// Dir returns the output directory.
func (f *FileSink) Dir() string {
	return f.dir
}

// PathFor returns the file that r is written to.
func (f *FileSink) PathFor(r *benchmark.Result) string {
	return filepath.Join(f.dir, FileName(r))
}

// FileName returns the base file name for r.
func FileName(r *benchmark.Result) string {
	name := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(r.Identifier())
	return name + FileExt
}

// Record writes r to its file.
func (f *FileSink) Record(ctx context.Context, r *benchmark.Result) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}

	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrSinkFailed, r.Identifier(), err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrSinkClosed
	}
	if !f.mkdir {
		if err := os.MkdirAll(f.dir, 0750); err != nil {
			return fmt.Errorf("%w: create result directory %s: %w", ErrSinkFailed, f.dir, err)
		}
		f.mkdir = true
	}

	path := f.PathFor(r)
	if err := os.WriteFile(path, append(data, '\n'), 0640); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrSinkFailed, path, err)
	}
	return nil
}

// Close marks the sink closed.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ Sink = (*FileSink)(nil)
