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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/benchsweep/services/bench/benchmark"
)

// resultPrefix is the key prefix for every stored result.
const resultPrefix = "result/"

// BadgerSink persists results in BadgerDB.
//
// Description:
//
//	Each result is stored as JSON under result/<runID>/<identifier>. The
//	run ID is generated once per sink, so every result of one sweep shares
//	it and earlier sweeps in the same database stay intact.
//
//	The sink does not own db. Close stops recording but leaves db open.
//
// Thread Safety: Safe for concurrent use.
type BadgerSink struct {
	db    *badger.DB
	runID string

	mu     sync.RWMutex
	closed bool
}

// NewBadgerSink creates a sink writing to db under a fresh run ID.
func NewBadgerSink(db *badger.DB) *BadgerSink {
	return NewBadgerSinkWithRunID(db, uuid.NewString())
}

// NewBadgerSinkWithRunID creates a sink writing to db under runID.
func NewBadgerSinkWithRunID(db *badger.DB, runID string) *BadgerSink {
	return &BadgerSink{db: db, runID: runID}
}

// RunID returns the run ID results are stored under.
func (b *BadgerSink) RunID() string {
	return b.runID
}

func resultKey(runID, id string) []byte {
	return []byte(resultPrefix + runID + "/" + id)
}

// Record stores r.
func (b *BadgerSink) Record(ctx context.Context, r *benchmark.Result) error {
	if err := checkArgs(ctx, r); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrSinkClosed
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrSinkFailed, r.Identifier(), err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(resultKey(b.runID, r.Identifier()), data)
	})
	if err != nil {
		return fmt.Errorf("%w: store %s: %w", ErrSinkFailed, r.Identifier(), err)
	}
	return nil
}

// List returns the results stored under runID, ordered by identifier.
//
// Args decode as JSON values, so integer arguments come back as float64.
func (b *BadgerSink) List(ctx context.Context, runID string) ([]*benchmark.Result, error) {
	return ListResults(ctx, b.db, runID)
}

// ListResults returns the results stored in db under runID.
func ListResults(ctx context.Context, db *badger.DB, runID string) ([]*benchmark.Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	prefix := []byte(resultPrefix + runID + "/")
	var results []*benchmark.Result

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var r benchmark.Result
				if err := json.Unmarshal(val, &r); err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				results = append(results, &r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list run %s: %w", runID, err)
	}
	return results, nil
}

// ListRuns returns the distinct run IDs stored in db, sorted.
func ListRuns(ctx context.Context, db *badger.DB) ([]string, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	seen := make(map[string]struct{})
	prefix := []byte(resultPrefix)

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := bytes.TrimPrefix(it.Item().Key(), prefix)
			if i := bytes.IndexByte(rest, '/'); i > 0 {
				seen[string(rest[:i])] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]string, 0, len(seen))
	for id := range seen {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}

// Close stops recording. The database stays open.
func (b *BadgerSink) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

var _ Sink = (*BadgerSink)(nil)
