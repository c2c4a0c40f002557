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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/benchsweep/services/bench/sink"
	store "github.com/AleutianAI/benchsweep/services/bench/storage/badger"
)

// errNoStore is returned by history when no store path is configured.
var errNoStore = errors.New("no result store: pass --store or set output.store_path")

// runHistory implements "benchsweep history [run-id]".
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Output.StorePath == "" {
		return errNoStore
	}

	db, err := store.Open(store.DefaultConfig(cfg.Output.StorePath))
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := sink.ListRuns(ctx, db)
		if err != nil {
			return err
		}
		for _, id := range runs {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	results, err := sink.ListResults(ctx, db, args[0])
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("run %s not found in %s", args[0], cfg.Output.StorePath)
	}
	printResults(out, results)
	return nil
}
