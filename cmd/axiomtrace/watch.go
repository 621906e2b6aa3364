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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AxiomTrace/services/trace/scenario"
	"github.com/AleutianAI/AxiomTrace/services/trace/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "watch FILE|DIR...",
		Short: "Re-run reconstruction whenever a scenario file changes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := a.newEngine(false)
			if err != nil {
				return err
			}
			p := a.printer(cmd)
			logger := a.logger.Slog()

			run := func(ctx context.Context, paths []string) {
				for _, path := range paths {
					doc, err := scenario.Load(path)
					if err != nil {
						p.Error("%s: %v", path, err)
						continue
					}
					rep, err := e.Reconstruct(ctx, doc, rf.options(cmd))
					if err != nil {
						p.Error("%s: %v", path, err)
						continue
					}
					if rf.json {
						if err := writeJSON(p.Writer(), rep); err != nil {
							logger.Warn("writing report", slog.String("error", err.Error()))
						}
						continue
					}
					printReport(p, rep)
				}
			}

			opts := watch.DefaultOptions()
			opts.Logger = logger
			w, err := watch.New(args, run, opts)
			if err != nil {
				return err
			}

			run(cmd.Context(), w.Files())
			p.Info("watching %d target(s), press Ctrl-C to stop", len(args))
			return w.Run(cmd.Context())
		},
	}

	rf.register(cmd)
	return cmd
}
