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

	"github.com/AleutianAI/AxiomTrace/pkg/ux"
	"github.com/AleutianAI/AxiomTrace/services/trace/engine"
	"github.com/AleutianAI/AxiomTrace/services/trace/scenario"
)

func newPathsCmd(a *app) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "paths FILE",
		Short: "Explain the instantiation paths declared in a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			e, _, err := a.newEngine(false)
			if err != nil {
				return err
			}

			reports, err := e.Explain(cmd.Context(), doc, rf.options(cmd))
			if err != nil {
				return err
			}
			if rf.json {
				if reports == nil {
					reports = []engine.PathReport{}
				}
				return writeJSON(cmd.OutOrStdout(), reports)
			}

			p := a.printer(cmd)
			if len(reports) == 0 {
				p.Warning("scenario %s declares no paths", doc.Name)
				return nil
			}
			for _, r := range reports {
				printPath(p, r)
			}
			return nil
		},
	}

	rf.register(cmd)
	return cmd
}

func printPath(p *ux.Printer, r engine.PathReport) {
	title := fmt.Sprintf("Path %d  (length %d, cost %.2f)", r.Index, r.Length, r.Cost)
	p.Box(title, r.Text)

	if len(r.Statistics) == 0 {
		return
	}
	p.Heading("Instantiations per quantifier:")
	items := make([]string, len(r.Statistics))
	for i, s := range r.Statistics {
		items[i] = fmt.Sprintf("%-4d %s  %s", s.Count, s.Quantifier, s.Pattern)
	}
	p.List(items)
	fmt.Fprintln(p.Writer())
}
