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
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AxiomTrace/pkg/ux"
	"github.com/AleutianAI/AxiomTrace/services/trace/engine"
	"github.com/AleutianAI/AxiomTrace/services/trace/reconstruct"
	"github.com/AleutianAI/AxiomTrace/services/trace/scenario"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

func newReconstructCmd(a *app) *cobra.Command {
	var (
		rf   runFlags
		ids  []int
		save  bool
	)

	cmd := &cobra.Command{
		Use:   "reconstruct FILE",
		Short: "Reconstruct the bindings of every instantiation in a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			e, closeStore, err := a.newEngine(save)
			if err != nil {
				return err
			}
			defer closeStore()

			ro := rf.options(cmd)
			ro.Save = save
			for _, id := range ids {
				ro.Instantiations = append(ro.Instantiations, term.InstID(id))
			}

			rep, err := e.Reconstruct(cmd.Context(), doc, ro)
			if err != nil {
				return err
			}
			if rf.json {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			printReport(a.printer(cmd), rep)
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().IntSliceVar(&ids, "instantiation", nil, "instantiation ids to reconstruct (default all)")
	cmd.Flags().BoolVar(&save, "save", false, "store the results in the result store")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes a human readable report of one reconstruction run.
func printReport(p *ux.Printer, rep *engine.Report) {
	p.Title("Scenario " + rep.Scenario)

	found := 0
	for _, s := range rep.Results {
		if s.Found {
			found++
		}
		printSummary(p, s)
	}
	p.Counts(found, len(rep.Results)-found, len(rep.Results))
	if rep.Saved > 0 {
		p.Info("saved %d result(s)", rep.Saved)
	}
}

func printSummary(p *ux.Printer, s reconstruct.Summary) {
	label := fmt.Sprintf("instantiation %d", s.InstantiationID)
	if s.Quantifier != "" {
		label += " of " + s.Quantifier
	}
	if s.Found {
		p.Success("%s: %s", label, s.Pattern)
	} else {
		p.Warning("%s: no reconstruction for %s", label, s.Pattern)
	}

	p.Field("accepted", s.Accepted)
	p.Field("explored", s.Explored)
	if s.Truncated {
		p.Warning("hypothesis frontier truncated")
	}
	if len(s.Rejected) > 0 {
		p.Field("rejected", formatRejected(s.Rejected))
	}
	if !s.Found {
		return
	}

	p.Heading("Starting terms:")
	p.List(s.StartingTerms)

	if len(s.Bindings) > 0 {
		p.Heading("Bindings:")
		items := make([]string, len(s.Bindings))
		for i, b := range s.Bindings {
			items[i] = b.Pattern + " := " + b.Term
		}
		p.List(items)
	}
	if len(s.Equalities) > 0 {
		p.Heading("Equalities:")
		items := make([]string, len(s.Equalities))
		for i, eq := range s.Equalities {
			items[i] = eq.Current + " = " + strings.Join(eq.Old, " = ") + "  [" + eq.Pattern + "]"
		}
		p.List(items)
	}
}

func formatRejected(m map[string]int) string {
	var parts []string
	for _, o := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%d", o, m[o]))
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}
