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
)

func newHistoryCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [SCENARIO]",
		Short: "List saved reconstruction results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}

			e, closeStore, err := a.newEngine(true)
			if err != nil {
				return err
			}
			defer closeStore()

			recs, err := e.History(cmd.Context(), name)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}

			p := a.printer(cmd)
			if len(recs) == 0 {
				p.Info("no saved results")
				return nil
			}
			items := make([]string, len(recs))
			for i, r := range recs {
				status := "found"
				if !r.Summary.Found {
					status = "missing"
				}
				items[i] = fmt.Sprintf("%s  #%d  %-7s  %s  %s",
					r.Scenario, r.Summary.InstantiationID, status,
					r.SavedAt.Format("2006-01-02 15:04:05"), r.Summary.Pattern)
			}
			p.Heading("Saved results:")
			p.List(items)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON instead of text")
	return cmd
}
