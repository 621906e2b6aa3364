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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AxiomTrace/services/trace/api"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		noStore bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reconstruction API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}

			e, closeStore, err := a.newEngine(!noStore)
			if err != nil {
				return err
			}
			defer closeStore()

			logger := a.logger.Slog()
			s := api.NewServer(e, cfg,
				api.WithLogger(logger),
				api.WithVersion(version),
				api.WithServiceName(a.cfg.Telemetry.ServiceName),
			)
			logger.Info("starting axiomtrace server",
				slog.String("address", cfg.Addr),
				slog.Bool("store", e.HasStore()),
			)
			return s.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "run without the result store")
	return cmd
}
