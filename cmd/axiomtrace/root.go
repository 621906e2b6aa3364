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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AxiomTrace/pkg/logging"
	"github.com/AleutianAI/AxiomTrace/pkg/ux"
	"github.com/AleutianAI/AxiomTrace/services/trace/config"
	"github.com/AleutianAI/AxiomTrace/services/trace/engine"
	"github.com/AleutianAI/AxiomTrace/services/trace/storage/badger"
	"github.com/AleutianAI/AxiomTrace/services/trace/store"
	"github.com/AleutianAI/AxiomTrace/services/trace/telemetry"
)

// shutdownTimeout bounds the telemetry flush on exit.
const shutdownTimeout = 5 * time.Second

// app is the state shared by every subcommand once the root command's
// pre-run has loaded configuration.
type app struct {
	configPath string
	logLevel   string

	cfg      config.Config
	logger   *logging.Logger
	shutdown telemetry.ShutdownFunc
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "axiomtrace",
		Short: "Reconstruct quantifier instantiation bindings and explain instantiation paths",
		Long: `axiomtrace reads scenario documents describing a term graph, quantifiers
and their logged instantiations, recovers how each trigger pattern matched
its blamed terms, and explains chains of instantiations.`,
		Version:            version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $"+config.EnvConfigPath+" or the user config directory)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newReconstructCmd(a),
		newPathsCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newInitConfigCmd(a),
	)
	return root
}

func (a *app) path() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.DefaultPath()
}

// setup loads configuration and installs logging and telemetry.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.path())
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(cfg.Logging.Format),
		LogDir:  cfg.Logging.Dir,
		Service: cfg.Telemetry.ServiceName,
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())

	a.shutdown, err = telemetry.Init(cmd.Context(), cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	var errs []error
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, a.shutdown(ctx))
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// newEngine builds an Engine from the loaded config. With withStore the
// result store is opened as well; the returned close func releases it.
func (a *app) newEngine(withStore bool) (*engine.Engine, func() error, error) {
	opts := []engine.Option{engine.WithLogger(a.logger.Slog())}
	closeFn := func() error { return nil }

	if withStore {
		bcfg := badger.DefaultConfig(a.cfg.Store.Path)
		if a.cfg.Store.InMemory {
			bcfg = badger.InMemoryConfig()
		}
		bcfg.Logger = a.logger.Slog()
		st, err := store.Open(bcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("opening result store: %w", err)
		}
		opts = append(opts, engine.WithStore(st))
		closeFn = st.Close
	}
	return engine.New(a.cfg.Engine, opts...), closeFn, nil
}

func (a *app) printer(cmd *cobra.Command) *ux.Printer {
	out := cmd.OutOrStdout()
	return ux.NewPrinter(out, ux.DetectMode(out))
}

// runFlags are the search overrides shared by reconstruct, paths and watch.
type runFlags struct {
	firstOnly     bool
	maxHypotheses int
	json          bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.firstOnly, "first-only", false, "stop at the first valid reconstruction")
	cmd.Flags().IntVar(&f.maxHypotheses, "max-hypotheses", 0, "cap on live hypotheses per pattern node (0 keeps the configured value)")
	cmd.Flags().BoolVar(&f.json, "json", false, "write JSON instead of text")
}

func (f *runFlags) options(cmd *cobra.Command) engine.RunOptions {
	ro := engine.RunOptions{MaxHypotheses: f.maxHypotheses}
	if cmd.Flags().Changed("first-only") {
		first := f.firstOnly
		ro.FirstOnly = &first
	}
	return ro
}
