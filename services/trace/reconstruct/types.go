// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reconstruct

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// Default configuration values.
const (
	// DefaultMaxHypotheses caps the search frontier per pattern level.
	DefaultMaxHypotheses = 4096
)

// Options configures a Reconstructor.
type Options struct {
	// MaxHypotheses caps the number of live hypotheses kept per pattern
	// node. In first-only mode it also bounds the depth-first search to
	// MaxHypotheses expansions per pattern node.
	// Default: 4096
	MaxHypotheses int

	// FirstOnly stops at the first hypothesis that finalizes.
	// Default: false
	FirstOnly bool

	// Workers bounds the instantiations reconstructed concurrently by
	// ReconstructTrace.
	// Default: runtime.NumCPU()
	Workers int

	// Oracle is shared by all hypotheses. Default: a new oracle over the graph.
	Oracle *binding.EqualityOracle

	// Logger receives debug and warning output. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxHypotheses: DefaultMaxHypotheses,
		Workers:       runtime.NumCPU(),
	}
}

// Option is a functional option for configuring a Reconstructor.
type Option func(*Options)

// WithMaxHypotheses sets the frontier cap. Non-positive values keep the default.
func WithMaxHypotheses(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxHypotheses = n
		}
	}
}

// WithFirstOnly enables early exit at the first valid hypothesis.
func WithFirstOnly(first bool) Option {
	return func(o *Options) {
		o.FirstOnly = first
	}
}

// WithWorkers sets the concurrency of ReconstructTrace.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithOracle shares an existing equality oracle.
func WithOracle(oracle *binding.EqualityOracle) Option {
	return func(o *Options) {
		o.Oracle = oracle
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Result is the outcome of reconstructing one instantiation.
type Result struct {
	// RunID identifies this reconstruction run.
	RunID uuid.UUID

	InstantiationID term.InstID

	// Hypotheses are the hypotheses that finalized, in discovery order.
	Hypotheses []*binding.BindingInfo

	// Explored counts every hypothesis created during the search.
	Explored int

	// Rejected counts finalization failures by outcome.
	Rejected map[binding.Outcome]int

	// Truncated is true when the frontier cap dropped hypotheses.
	Truncated bool

	Duration time.Duration
}

// Best returns the accepted hypothesis with the fewest recorded equalities,
// the earliest one on ties.
//
// Errors:
//
//	ErrNoReconstruction - no hypothesis was accepted
func (r *Result) Best() (*binding.BindingInfo, error) {
	if len(r.Hypotheses) == 0 {
		return nil, ErrNoReconstruction
	}
	best := r.Hypotheses[0]
	bestEqs := equalityCount(best)
	for _, h := range r.Hypotheses[1:] {
		if n := equalityCount(h); n < bestEqs {
			best, bestEqs = h, n
		}
	}
	return best, nil
}

// Ambiguous reports whether more than one hypothesis was accepted.
func (r *Result) Ambiguous() bool {
	return len(r.Hypotheses) > 1
}

func equalityCount(h *binding.BindingInfo) int {
	n := 0
	for _, eqs := range h.Equalities() {
		n += len(eqs)
	}
	return n
}
