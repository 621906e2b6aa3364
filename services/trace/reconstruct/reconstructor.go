// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reconstruct drives the binding search over whole trigger patterns.
//
// The Reconstructor visits the pattern nodes in schedule order. Variables
// resolve their queued obligations; application nodes either resolve the
// obligations their parent queued (the structural branch) or claim one more
// blame term (one branch per compatible term). Surviving hypotheses are
// finalized against the instantiation's blame and bound terms.
package reconstruct

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// Reconstructor searches binding hypotheses for instantiations of one graph.
//
// Thread Safety: Safe for concurrent use. The graph must be frozen.
type Reconstructor struct {
	graph   *term.Graph
	options Options
	logger  *slog.Logger
}

// New creates a Reconstructor for graph.
//
// Example:
//
//	r := reconstruct.New(trace.Graph, reconstruct.WithFirstOnly(true))
//	res, err := r.Reconstruct(ctx, inst)
func New(graph *term.Graph, opts ...Option) *Reconstructor {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Oracle == nil {
		options.Oracle = binding.NewEqualityOracle(graph, 0)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconstructor{
		graph:   graph,
		options: options,
		logger:  logger.With(slog.String("component", "reconstruct")),
	}
}

// Options returns the effective options.
func (r *Reconstructor) Options() Options {
	return r.options
}

// Oracle returns the shared equality oracle.
func (r *Reconstructor) Oracle() *binding.EqualityOracle {
	return r.options.Oracle
}

// Reconstruct searches every way inst's pattern could have matched its
// blame terms.
//
// Description:
//
//	In the default mode the search is breadth first, one pattern node per
//	level, with at most MaxHypotheses live hypotheses per level. In
//	first-only mode the search is depth first and returns as soon as one
//	hypothesis finalizes. A result without hypotheses is not an error.
//
// Inputs:
//
//	ctx - Context for cancellation, checked between search steps.
//	inst - The instantiation. Must carry a pattern.
//
// Outputs:
//
//	*Result - The accepted hypotheses and search statistics.
//	error - Non-nil for invalid input or cancellation.
//
// Errors:
//
//	ErrNilInstantiation - inst is nil
//	ErrNoPattern - inst.Pattern is nil
//	ctx.Err() - the context was cancelled
func (r *Reconstructor) Reconstruct(ctx context.Context, inst *quant.Instantiation) (*Result, error) {
	if inst == nil {
		return nil, ErrNilInstantiation
	}
	if inst.Pattern == nil {
		return nil, fmt.Errorf("%w: instantiation %d", ErrNoPattern, inst.ID)
	}

	ctx, span := startReconstructSpan(ctx, inst)
	defer span.End()

	start := time.Now()
	res := &Result{
		RunID:           uuid.New(),
		InstantiationID: inst.ID,
		Rejected:        make(map[binding.Outcome]int),
	}

	s := newSearch(r, inst, res)
	var err error
	if r.options.FirstOnly {
		err = s.depthFirst(ctx)
	} else {
		err = s.breadthFirst(ctx)
	}
	res.Duration = time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordReconstructMetrics(ctx, res, statusError)
		return nil, err
	}

	status := statusAccepted
	if len(res.Hypotheses) == 0 {
		status = statusRejected
	}
	span.SetAttributes(
		attribute.Int("reconstruct.explored", res.Explored),
		attribute.Int("reconstruct.accepted", len(res.Hypotheses)),
		attribute.Bool("reconstruct.truncated", res.Truncated),
	)
	recordReconstructMetrics(ctx, res, status)

	if res.Truncated {
		r.logger.Warn("hypothesis frontier truncated",
			slog.Int("instantiation", int(inst.ID)),
			slog.Int("max_hypotheses", r.options.MaxHypotheses),
			slog.Int("explored", res.Explored),
		)
	}
	r.logger.Debug("reconstructed instantiation",
		slog.Int("instantiation", int(inst.ID)),
		slog.String("pattern", inst.Pattern.String()),
		slog.Int("accepted", len(res.Hypotheses)),
		slog.Int("explored", res.Explored),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// ReconstructTrace reconstructs every instantiation of tr concurrently and
// stores the best hypothesis of each on Instantiation.Binding.
//
// Description:
//
//	Instantiations run on at most Workers goroutines. Results are returned
//	in the order of tr.Instantiations(). Instantiations without a valid
//	reconstruction keep a nil Binding. The first error cancels the rest.
func (r *Reconstructor) ReconstructTrace(ctx context.Context, tr *quant.Trace) ([]*Result, error) {
	insts := tr.Instantiations()
	results := make([]*Result, len(insts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.options.Workers)

	for i, inst := range insts {
		g.Go(func() error {
			res, err := r.Reconstruct(gctx, inst)
			if err != nil {
				return fmt.Errorf("instantiation %d: %w", inst.ID, err)
			}
			results[i] = res
			if best, err := res.Best(); err == nil {
				inst.Binding = best
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("reconstructed trace",
		slog.Int("instantiations", len(insts)),
		slog.Int("workers", r.options.Workers),
	)
	return results, nil
}

// =============================================================================
// SEARCH
// =============================================================================

// search holds the per-instantiation state of one Reconstruct call.
type search struct {
	r        *Reconstructor
	inst     *quant.Instantiation
	res      *Result
	schedule []*binding.PatternNode

	// appsFrom[i] counts application nodes in schedule[i:]; a hypothesis
	// with more unused blame terms than that can never finalize.
	appsFrom []int
}

func newSearch(r *Reconstructor, inst *quant.Instantiation, res *Result) *search {
	schedule := inst.Pattern.Schedule()
	appsFrom := make([]int, len(schedule)+1)
	for i := len(schedule) - 1; i >= 0; i-- {
		appsFrom[i] = appsFrom[i+1]
		if !schedule[i].IsVariable() {
			appsFrom[i]++
		}
	}
	return &search{r: r, inst: inst, res: res, schedule: schedule, appsFrom: appsFrom}
}

func (s *search) root() *binding.BindingInfo {
	s.res.Explored++
	return binding.New(s.r.graph, s.inst.Pattern, s.inst.Blame, binding.WithOracle(s.r.options.Oracle))
}

// expand returns the successors of h at schedule position i, pruned.
func (s *search) expand(h *binding.BindingInfo, i int) []*binding.BindingInfo {
	node := s.schedule[i]
	var next []*binding.BindingInfo
	if !node.IsVariable() && h.HasOutstanding(node) {
		if structural := h.Propagate(node); structural != nil {
			next = append(next, structural)
		}
	}
	next = append(next, h.AllNextMatches(node)...)
	s.res.Explored += len(next)

	kept := next[:0]
	for _, n := range next {
		if n.UnusedCount() <= s.appsFrom[i+1] {
			kept = append(kept, n)
		}
	}
	return kept
}

func (s *search) finalize(h *binding.BindingInfo) bool {
	outcome := h.FinalizeOutcome(s.inst.Blame, s.inst.Bound)
	if outcome != binding.OutcomeAccepted {
		s.res.Rejected[outcome]++
		return false
	}
	s.res.Hypotheses = append(s.res.Hypotheses, h)
	return true
}

func (s *search) breadthFirst(ctx context.Context) error {
	frontier := []*binding.BindingInfo{s.root()}
	limit := s.r.options.MaxHypotheses

	for i := range s.schedule {
		if err := ctx.Err(); err != nil {
			return err
		}
		var next []*binding.BindingInfo
		for _, h := range frontier {
			next = append(next, s.expand(h, i)...)
			if len(next) > limit {
				next = next[:limit]
				s.res.Truncated = true
				break
			}
		}
		frontier = next
		if len(frontier) == 0 {
			return nil
		}
	}

	for _, h := range frontier {
		s.finalize(h)
	}
	return nil
}

func (s *search) depthFirst(ctx context.Context) error {
	budget := s.r.options.MaxHypotheses * max(len(s.schedule), 1)

	var walk func(h *binding.BindingInfo, i int) (bool, error)
	walk = func(h *binding.BindingInfo, i int) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if i == len(s.schedule) {
			return s.finalize(h), nil
		}
		if s.res.Explored >= budget {
			s.res.Truncated = true
			return false, nil
		}
		for _, child := range s.expand(h, i) {
			done, err := walk(child, i+1)
			if err != nil || done {
				return done, err
			}
		}
		return false, nil
	}

	_, err := walk(s.root(), 0)
	return err
}
