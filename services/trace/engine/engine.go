// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs binding reconstruction and path explanation over
// loaded scenarios. It is shared by the CLI and the HTTP API.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/cache"
	"github.com/AleutianAI/AxiomTrace/services/trace/config"
	"github.com/AleutianAI/AxiomTrace/services/trace/path"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
	"github.com/AleutianAI/AxiomTrace/services/trace/reconstruct"
	"github.com/AleutianAI/AxiomTrace/services/trace/scenario"
	"github.com/AleutianAI/AxiomTrace/services/trace/store"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// scenarioCacheSize bounds the built scenarios kept for reuse.
const scenarioCacheSize = 32

var (
	// ErrUnknownInstantiation is returned when a requested instantiation
	// is not in the scenario.
	ErrUnknownInstantiation = errors.New("unknown instantiation")

	// ErrNoStore is returned by history and save operations when the
	// engine has no result store.
	ErrNoStore = errors.New("result store is not configured")
)

// Engine owns the caches shared by every run.
//
// Thread Safety: safe for concurrent use.
type Engine struct {
	cfg     config.EngineConfig
	logger  *slog.Logger
	store   *store.Store
	results *reconstruct.Cache

	// scenarios maps a document digest to its built form, so identical
	// documents share one term graph and equality oracle.
	scenarios *cache.LRU[string, *loaded]
}

type loaded struct {
	sc     *scenario.Scenario
	oracle *binding.EqualityOracle
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore enables saving and history.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine.
func New(cfg config.EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		logger:    slog.Default(),
		results:   reconstruct.NewCache(cfg.ResultCacheSize),
		scenarios: cache.NewLRU[string, *loaded](scenarioCacheSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(slog.String("component", "engine"))
	return e
}

// HasStore reports whether a result store is configured.
func (e *Engine) HasStore() bool {
	return e.store != nil
}

// Load builds doc, reusing an earlier build of the same document.
func (e *Engine) Load(doc *scenario.Document) (*scenario.Scenario, error) {
	l, err := e.load(doc)
	if err != nil {
		return nil, err
	}
	return l.sc, nil
}

func (e *Engine) load(doc *scenario.Document) (*loaded, error) {
	digest := doc.Digest()
	if digest != "" {
		if l, ok := e.scenarios.Get(digest); ok {
			return l, nil
		}
	}

	var opts []term.GraphOption
	if e.cfg.MaxTerms > 0 {
		opts = append(opts, term.WithMaxTerms(e.cfg.MaxTerms))
	}
	sc, err := doc.Build(opts...)
	if err != nil {
		return nil, err
	}
	l := &loaded{sc: sc, oracle: binding.NewEqualityOracle(sc.Graph, e.cfg.OracleCacheSize)}
	if digest != "" {
		e.scenarios.Add(digest, l)
	}
	e.logger.Debug("scenario built",
		slog.String("scenario", sc.Name),
		slog.Int("terms", sc.Graph.Len()),
		slog.Int("instantiations", sc.Trace.Len()),
	)
	return l, nil
}

// RunOptions selects what a run does. The zero value reconstructs every
// instantiation with the engine defaults.
type RunOptions struct {
	// FirstOnly overrides the configured first-only mode when non-nil.
	FirstOnly *bool

	// MaxHypotheses overrides the configured frontier cap when positive.
	MaxHypotheses int

	// Instantiations restricts the run. Empty means all.
	Instantiations []term.InstID

	// Save stores each summary in the result store.
	Save bool
}

// Report is the outcome of one reconstruction run.
type Report struct {
	Scenario       string                `json:"scenario"`
	Digest         string                `json:"digest,omitempty"`
	Results        []reconstruct.Summary `json:"results"`
	Saved          int                   `json:"saved"`
	DurationMicros int64                 `json:"duration_us"`
}

// Reconstruct reconstructs the selected instantiations of doc.
func (e *Engine) Reconstruct(ctx context.Context, doc *scenario.Document, ro RunOptions) (*Report, error) {
	if ro.Save && e.store == nil {
		return nil, ErrNoStore
	}
	start := time.Now()

	l, err := e.load(doc)
	if err != nil {
		return nil, err
	}
	insts, err := selectInstantiations(l.sc.Trace, ro.Instantiations)
	if err != nil {
		return nil, err
	}
	results, err := e.run(ctx, l, insts, ro)
	if err != nil {
		return nil, err
	}

	rep := &Report{Scenario: l.sc.Name, Digest: l.sc.Digest}
	for i, inst := range insts {
		rep.Results = append(rep.Results, reconstruct.Summarize(l.sc.Graph, inst, results[i]))
	}

	if ro.Save {
		for _, sum := range rep.Results {
			rec := &store.Record{Scenario: l.sc.Name, Digest: l.sc.Digest, Summary: sum}
			if err := e.store.Put(ctx, rec); err != nil {
				return nil, fmt.Errorf("saving instantiation %d: %w", sum.InstantiationID, err)
			}
			rep.Saved++
		}
	}

	rep.DurationMicros = time.Since(start).Microseconds()
	e.logger.Info("reconstruction finished",
		slog.String("scenario", rep.Scenario),
		slog.Int("instantiations", len(rep.Results)),
		slog.Int("saved", rep.Saved),
		slog.Int64("duration_us", rep.DurationMicros),
	)
	return rep, nil
}

// PathStat counts the instantiations of one quantifier and trigger on a
// path.
type PathStat struct {
	Quantifier string `json:"quantifier"`
	Pattern    string `json:"pattern"`
	Count      int    `json:"count"`
}

// PathReport explains one declared instantiation path.
type PathReport struct {
	Index       int              `json:"index"`
	Length      int              `json:"length"`
	Cost        float64          `json:"cost"`
	Statistics  []PathStat       `json:"statistics"`
	Explanation path.Explanation `json:"explanation"`
	Text        string           `json:"text"`
}

// Explain reconstructs the instantiations on doc's paths and explains
// each path. Instantiations without a reconstruction are explained from
// their logged blame and bound terms.
func (e *Engine) Explain(ctx context.Context, doc *scenario.Document, ro RunOptions) ([]PathReport, error) {
	l, err := e.load(doc)
	if err != nil {
		return nil, err
	}

	seen := make(map[term.InstID]struct{})
	var insts []*quant.Instantiation
	for _, p := range l.sc.Paths {
		for _, inst := range p.Instantiations() {
			if _, dup := seen[inst.ID]; !dup {
				seen[inst.ID] = struct{}{}
				insts = append(insts, inst)
			}
		}
	}
	results, err := e.run(ctx, l, insts, ro)
	if err != nil {
		return nil, err
	}

	// The built scenario is shared, so bindings go on copies.
	bound := make(map[term.InstID]*quant.Instantiation, len(insts))
	for i, inst := range insts {
		cp := *inst
		cp.Binding = nil
		if best, err := results[i].Best(); err == nil {
			cp.Binding = best
		}
		bound[inst.ID] = &cp
	}

	reports := make([]PathReport, 0, len(l.sc.Paths))
	for i, p := range l.sc.Paths {
		bp := path.New()
		for _, inst := range p.Instantiations() {
			bp.Append(bound[inst.ID])
		}
		ex := bp.Explain(l.sc.Graph)

		var buf bytes.Buffer
		if err := ex.Render(&buf, l.sc.Graph); err != nil {
			return nil, fmt.Errorf("rendering path %d: %w", i, err)
		}
		var stats []PathStat
		for _, st := range bp.Statistics() {
			ps := PathStat{Count: st.Count}
			if st.Quantifier != nil {
				ps.Quantifier = st.Quantifier.Name
			}
			if st.Pattern != nil {
				ps.Pattern = st.Pattern.String()
			}
			stats = append(stats, ps)
		}
		reports = append(reports, PathReport{
			Index:       i,
			Length:      bp.Length(),
			Cost:        bp.Cost(),
			Statistics:  stats,
			Explanation: ex,
			Text:        buf.String(),
		})
	}
	return reports, nil
}

// History returns the stored results of scenario, or of every scenario
// when name is empty.
func (e *Engine) History(ctx context.Context, name string) ([]*store.Record, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	return e.store.List(ctx, name)
}

// Stats reports cache counters.
type Stats struct {
	Results   cache.Stats `json:"results"`
	Scenarios cache.Stats `json:"scenarios"`
}

// Stats returns the engine's cache counters.
func (e *Engine) Stats() Stats {
	return Stats{Results: e.results.Stats(), Scenarios: e.scenarios.Stats()}
}

// Invalidate forgets a document's built scenario and the results cached
// under the configured hypothesis cap. Results of runs with an overridden
// cap age out of the LRU.
func (e *Engine) Invalidate(digest string) {
	l, ok := e.scenarios.Peek(digest)
	if !ok {
		return
	}
	e.scenarios.Remove(digest)
	for _, inst := range l.sc.Trace.Instantiations() {
		for _, first := range []bool{false, true} {
			prefix := traceKey(digest, first, e.cfg.MaxHypotheses)
			e.results.Invalidate(reconstruct.Key(prefix, inst))
		}
	}
}

func selectInstantiations(tr *quant.Trace, ids []term.InstID) ([]*quant.Instantiation, error) {
	if len(ids) == 0 {
		return tr.Instantiations(), nil
	}
	out := make([]*quant.Instantiation, 0, len(ids))
	for _, id := range ids {
		inst, ok := tr.Instantiation(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownInstantiation, id)
		}
		out = append(out, inst)
	}
	return out, nil
}

func traceKey(digest string, firstOnly bool, maxHypotheses int) string {
	return fmt.Sprintf("%s/first=%t/max=%d", digest, firstOnly, maxHypotheses)
}

// run reconstructs insts on a bounded worker pool. Results are indexed
// like insts.
func (e *Engine) run(ctx context.Context, l *loaded, insts []*quant.Instantiation, ro RunOptions) ([]*reconstruct.Result, error) {
	firstOnly := e.cfg.FirstOnly
	if ro.FirstOnly != nil {
		firstOnly = *ro.FirstOnly
	}
	maxHyp := e.cfg.MaxHypotheses
	if ro.MaxHypotheses > 0 {
		maxHyp = ro.MaxHypotheses
	}
	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	r := reconstruct.New(l.sc.Graph,
		reconstruct.WithMaxHypotheses(maxHyp),
		reconstruct.WithFirstOnly(firstOnly),
		reconstruct.WithOracle(l.oracle),
		reconstruct.WithLogger(e.logger),
	)
	key := traceKey(l.sc.Digest, firstOnly, maxHyp)

	results := make([]*reconstruct.Result, len(insts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, inst := range insts {
		g.Go(func() error {
			var (
				res *reconstruct.Result
				err error
			)
			if l.sc.Digest == "" {
				res, err = r.Reconstruct(gctx, inst)
			} else {
				res, err = e.results.Reconstruct(gctx, r, key, inst)
			}
			if err != nil {
				return fmt.Errorf("instantiation %d: %w", inst.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
