// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package binding reconstructs how a trigger pattern matched the blame terms
// of a quantifier instantiation.
//
// A BindingInfo is one hypothesis. AllNextMatches branches it over the
// compatible blame terms for a pattern node, returning independent clones;
// Finalize checks a completed hypothesis against the instantiation's bound
// terms, proving missing variable bindings through the EqualityOracle.
//
// # Thread Safety
//
// A BindingInfo is not safe for concurrent use. Clone freezes the
// receiver's pending writes into a shared layer, so it writes to the
// receiver: cloning one hypothesis from two goroutines at once is a data
// race. Hypotheses returned by separate Clone calls share only frozen state
// and may then be used from different goroutines.
package binding

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// Path is an ancestor chain of ground terms, outermost first.
type Path []term.ID

// obligation is a (term, context) pair queued against a pattern node that
// has not been visited yet.
type obligation struct {
	term    term.ID
	context []Path
}

// BindingInfo is a hypothesis of how a pattern matched a set of blame terms.
type BindingInfo struct {
	graph   *term.Graph
	oracle  *EqualityOracle
	pattern *PatternNode

	// unused is the multiset of blame terms not yet claimed. The slice is
	// replaced on every removal and never written in place.
	unused []term.ID

	// claimed holds the blame terms removed from unused.
	claimed cowMap[term.ID, struct{}]

	bindings     cowMap[*PatternNode, term.ID]
	matchContext cowMap[term.ID, []Path]
	equalities   cowMap[*PatternNode, []term.ID]
	outstanding  cowMap[*PatternNode, []obligation]
}

// Option configures a BindingInfo.
type Option func(*BindingInfo)

// WithOracle sets the equality oracle used by Finalize. Hypotheses of the
// same graph should share one oracle so its memo is reused.
func WithOracle(o *EqualityOracle) Option {
	return func(b *BindingInfo) {
		b.oracle = o
	}
}

// New creates the initial hypothesis for matching pattern against blame.
//
// Description:
//
//	The blame slice is copied. Every blame ID must name a term of graph;
//	an unknown ID is a caller defect and panics.
//
// Inputs:
//
//	graph - The frozen term graph the blame terms live in.
//	pattern - The trigger pattern.
//	blame - The blame terms of the instantiation. Duplicates are kept.
//	opts - Optional configuration (WithOracle).
//
// Outputs:
//
//	*BindingInfo - The empty hypothesis. Never nil.
func New(graph *term.Graph, pattern *PatternNode, blame []term.ID, opts ...Option) *BindingInfo {
	if graph == nil || pattern == nil {
		panic("binding: New requires a graph and a pattern")
	}
	for _, id := range blame {
		if _, ok := graph.Get(id); !ok {
			panic(fmt.Sprintf("binding: blame term %d is not in the graph", id))
		}
	}

	b := &BindingInfo{
		graph:   graph,
		pattern: pattern,
		unused:  slices.Clone(blame),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.oracle == nil {
		b.oracle = NewEqualityOracle(graph, 0)
	}
	return b
}

// Clone returns an independent copy of the hypothesis.
func (b *BindingInfo) Clone() *BindingInfo {
	return &BindingInfo{
		graph:        b.graph,
		oracle:       b.oracle,
		pattern:      b.pattern,
		unused:       b.unused,
		claimed:      b.claimed.fork(),
		bindings:     b.bindings.fork(),
		matchContext: b.matchContext.fork(),
		equalities:   b.equalities.fork(),
		outstanding:  b.outstanding.fork(),
	}
}

// =============================================================================
// PATTERN MATCHING
// =============================================================================

// AllNextMatches returns every hypothesis consistent with matching p next.
//
// Description:
//
//	For a variable node the result is a single clone in which the
//	obligations queued for p have been resolved; no blame term is claimed.
//	For an application node the result holds one clone per distinct
//	compatible unused blame term: the term is claimed (removed from the
//	unused multiset), queued against p with an empty context and resolved
//	together with any obligations already queued for p. Incompatible terms
//	are skipped. A queued term incompatible with p is displaced by the
//	claimed term and recorded as an equality. An empty result means this
//	branch of the search is dead.
//
// Inputs:
//
//	p - A node of the hypothesis' pattern.
//
// Outputs:
//
//	[]*BindingInfo - New hypotheses. The receiver is not modified
//	observably.
func (b *BindingInfo) AllNextMatches(p *PatternNode) []*BindingInfo {
	if p.IsVariable() {
		next := b.Clone()
		next.handleOutstandingMatches(p)
		return []*BindingInfo{next}
	}

	var out []*BindingInfo
	tried := make(map[term.ID]struct{}, len(b.unused))
	for i, id := range b.unused {
		if _, dup := tried[id]; dup {
			continue
		}
		tried[id] = struct{}{}

		if !p.Compatible(b.graph.MustGet(id)) {
			continue
		}

		next := b.Clone()
		next.unused = removeAt(b.unused, i)
		next.claimed.Set(id, struct{}{})
		next.addOutstanding(p, id, nil)
		next.handleOutstandingMatches(p)
		out = append(out, next)
	}
	return out
}

// Propagate returns a clone in which the obligations queued for p have been
// resolved without claiming a blame term. It is the structural counterpart
// of AllNextMatches for application nodes reached through their parent.
// It returns nil when a queued term is incompatible with p: without a
// claimed blame term nothing backs that binding.
func (b *BindingInfo) Propagate(p *PatternNode) *BindingInfo {
	if !b.outstandingCompatible(p) {
		return nil
	}
	next := b.Clone()
	next.handleOutstandingMatches(p)
	return next
}

// HasOutstanding reports whether obligations are queued for p.
func (b *BindingInfo) HasOutstanding(p *PatternNode) bool {
	return b.outstanding.Has(p)
}

// outstandingCompatible reports whether every term queued for p is
// compatible with p.
func (b *BindingInfo) outstandingCompatible(p *PatternNode) bool {
	queued, _ := b.outstanding.Get(p)
	for _, ob := range queued {
		if !p.Compatible(b.graph.MustGet(ob.term)) {
			return false
		}
	}
	return true
}

// addOutstanding queues (id, ctx) against p.
func (b *BindingInfo) addOutstanding(p *PatternNode, id term.ID, ctx []Path) {
	queued, _ := b.outstanding.Get(p)
	next := make([]obligation, len(queued), len(queued)+1)
	copy(next, queued)
	b.outstanding.Set(p, append(next, obligation{term: id, context: ctx}))
}

// handleOutstandingMatches resolves every obligation queued for p.
//
// For each obligation, in queue order: the context is merged into the
// term's match context, p is bound to the term (recording the displaced
// term as an equality when it differs), and each pattern argument is queued
// against the corresponding term argument with the extended context.
// Arguments are paired up to the shorter arity.
func (b *BindingInfo) handleOutstandingMatches(p *PatternNode) {
	queued, ok := b.outstanding.Get(p)
	if !ok {
		return
	}

	for _, ob := range queued {
		b.mergeContext(ob.term, ob.context)

		if prev, bound := b.bindings.Get(p); bound && prev != ob.term {
			eqs, _ := b.equalities.Get(p)
			b.equalities.Set(p, appendCopy(eqs, prev))
		}
		b.bindings.Set(p, ob.term)

		t := b.graph.MustGet(ob.term)
		n := min(len(p.Args), len(t.Args))
		if n == 0 {
			continue
		}
		ctx := b.extendedContext(ob.term)
		for i := 0; i < n; i++ {
			b.addOutstanding(p.Args[i], t.Args[i], ctx)
		}
	}

	b.outstanding.Delete(p)
}

// mergeContext adds the paths of ctx that id has not been reached by yet.
func (b *BindingInfo) mergeContext(id term.ID, ctx []Path) {
	existing, ok := b.matchContext.Get(id)
	merged := existing
	for _, path := range ctx {
		if containsPath(merged, path) {
			continue
		}
		if len(merged) == len(existing) {
			merged = slices.Clone(existing)
		}
		merged = append(merged, path)
	}
	if !ok || len(merged) != len(existing) {
		b.matchContext.Set(id, merged)
	}
}

// extendedContext returns the context passed to the arguments of id:
// [id] when id has no context yet, otherwise every path with id appended.
func (b *BindingInfo) extendedContext(id term.ID) []Path {
	existing, _ := b.matchContext.Get(id)
	if len(existing) == 0 {
		return []Path{{id}}
	}
	out := make([]Path, len(existing))
	for i, path := range existing {
		ext := make(Path, len(path), len(path)+1)
		copy(ext, path)
		out[i] = append(ext, id)
	}
	return out
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Pattern returns the trigger pattern of the hypothesis.
func (b *BindingInfo) Pattern() *PatternNode {
	return b.pattern
}

// Graph returns the term graph the hypothesis refers to.
func (b *BindingInfo) Graph() *term.Graph {
	return b.graph
}

// Binding returns the term p is bound to.
func (b *BindingInfo) Binding(p *PatternNode) (term.ID, bool) {
	return b.bindings.Get(p)
}

// Bindings returns a copy of the pattern node to term mapping.
func (b *BindingInfo) Bindings() map[*PatternNode]term.ID {
	out := make(map[*PatternNode]term.ID, b.bindings.Len())
	b.bindings.Range(func(p *PatternNode, id term.ID) bool {
		out[p] = id
		return true
	})
	return out
}

// BindingCount returns the number of bound pattern nodes.
func (b *BindingInfo) BindingCount() int {
	return b.bindings.Len()
}

// MatchContext returns the ancestor paths by which id was reached. A term
// claimed directly from the blame set has no paths.
func (b *BindingInfo) MatchContext(id term.ID) []Path {
	ctx, _ := b.matchContext.Get(id)
	out := make([]Path, len(ctx))
	for i, path := range ctx {
		out[i] = slices.Clone(path)
	}
	return out
}

// Equality returns the terms p was bound to before its current binding,
// oldest first.
func (b *BindingInfo) Equality(p *PatternNode) []term.ID {
	eqs, _ := b.equalities.Get(p)
	return slices.Clone(eqs)
}

// Equalities returns a copy of every recorded equality.
func (b *BindingInfo) Equalities() map[*PatternNode][]term.ID {
	out := make(map[*PatternNode][]term.ID, b.equalities.Len())
	b.equalities.Range(func(p *PatternNode, ids []term.ID) bool {
		out[p] = slices.Clone(ids)
		return true
	})
	return out
}

// UnusedBlameTerms returns the blame terms not claimed yet.
func (b *BindingInfo) UnusedBlameTerms() []term.ID {
	return slices.Clone(b.unused)
}

// UnusedCount returns the number of blame terms not claimed yet.
func (b *BindingInfo) UnusedCount() int {
	return len(b.unused)
}

// DistinctBlameTerms returns the bound terms of application nodes that were
// claimed directly from the blame set, i.e. have no match context. The
// result follows the pattern schedule and has no duplicates.
func (b *BindingInfo) DistinctBlameTerms() []term.ID {
	var out []term.ID
	seen := make(map[term.ID]struct{})
	for _, p := range b.pattern.Schedule() {
		if p.IsVariable() {
			continue
		}
		id, ok := b.bindings.Get(p)
		if !ok {
			continue
		}
		if ctx, _ := b.matchContext.Get(id); len(ctx) > 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// BindingsToFreeVars returns the bindings of variable nodes.
func (b *BindingInfo) BindingsToFreeVars() map[*PatternNode]term.ID {
	out := make(map[*PatternNode]term.ID)
	b.bindings.Range(func(p *PatternNode, id term.ID) bool {
		if p.IsVariable() {
			out[p] = id
		}
		return true
	})
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func removeAt(ids []term.ID, i int) []term.ID {
	out := make([]term.ID, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

func appendCopy(ids []term.ID, id term.ID) []term.ID {
	out := make([]term.ID, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

func containsPath(paths []Path, p Path) bool {
	for _, q := range paths {
		if slices.Equal(q, p) {
			return true
		}
	}
	return false
}
