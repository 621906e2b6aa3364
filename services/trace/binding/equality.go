// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package binding

import (
	"github.com/AleutianAI/AxiomTrace/services/trace/cache"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// DefaultOracleCacheSize is the memo capacity used when none is given.
const DefaultOracleCacheSize = 8192

type termPair struct {
	lo, hi term.ID
}

func pairOf(a, b term.ID) termPair {
	if a > b {
		a, b = b, a
	}
	return termPair{lo: a, hi: b}
}

// EqualityOracle decides whether two ground terms are provably equal from
// the evidence visible in a term graph.
//
// Description:
//
//	Two terms are equal when they are the same term; when an observed
//	equality term "=(a, b)" links them; or when they share name, type and
//	arity and every pair of arguments is equal. The oracle is sound but
//	incomplete: it is not a congruence closure.
//
// Thread Safety: Safe for concurrent use once the graph is frozen.
type EqualityOracle struct {
	graph *term.Graph
	memo  *cache.LRU[termPair, bool]
}

// NewEqualityOracle creates an oracle over graph with a memo of the given
// capacity. Non-positive capacity means DefaultOracleCacheSize.
func NewEqualityOracle(graph *term.Graph, capacity int) *EqualityOracle {
	if capacity <= 0 {
		capacity = DefaultOracleCacheSize
	}
	return &EqualityOracle{
		graph: graph,
		memo:  cache.NewLRU[termPair, bool](capacity),
	}
}

// Equal reports whether a and b are provably equal.
func (o *EqualityOracle) Equal(a, b term.ID) bool {
	if a == b {
		return true
	}

	key := pairOf(a, b)
	if v, ok := o.memo.Get(key); ok {
		return v
	}

	eq := o.observedEquality(a, b) || o.structurallyEqual(a, b)
	o.memo.Add(key, eq)
	return eq
}

// Stats returns the memo counters.
func (o *EqualityOracle) Stats() cache.Stats {
	return o.memo.Stats()
}

// observedEquality searches the dependents of whichever side has fewer of
// them for an equality term whose other argument is the other side.
func (o *EqualityOracle) observedEquality(a, b term.ID) bool {
	src, other := a, b
	if len(o.graph.Dependents(b)) < len(o.graph.Dependents(a)) {
		src, other = b, a
	}
	for _, dep := range o.graph.Dependents(src) {
		if partner, ok := o.graph.EqualityPartner(dep, src); ok && partner == other {
			return true
		}
	}
	return false
}

func (o *EqualityOracle) structurallyEqual(a, b term.ID) bool {
	ta := o.graph.MustGet(a)
	tb := o.graph.MustGet(b)
	if !ta.SameSymbol(tb) {
		return false
	}
	for i := range ta.Args {
		if !o.Equal(ta.Args[i], tb.Args[i]) {
			return false
		}
	}
	return true
}
