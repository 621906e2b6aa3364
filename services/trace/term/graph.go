// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package term

import (
	"fmt"
	"sort"
	"time"
)

// Graph is the arena of ground terms observed in a solver trace.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building.
//	After Freeze(), the graph is read-only and safe for concurrent reads.
//
// Lifecycle:
//
//  1. Create with NewGraph()
//  2. Build with Add() and the Record* calls
//  3. Call Freeze() to finalize
//  4. Query with Get(), Dependents(), ProducedBy(), etc.
type Graph struct {
	terms map[ID]*Term

	// dependents[a] lists every term that has a as a direct argument,
	// in insertion order.
	dependents map[ID][]ID

	producedBy map[ID]InstID
	blamedIn   map[ID][]InstID
	boundIn    map[ID][]InstID

	state    GraphState
	frozenAt int64
	options  GraphOptions
}

// NewGraph creates a new empty term graph.
//
// Description:
//
//	Creates a graph in the building state. Terms must be added bottom-up:
//	every argument has to exist before the term that uses it.
//
// Inputs:
//
//	opts - Optional configuration (WithMaxTerms).
//
// Example:
//
//	g := term.NewGraph(term.WithMaxTerms(10_000))
//	a, _ := g.Add(0, "a")
//	_, _ = g.Add(1, "f", a.ID)
//	g.Freeze()
func NewGraph(opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		terms:      make(map[ID]*Term),
		dependents: make(map[ID][]ID),
		producedBy: make(map[ID]InstID),
		blamedIn:   make(map[ID][]InstID),
		boundIn:    make(map[ID][]InstID),
		state:      GraphStateBuilding,
		options:    options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Freeze transitions the graph to read-only mode. Calling Freeze on a
// frozen graph is a no-op.
func (g *Graph) Freeze() {
	if g.state == GraphStateReadOnly {
		return
	}
	g.state = GraphStateReadOnly
	g.frozenAt = time.Now().UnixMilli()
}

// Len returns the number of terms in the graph.
func (g *Graph) Len() int {
	return len(g.terms)
}

// Add inserts a ground term.
//
// Description:
//
//	The raw name is split into function symbol and generic type annotation
//	with SplitName. Size is computed from the arguments and the new term is
//	appended to the dependents of each argument.
//
// Inputs:
//
//	id - Unique non-negative identifier.
//	name - Raw function symbol, optionally carrying a "<...>" annotation.
//	args - IDs of already added argument terms, in order.
//
// Outputs:
//
//	*Term - The stored term. MUST NOT be mutated.
//	error - Non-nil if the graph is frozen, at capacity, or the term is invalid.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidTerm - Negative id or empty name
//	ErrMaxTermsExceeded - Graph is at term capacity
//	ErrDuplicateTerm - Term with same ID already exists
//	ErrTermNotFound - An argument has not been added yet
func (g *Graph) Add(id ID, name string, args ...ID) (*Term, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}

	if id < 0 {
		return nil, fmt.Errorf("%w: negative id %d", ErrInvalidTerm, id)
	}

	if name == "" {
		return nil, fmt.Errorf("%w: term %d has an empty name", ErrInvalidTerm, id)
	}

	if len(g.terms) >= g.options.MaxTerms {
		return nil, ErrMaxTermsExceeded
	}

	if _, exists := g.terms[id]; exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateTerm, id)
	}

	size := 1
	for _, a := range args {
		arg, ok := g.terms[a]
		if !ok {
			return nil, fmt.Errorf("%w: argument %d of term %d", ErrTermNotFound, a, id)
		}
		size += arg.Size
	}

	base, typ := SplitName(name)
	t := &Term{
		ID:   id,
		Name: base,
		Type: typ,
		Args: append([]ID(nil), args...),
		Size: size,
	}
	g.terms[id] = t

	for _, a := range args {
		g.dependents[a] = append(g.dependents[a], id)
	}

	return t, nil
}

// Get returns the term with the given ID.
func (g *Graph) Get(id ID) (*Term, bool) {
	t, ok := g.terms[id]
	return t, ok
}

// MustGet returns the term with the given ID and panics when it is absent.
// Callers use it on IDs that were validated when the graph was built.
func (g *Graph) MustGet(id ID) *Term {
	t, ok := g.terms[id]
	if !ok {
		panic(fmt.Sprintf("term: id %d is not in the graph", id))
	}
	return t
}

// Dependents returns the IDs of the terms that have id as a direct argument.
// The returned slice MUST NOT be modified.
func (g *Graph) Dependents(id ID) []ID {
	return g.dependents[id]
}

// IDs returns every term ID in ascending order.
func (g *Graph) IDs() []ID {
	ids := make([]ID, 0, len(g.terms))
	for id := range g.terms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// INSTANTIATION SIDE TABLES
// =============================================================================

// RecordProducedBy records that inst yielded term id.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrTermNotFound - id is not in the graph
func (g *Graph) RecordProducedBy(id ID, inst InstID) error {
	if err := g.checkRecord(id); err != nil {
		return err
	}
	g.producedBy[id] = inst
	return nil
}

// RecordBlame records that term id is a blame term of inst.
func (g *Graph) RecordBlame(id ID, inst InstID) error {
	if err := g.checkRecord(id); err != nil {
		return err
	}
	g.blamedIn[id] = append(g.blamedIn[id], inst)
	return nil
}

// RecordBind records that term id was substituted for a bound variable of inst.
func (g *Graph) RecordBind(id ID, inst InstID) error {
	if err := g.checkRecord(id); err != nil {
		return err
	}
	g.boundIn[id] = append(g.boundIn[id], inst)
	return nil
}

func (g *Graph) checkRecord(id ID) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if _, ok := g.terms[id]; !ok {
		return fmt.Errorf("%w: %d", ErrTermNotFound, id)
	}
	return nil
}

// ProducedBy returns the instantiation that yielded term id, if any.
func (g *Graph) ProducedBy(id ID) (InstID, bool) {
	inst, ok := g.producedBy[id]
	return inst, ok
}

// BlamedIn returns the instantiations that name id as a blame term.
func (g *Graph) BlamedIn(id ID) []InstID {
	return g.blamedIn[id]
}

// BoundIn returns the instantiations that bound a variable to id.
func (g *Graph) BoundIn(id ID) []InstID {
	return g.boundIn[id]
}

// Stats returns summary counts for the graph.
func (g *Graph) Stats() GraphStats {
	stats := GraphStats{
		TermCount:     len(g.terms),
		MaxTerms:      g.options.MaxTerms,
		ProducedTerms: len(g.producedBy),
		State:         g.state,
		FrozenAtMilli: g.frozenAt,
	}
	for _, insts := range g.blamedIn {
		stats.BlameLinks += len(insts)
	}
	for _, insts := range g.boundIn {
		stats.BindLinks += len(insts)
	}
	for _, t := range g.terms {
		if t.Name == EqualityName && len(t.Args) == 2 {
			stats.EqualityTerms++
		}
	}
	return stats
}
