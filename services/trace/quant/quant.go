// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quant models quantifiers and their instantiations on top of a
// term graph.
package quant

import (
	"errors"
	"fmt"
	"sort"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// Sentinel errors for trace assembly.
var (
	// ErrDuplicateQuantifier is returned when a quantifier ID is reused.
	ErrDuplicateQuantifier = errors.New("duplicate quantifier")

	// ErrDuplicateInstantiation is returned when an instantiation ID is reused.
	ErrDuplicateInstantiation = errors.New("duplicate instantiation")

	// ErrUnknownQuantifier is returned when an instantiation names a
	// quantifier that was not added.
	ErrUnknownQuantifier = errors.New("unknown quantifier")

	// ErrInvalidInstantiation is returned for malformed instantiations.
	ErrInvalidInstantiation = errors.New("invalid instantiation")
)

// Quantifier is a universally quantified axiom with its trigger patterns.
type Quantifier struct {
	ID       string
	Name     string
	Body     term.ID
	Patterns []*binding.PatternNode
}

// Instantiation records one firing of a quantifier.
type Instantiation struct {
	ID         term.InstID
	Quantifier *Quantifier

	// Pattern is the trigger that fired. It is one of Quantifier.Patterns.
	Pattern *binding.PatternNode

	// Blame are the ground terms the trigger matched, as logged.
	Blame []term.ID

	// Bound are the terms substituted for the quantifier's bound variables.
	Bound []term.ID

	// Yields is the instantiated body. HasYield is false when the log
	// carried no yield.
	Yields   term.ID
	HasYield bool

	// Produces lists further terms first created by this instantiation,
	// typically subterms of the yield.
	Produces []term.ID

	Cost float64

	// Binding is the reconstructed match, set after reconstruction.
	Binding *binding.BindingInfo
}

// Trace is the set of quantifiers and instantiations of one solver run.
type Trace struct {
	Graph *term.Graph

	quantifiers    map[string]*Quantifier
	instantiations map[term.InstID]*Instantiation
	order          []term.InstID
}

// NewTrace creates an empty trace over graph. The graph must still be
// building: instantiation relations are recorded in its side tables.
func NewTrace(graph *term.Graph) *Trace {
	return &Trace{
		Graph:          graph,
		quantifiers:    make(map[string]*Quantifier),
		instantiations: make(map[term.InstID]*Instantiation),
	}
}

// AddQuantifier registers q.
func (t *Trace) AddQuantifier(q *Quantifier) error {
	if q == nil || q.ID == "" {
		return fmt.Errorf("%w: quantifier needs an id", ErrInvalidInstantiation)
	}
	if _, ok := t.quantifiers[q.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateQuantifier, q.ID)
	}
	t.quantifiers[q.ID] = q
	return nil
}

// Quantifier returns the quantifier with the given ID.
func (t *Trace) Quantifier(id string) (*Quantifier, bool) {
	q, ok := t.quantifiers[id]
	return q, ok
}

// Quantifiers returns every quantifier sorted by ID.
func (t *Trace) Quantifiers() []*Quantifier {
	out := make([]*Quantifier, 0, len(t.quantifiers))
	for _, q := range t.quantifiers {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add registers inst and records its blame, bound and yield relations in
// the graph side tables.
//
// Errors:
//
//	ErrInvalidInstantiation - nil instantiation or missing pattern
//	ErrUnknownQuantifier - quantifier not registered
//	ErrDuplicateInstantiation - ID already used
//	term.ErrTermNotFound, term.ErrGraphFrozen - from the side tables
func (t *Trace) Add(inst *Instantiation) error {
	if inst == nil {
		return fmt.Errorf("%w: nil", ErrInvalidInstantiation)
	}
	if inst.Quantifier == nil {
		return fmt.Errorf("%w: instantiation %d has no quantifier", ErrInvalidInstantiation, inst.ID)
	}
	if _, ok := t.quantifiers[inst.Quantifier.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuantifier, inst.Quantifier.ID)
	}
	if inst.Pattern == nil {
		return fmt.Errorf("%w: instantiation %d has no pattern", ErrInvalidInstantiation, inst.ID)
	}
	if _, ok := t.instantiations[inst.ID]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateInstantiation, inst.ID)
	}

	if err := t.checkTerms(inst); err != nil {
		return err
	}

	for _, id := range inst.Blame {
		if err := t.Graph.RecordBlame(id, inst.ID); err != nil {
			return fmt.Errorf("instantiation %d blame: %w", inst.ID, err)
		}
	}
	for _, id := range inst.Bound {
		if err := t.Graph.RecordBind(id, inst.ID); err != nil {
			return fmt.Errorf("instantiation %d bound: %w", inst.ID, err)
		}
	}
	if inst.HasYield {
		if err := t.Graph.RecordProducedBy(inst.Yields, inst.ID); err != nil {
			return fmt.Errorf("instantiation %d yield: %w", inst.ID, err)
		}
	}

	for _, id := range inst.Produces {
		if err := t.Graph.RecordProducedBy(id, inst.ID); err != nil {
			return fmt.Errorf("instantiation %d produces: %w", inst.ID, err)
		}
	}

	t.instantiations[inst.ID] = inst
	t.order = append(t.order, inst.ID)
	return nil
}

// checkTerms verifies every referenced term exists so that a failed Add
// leaves the side tables untouched.
func (t *Trace) checkTerms(inst *Instantiation) error {
	refs := make([]term.ID, 0, len(inst.Blame)+len(inst.Bound)+len(inst.Produces)+1)
	refs = append(refs, inst.Blame...)
	refs = append(refs, inst.Bound...)
	refs = append(refs, inst.Produces...)
	if inst.HasYield {
		refs = append(refs, inst.Yields)
	}
	for _, id := range refs {
		if _, ok := t.Graph.Get(id); !ok {
			return fmt.Errorf("instantiation %d: %w: %d", inst.ID, term.ErrTermNotFound, id)
		}
	}
	return nil
}

// Instantiation returns the instantiation with the given ID.
func (t *Trace) Instantiation(id term.InstID) (*Instantiation, bool) {
	inst, ok := t.instantiations[id]
	return inst, ok
}

// Instantiations returns the instantiations in insertion order.
func (t *Trace) Instantiations() []*Instantiation {
	out := make([]*Instantiation, len(t.order))
	for i, id := range t.order {
		out[i] = t.instantiations[id]
	}
	return out
}

// Len returns the number of instantiations.
func (t *Trace) Len() int {
	return len(t.order)
}

// Parent returns the instantiation that produced one of inst's blame terms,
// choosing the first blame term that has a producer.
func (t *Trace) Parent(inst *Instantiation) (*Instantiation, bool) {
	for _, id := range inst.Blame {
		if pid, ok := t.Graph.ProducedBy(id); ok {
			if p, ok := t.instantiations[pid]; ok {
				return p, true
			}
		}
	}
	return nil, false
}
