// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import (
	"fmt"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/path"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// NoBody marks a quantifier whose document omitted the body term.
const NoBody term.ID = -1

// Scenario is a built document: a frozen term graph, the trace over it and
// the declared instantiation paths.
type Scenario struct {
	Name   string
	Digest string
	Graph  *term.Graph
	Trace  *quant.Trace
	Paths  []*path.InstantiationPath
}

// Build validates the document and materializes it. Terms may be listed in
// any order; arguments are added before the terms that use them.
func (d *Document) Build(opts ...term.GraphOption) (*Scenario, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	graph := term.NewGraph(opts...)
	if err := d.addTerms(graph); err != nil {
		return nil, err
	}

	tr := quant.NewTrace(graph)
	for _, qd := range d.Quantifiers {
		q := &quant.Quantifier{ID: qd.ID, Name: qd.Name, Body: NoBody}
		if q.Name == "" {
			q.Name = qd.ID
		}
		if qd.Body != nil {
			q.Body = term.ID(*qd.Body)
		}
		for _, pd := range qd.Patterns {
			q.Patterns = append(q.Patterns, buildPattern(pd, make(map[string]*binding.PatternNode)))
		}
		if err := tr.AddQuantifier(q); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
	}

	for _, id := range d.Instantiations {
		q, _ := tr.Quantifier(id.Quantifier)
		inst := &quant.Instantiation{
			ID:         term.InstID(id.ID),
			Quantifier: q,
			Pattern:    q.Patterns[id.Pattern],
			Blame:      toIDs(id.Blame),
			Bound:      toIDs(id.Bound),
			Produces:   toIDs(id.Produces),
			Cost:       id.Cost,
		}
		if id.Yields != nil {
			inst.Yields = term.ID(*id.Yields)
			inst.HasYield = true
		}
		if err := tr.Add(inst); err != nil {
			return nil, fmt.Errorf("%w: instantiation %d: %v", ErrInvalidScenario, id.ID, err)
		}
	}

	// Side tables are written by tr.Add, so the graph freezes last.
	graph.Freeze()

	sc := &Scenario{Name: d.Name, Digest: d.digest, Graph: graph, Trace: tr}
	for _, ids := range d.Paths {
		p := path.New()
		for _, id := range ids {
			inst, _ := tr.Instantiation(term.InstID(id))
			p.Append(inst)
		}
		sc.Paths = append(sc.Paths, p)
	}
	return sc, nil
}

// addTerms inserts terms in dependency order. Cyclic argument references
// are rejected.
func (d *Document) addTerms(graph *term.Graph) error {
	byID := make(map[int]TermDoc, len(d.Terms))
	for _, t := range d.Terms {
		byID[t.ID] = t
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int]int, len(d.Terms))

	var visit func(id int) error
	visit = func(id int) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: term %d is its own ancestor", ErrInvalidScenario, id)
		}
		state[id] = visiting
		t := byID[id]
		for _, a := range t.Args {
			if err := visit(a); err != nil {
				return err
			}
		}
		if _, err := graph.Add(term.ID(t.ID), t.Name, toIDs(t.Args)...); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
		}
		state[id] = done
		return nil
	}

	for _, t := range d.Terms {
		if err := visit(t.ID); err != nil {
			return err
		}
	}
	return nil
}

// buildPattern converts a pattern document. vars maps variable names to
// their node so repeated names share one node.
func buildPattern(pd PatternDoc, vars map[string]*binding.PatternNode) *binding.PatternNode {
	if pd.Var != "" {
		if v, ok := vars[pd.Var]; ok {
			return v
		}
		v := binding.Var(pd.Var)
		vars[pd.Var] = v
		return v
	}
	args := make([]*binding.PatternNode, 0, len(pd.Args))
	for _, a := range pd.Args {
		args = append(args, buildPattern(a, vars))
	}
	return binding.App(pd.Name, args...)
}

func toIDs(in []int) []term.ID {
	if len(in) == 0 {
		return nil
	}
	out := make([]term.ID, len(in))
	for i, v := range in {
		out[i] = term.ID(v)
	}
	return out
}

// InstantiationIDs returns the instantiation IDs in document order.
func (s *Scenario) InstantiationIDs() []term.InstID {
	insts := s.Trace.Instantiations()
	ids := make([]term.InstID, len(insts))
	for i, inst := range insts {
		ids[i] = inst.ID
	}
	return ids
}
