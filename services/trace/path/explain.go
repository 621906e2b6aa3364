// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package path

import (
	"slices"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// Equality is one forced equality of a step: the pattern node is bound to
// Current and was bound to each of Old before.
type Equality struct {
	Pattern string
	Current term.ID
	Old     []term.ID
}

// Step explains one instantiation of a path.
type Step struct {
	Instantiation term.InstID
	Quantifier    string
	Body          term.ID

	// Legacy is true when the instantiation has no reconstructed binding;
	// only Blame and Bound are filled then.
	Legacy bool
	Blame  []term.ID
	Bound  []term.ID

	// StartingTerms are the directly claimed blame terms of the first step.
	StartingTerms []term.ID

	// Previous is the yield of the predecessor this step consumes from.
	Previous    term.ID
	HasPrevious bool

	// TogetherWith are claimed blame terms the predecessor did not yield,
	// or that were matched through an equality.
	TogetherWith []term.ID

	// Generalized are the subterms of Previous replaced by generalized
	// placeholders of a matching loop.
	Generalized []term.ID

	Equalities []Equality
}

// Loop summarizes a matching loop found by the cycle detector.
type Loop struct {
	Repetitions      int
	Quantifiers      []string
	GeneralizedTerms []term.ID
}

// Explanation is a data-only walkthrough of a path.
type Explanation struct {
	Length int
	Loop   *Loop
	Steps  []Step

	// Yield is the yield of the last instantiation.
	Yield    term.ID
	HasYield bool
}

// Explain walks the path and describes how each instantiation follows from
// its predecessor.
func (p *InstantiationPath) Explain(graph *term.Graph) Explanation {
	ex := Explanation{Length: p.Length()}

	var gen GeneralizationState
	if p.HasCycle() {
		d := p.cycles()
		gen = d.Generalization()
		loop := &Loop{Repetitions: d.Repetitions()}
		for _, q := range d.CycleQuantifiers() {
			loop.Quantifiers = append(loop.Quantifiers, quantifierName(q))
		}
		if gen != nil {
			loop.GeneralizedTerms = gen.GeneralizedTerms()
		}
		ex.Loop = loop
	}

	var prev *quant.Instantiation
	for _, inst := range p.insts {
		if inst == nil {
			break
		}
		ex.Steps = append(ex.Steps, explainStep(graph, inst, prev, gen))
		prev = inst
	}

	if prev != nil && prev.HasYield {
		ex.Yield = prev.Yields
		ex.HasYield = true
	}
	return ex
}

func explainStep(graph *term.Graph, cur, prev *quant.Instantiation, gen GeneralizationState) Step {
	step := Step{
		Instantiation: cur.ID,
		Quantifier:    quantifierName(cur.Quantifier),
	}
	if cur.Quantifier != nil {
		step.Body = cur.Quantifier.Body
	}

	if cur.Binding == nil {
		step.Legacy = true
		step.Blame = slices.Clone(cur.Blame)
		step.Bound = slices.Clone(cur.Bound)
		return step
	}

	step.Equalities = equalities(cur.Binding)

	if prev == nil {
		step.StartingTerms = cur.Binding.DistinctBlameTerms()
		return step
	}

	if prev.HasYield {
		step.Previous = prev.Yields
		step.HasPrevious = true
		if gen != nil {
			step.Generalized = generalizedSubterms(graph, prev.Yields, gen)
		}
	}
	step.TogetherWith = otherRequiredTerms(graph, cur.Binding, prev)
	return step
}

// otherRequiredTerms returns the directly claimed blame terms of b that are
// bound under an equality, or are not part of prev's yield.
func otherRequiredTerms(graph *term.Graph, b *binding.BindingInfo, prev *quant.Instantiation) []term.ID {
	viaEquality := make(map[term.ID]struct{})
	for node := range b.Equalities() {
		if id, ok := b.Binding(node); ok {
			viaEquality[id] = struct{}{}
		}
	}

	var out []term.ID
	for _, id := range b.DistinctBlameTerms() {
		if _, ok := viaEquality[id]; ok {
			out = append(out, id)
			continue
		}
		if !prev.HasYield || !graph.IsSubterm(prev.Yields, id) {
			out = append(out, id)
		}
	}
	return out
}

// generalizedSubterms collects the outermost arguments below root that the
// generalization replaced.
func generalizedSubterms(graph *term.Graph, root term.ID, gen GeneralizationState) []term.ID {
	var out []term.ID
	var walk func(id term.ID)
	walk = func(id term.ID) {
		t, ok := graph.Get(id)
		if !ok {
			return
		}
		for _, a := range t.Args {
			if gen.IsReplaced(a) {
				out = append(out, a)
				continue
			}
			walk(a)
		}
	}
	walk(root)
	return out
}

func equalities(b *binding.BindingInfo) []Equality {
	var out []Equality
	for _, node := range b.Pattern().Schedule() {
		old := b.Equality(node)
		if len(old) == 0 {
			continue
		}
		cur, _ := b.Binding(node)
		out = append(out, Equality{Pattern: node.String(), Current: cur, Old: old})
	}
	return out
}

func quantifierName(q *quant.Quantifier) string {
	switch {
	case q == nil:
		return ""
	case q.Name != "":
		return q.Name
	default:
		return q.ID
	}
}
