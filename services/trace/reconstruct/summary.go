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
	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// summaryDepth limits how deep terms are rendered in summaries.
const summaryDepth = 6

// BoundTerm is one pattern node and the term it is bound to.
type BoundTerm struct {
	Pattern string  `json:"pattern"`
	TermID  term.ID `json:"term_id"`
	Term    string  `json:"term"`
}

// EqualitySummary lists the terms a pattern node was forced equal to.
type EqualitySummary struct {
	Pattern string   `json:"pattern"`
	Current string   `json:"current"`
	Old     []string `json:"old"`
}

// ContextSummary lists the ancestor paths a term was reached through.
type ContextSummary struct {
	Term  string     `json:"term"`
	Paths [][]string `json:"paths"`
}

// Summary is a presentation-ready projection of a reconstruction.
type Summary struct {
	RunID           string            `json:"run_id"`
	InstantiationID term.InstID       `json:"instantiation"`
	Quantifier      string            `json:"quantifier,omitempty"`
	Pattern         string            `json:"pattern"`
	Found           bool              `json:"found"`
	Accepted        int               `json:"accepted"`
	Explored        int               `json:"explored"`
	Truncated       bool              `json:"truncated"`
	DurationMicros  int64             `json:"duration_us"`
	Rejected        map[string]int    `json:"rejected,omitempty"`
	StartingTerms   []string          `json:"starting_terms,omitempty"`
	Bindings        []BoundTerm       `json:"bindings,omitempty"`
	FreeVariables   []BoundTerm       `json:"free_variables,omitempty"`
	Equalities      []EqualitySummary `json:"equalities,omitempty"`
	Contexts        []ContextSummary  `json:"contexts,omitempty"`
}

// Summarize projects the best hypothesis of res into a Summary.
func Summarize(graph *term.Graph, inst *quant.Instantiation, res *Result) Summary {
	s := Summary{
		RunID:           res.RunID.String(),
		InstantiationID: res.InstantiationID,
		Accepted:        len(res.Hypotheses),
		Explored:        res.Explored,
		Truncated:       res.Truncated,
		DurationMicros:  res.Duration.Microseconds(),
	}
	if inst != nil {
		if inst.Quantifier != nil {
			s.Quantifier = inst.Quantifier.ID
		}
		if inst.Pattern != nil {
			s.Pattern = inst.Pattern.String()
		}
	}
	if len(res.Rejected) > 0 {
		s.Rejected = make(map[string]int, len(res.Rejected))
		for o, n := range res.Rejected {
			s.Rejected[o.String()] = n
		}
	}

	best, err := res.Best()
	if err != nil {
		return s
	}
	s.Found = true

	render := func(id term.ID) string {
		return graph.FormatDepth(id, summaryDepth)
	}

	for _, id := range best.DistinctBlameTerms() {
		s.StartingTerms = append(s.StartingTerms, render(id))
	}

	seenTerms := make(map[term.ID]struct{})
	for _, node := range best.Pattern().Schedule() {
		id, ok := best.Binding(node)
		if !ok {
			continue
		}
		bt := BoundTerm{Pattern: node.String(), TermID: id, Term: render(id)}
		s.Bindings = append(s.Bindings, bt)
		if node.IsVariable() {
			s.FreeVariables = append(s.FreeVariables, bt)
		}

		if eqs := best.Equality(node); len(eqs) > 0 {
			es := EqualitySummary{Pattern: node.String(), Current: render(id)}
			for _, old := range eqs {
				es.Old = append(es.Old, render(old))
			}
			s.Equalities = append(s.Equalities, es)
		}

		if _, dup := seenTerms[id]; dup {
			continue
		}
		seenTerms[id] = struct{}{}
		s.Contexts = append(s.Contexts, contextSummary(best, id, render))
	}
	return s
}

func contextSummary(b *binding.BindingInfo, id term.ID, render func(term.ID) string) ContextSummary {
	cs := ContextSummary{Term: render(id)}
	for _, path := range b.MatchContext(id) {
		rendered := make([]string, len(path))
		for i, p := range path {
			rendered[i] = render(p)
		}
		cs.Paths = append(cs.Paths, rendered)
	}
	return cs
}
