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
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
	"github.com/AleutianAI/AxiomTrace/services/trace/reconstruct"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// chain builds a(0) h(a)(1) h(h(a))(2) h(h(h(a)))(3) b(4) k(b)(5) and
//
//	i1: q on h(a)       yields h(h(a))
//	i2: q on h(h(a))    yields h(h(h(a)))
//	i3: r on k(b)       yields nothing
func chain(t *testing.T) (*quant.Trace, []*quant.Instantiation) {
	t.Helper()
	g := term.NewGraph()
	for _, s := range []struct {
		id   term.ID
		name string
		args []term.ID
	}{
		{0, "a", nil},
		{1, "h", []term.ID{0}},
		{2, "h", []term.ID{1}},
		{3, "h", []term.ID{2}},
		{4, "b", nil},
		{5, "k", []term.ID{4}},
	} {
		_, err := g.Add(s.id, s.name, s.args...)
		require.NoError(t, err)
	}

	tr := quant.NewTrace(g)
	q := &quant.Quantifier{ID: "q", Name: "h-unfold", Patterns: []*binding.PatternNode{binding.App("h", binding.Var("x"))}}
	r := &quant.Quantifier{ID: "r", Patterns: []*binding.PatternNode{binding.App("k", binding.Var("x"))}}
	require.NoError(t, tr.AddQuantifier(q))
	require.NoError(t, tr.AddQuantifier(r))

	insts := []*quant.Instantiation{
		{ID: 1, Quantifier: q, Pattern: q.Patterns[0], Blame: []term.ID{1}, Bound: []term.ID{0}, Yields: 2, HasYield: true, Cost: 1.5},
		{ID: 2, Quantifier: q, Pattern: q.Patterns[0], Blame: []term.ID{2}, Bound: []term.ID{1}, Yields: 3, HasYield: true, Cost: 2},
		{ID: 3, Quantifier: r, Pattern: r.Patterns[0], Blame: []term.ID{5}, Bound: []term.ID{4}, Cost: 0.5},
	}
	for _, inst := range insts {
		require.NoError(t, tr.Add(inst))
	}
	g.Freeze()

	_, err := reconstruct.New(g).ReconstructTrace(context.Background(), tr)
	require.NoError(t, err)
	return tr, insts
}

func TestInstantiationPath_Editing(t *testing.T) {
	_, insts := chain(t)

	p := New(insts[1])
	p.Prepend(insts[0])
	p.Append(insts[2])
	assert.Equal(t, insts, p.Instantiations())
	assert.Equal(t, 3, p.Length())
	assert.InDelta(t, 4.0, p.Cost(), 1e-9)

	clone := p.Clone()
	clone.Append(insts[0])
	assert.Equal(t, 3, p.Length(), "clone is independent")
}

func TestInstantiationPath_AppendWithOverlap(t *testing.T) {
	_, insts := chain(t)

	tests := []struct {
		name  string
		left  []*quant.Instantiation
		right []*quant.Instantiation
		want  []*quant.Instantiation
	}{
		{"overlapping prefix", insts[:2], insts[1:], insts},
		{"disjoint", insts[:1], insts[1:], insts},
		{"fully contained", insts, insts[1:2], insts},
		{"empty other", insts[:1], nil, insts[:1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.left...)
			p.AppendWithOverlap(New(tt.right...))
			assert.Equal(t, tt.want, p.Instantiations())
		})
	}
}

func TestInstantiationPath_Statistics(t *testing.T) {
	_, insts := chain(t)
	p := New(insts...)

	stats := p.Statistics()
	require.Len(t, stats, 2)
	assert.Equal(t, "q", stats[0].Quantifier.ID)
	assert.Equal(t, 2, stats[0].Count)
	assert.Same(t, insts[0].Pattern, stats[0].Pattern)
	assert.Equal(t, "r", stats[1].Quantifier.ID)
	assert.Equal(t, 1, stats[1].Count)
}

func TestInstantiationPath_Explain(t *testing.T) {
	tr, insts := chain(t)
	p := New(insts...)

	ex := p.Explain(tr.Graph)
	assert.Nil(t, ex.Loop)
	assert.Equal(t, 3, ex.Length)
	require.Len(t, ex.Steps, 3)

	assert.Equal(t, []term.ID{1}, ex.Steps[0].StartingTerms)
	assert.Equal(t, "h-unfold", ex.Steps[0].Quantifier)

	assert.True(t, ex.Steps[1].HasPrevious)
	assert.Equal(t, term.ID(2), ex.Steps[1].Previous)
	assert.Empty(t, ex.Steps[1].TogetherWith, "h(h(a)) is the previous yield")

	assert.Equal(t, []term.ID{5}, ex.Steps[2].TogetherWith, "k(b) is not part of h(h(h(a)))")
	assert.Equal(t, "r", ex.Steps[2].Quantifier)
	assert.False(t, ex.HasYield)

	var buf bytes.Buffer
	require.NoError(t, ex.Render(&buf, tr.Graph))
	out := buf.String()
	assert.Contains(t, out, "Starting from the following term(s):\n  h(a)")
	assert.Contains(t, out, "Together with the following term(s):\n  k(b)")
	assert.Contains(t, out, "Application of h-unfold")
}

func TestInstantiationPath_ExplainLegacy(t *testing.T) {
	tr, insts := chain(t)
	insts[1].Binding = nil

	ex := New(insts[:2]...).Explain(tr.Graph)
	require.Len(t, ex.Steps, 2)
	assert.True(t, ex.Steps[1].Legacy)
	assert.Equal(t, []term.ID{2}, ex.Steps[1].Blame)
	assert.Equal(t, []term.ID{1}, ex.Steps[1].Bound)
	assert.True(t, ex.HasYield)
	assert.Equal(t, term.ID(3), ex.Yield)

	var buf bytes.Buffer
	require.NoError(t, ex.Render(&buf, tr.Graph))
	assert.Contains(t, buf.String(), "No binding reconstruction for instantiation 2.")
}
