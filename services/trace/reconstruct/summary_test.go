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
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

func TestSummarize(t *testing.T) {
	f := simpleFixture(t)
	res, err := New(f.trace.Graph).Reconstruct(context.Background(), f.insts[0])
	require.NoError(t, err)

	s := Summarize(f.trace.Graph, f.insts[0], res)

	assert.True(t, s.Found)
	assert.Equal(t, "q", s.Quantifier)
	assert.Equal(t, "f(?x, g(?y))", s.Pattern)
	assert.Equal(t, []string{"f(a, g(b))"}, s.StartingTerms)
	assert.Equal(t, []BoundTerm{
		{Pattern: "f(?x, g(?y))", TermID: 3, Term: "f(a, g(b))"},
		{Pattern: "?x", TermID: 0, Term: "a"},
		{Pattern: "g(?y)", TermID: 2, Term: "g(b)"},
		{Pattern: "?y", TermID: 1, Term: "b"},
	}, s.Bindings)
	assert.Len(t, s.FreeVariables, 2)
	assert.Empty(t, s.Equalities)

	require.Len(t, s.Contexts, 4)
	assert.Empty(t, s.Contexts[0].Paths)
	assert.Equal(t, [][]string{{"f(a, g(b))", "g(b)"}}, s.Contexts[3].Paths)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"starting_terms":["f(a, g(b))"]`)
}

func TestSummarize_NotFound(t *testing.T) {
	f := newFixture(t,
		[]termSpec{{0, "t", nil}, {1, "u", nil}, {2, "h", ids(0)}},
		binding.App("h", binding.Var("x")),
		[2][]term.ID{ids(2), ids(1)},
	)
	res, err := New(f.trace.Graph).Reconstruct(context.Background(), f.insts[0])
	require.NoError(t, err)

	s := Summarize(f.trace.Graph, f.insts[0], res)
	assert.False(t, s.Found)
	assert.Empty(t, s.Bindings)
	assert.Equal(t, map[string]int{"unresolved": 1}, s.Rejected)
}
