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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSample creates a(0), b(1), g(b)(2), f(a, g(b))(3), =(a, b)(4).
func buildSample(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	mustAdd(t, g, 0, "a")
	mustAdd(t, g, 1, "b")
	mustAdd(t, g, 2, "g", 1)
	mustAdd(t, g, 3, "f", 0, 2)
	mustAdd(t, g, 4, "=", 0, 1)
	return g
}

func mustAdd(t *testing.T, g *Graph, id ID, name string, args ...ID) *Term {
	t.Helper()
	tm, err := g.Add(id, name, args...)
	require.NoError(t, err)
	return tm
}

func TestGraph_Add(t *testing.T) {
	t.Run("computes size and dependents", func(t *testing.T) {
		g := buildSample(t)

		f, ok := g.Get(3)
		require.True(t, ok)
		assert.Equal(t, 4, f.Size)
		assert.Equal(t, 2, f.Arity())
		assert.Equal(t, []ID{3, 4}, g.Dependents(0))
		assert.Equal(t, []ID{2, 4}, g.Dependents(1))
		assert.Empty(t, g.Dependents(3))
		assert.Equal(t, 5, g.Len())
	})

	t.Run("splits type annotation", func(t *testing.T) {
		g := NewGraph()
		tm := mustAdd(t, g, 0, "select<Int,Bool>")
		assert.Equal(t, "select", tm.Name)
		assert.Equal(t, "<Int,Bool>", tm.Type)
	})

	t.Run("copies args", func(t *testing.T) {
		g := NewGraph()
		mustAdd(t, g, 0, "a")
		args := []ID{0}
		tm := mustAdd(t, g, 1, "h", args...)
		args[0] = 99
		assert.Equal(t, []ID{0}, tm.Args)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name    string
			id      ID
			term    string
			args    []ID
			wantErr error
		}{
			{"negative id", -1, "x", nil, ErrInvalidTerm},
			{"empty name", 10, "", nil, ErrInvalidTerm},
			{"duplicate", 0, "a", nil, ErrDuplicateTerm},
			{"missing argument", 10, "h", []ID{42}, ErrTermNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				g := buildSample(t)
				_, err := g.Add(tt.id, tt.term, tt.args...)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			})
		}
	})

	t.Run("capacity", func(t *testing.T) {
		g := NewGraph(WithMaxTerms(1))
		mustAdd(t, g, 0, "a")
		_, err := g.Add(1, "b")
		assert.ErrorIs(t, err, ErrMaxTermsExceeded)
	})

	t.Run("frozen", func(t *testing.T) {
		g := buildSample(t)
		g.Freeze()
		assert.True(t, g.IsFrozen())
		assert.Equal(t, "readonly", g.State().String())
		_, err := g.Add(9, "z")
		assert.ErrorIs(t, err, ErrGraphFrozen)
		assert.ErrorIs(t, g.RecordBlame(0, 1), ErrGraphFrozen)
	})
}

func TestGraph_SideTables(t *testing.T) {
	g := buildSample(t)
	require.NoError(t, g.RecordProducedBy(3, 7))
	require.NoError(t, g.RecordBlame(3, 8))
	require.NoError(t, g.RecordBlame(3, 9))
	require.NoError(t, g.RecordBind(0, 8))
	assert.ErrorIs(t, g.RecordBind(77, 8), ErrTermNotFound)

	inst, ok := g.ProducedBy(3)
	assert.True(t, ok)
	assert.Equal(t, InstID(7), inst)
	_, ok = g.ProducedBy(0)
	assert.False(t, ok)
	assert.Equal(t, []InstID{8, 9}, g.BlamedIn(3))
	assert.Equal(t, []InstID{8}, g.BoundIn(0))

	stats := g.Stats()
	assert.Equal(t, 5, stats.TermCount)
	assert.Equal(t, 1, stats.ProducedTerms)
	assert.Equal(t, 2, stats.BlameLinks)
	assert.Equal(t, 1, stats.BindLinks)
	assert.Equal(t, 1, stats.EqualityTerms)
}

func TestGraph_MustGetPanics(t *testing.T) {
	g := NewGraph()
	assert.Panics(t, func() { g.MustGet(3) })
}

func TestGraph_IDs(t *testing.T) {
	g := buildSample(t)
	assert.Equal(t, []ID{0, 1, 2, 3, 4}, g.IDs())
}
