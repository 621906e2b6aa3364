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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

type termSpec struct {
	id   term.ID
	name string
	args []term.ID
}

func newGraph(t *testing.T, specs ...termSpec) *term.Graph {
	t.Helper()
	g := term.NewGraph()
	for _, s := range specs {
		_, err := g.Add(s.id, s.name, s.args...)
		require.NoError(t, err)
	}
	g.Freeze()
	return g
}

// single asserts that exactly one hypothesis was produced and returns it.
func single(t *testing.T, hs []*BindingInfo) *BindingInfo {
	t.Helper()
	require.Len(t, hs, 1)
	return hs[0]
}

// simpleGraph holds a(0), b(1), g(b)(2), f(a, g(b))(3).
func simpleGraph(t *testing.T) *term.Graph {
	return newGraph(t,
		termSpec{0, "a", nil},
		termSpec{1, "b", nil},
		termSpec{2, "g", []term.ID{1}},
		termSpec{3, "f", []term.ID{0, 2}},
	)
}

func TestPatternNode_Compatible(t *testing.T) {
	g := newGraph(t,
		termSpec{0, "a", nil},
		termSpec{1, "f", []term.ID{0, 0}},
		termSpec{2, "f<Int>", []term.ID{0, 0}},
		termSpec{3, "f", []term.ID{0}},
	)
	f := App("f", Var("x"), Var("y"))

	assert.True(t, f.Compatible(g.MustGet(1)))
	assert.False(t, f.Compatible(g.MustGet(2)), "type annotation differs")
	assert.False(t, f.Compatible(g.MustGet(3)), "arity differs")
	assert.True(t, App("f<Int>", Var("x"), Var("y")).Compatible(g.MustGet(2)))

	for _, id := range g.IDs() {
		assert.True(t, Var("z").Compatible(g.MustGet(id)), "variable matches term %d", id)
	}
}

func TestPatternNode_Schedule(t *testing.T) {
	x := Var("x")
	gx := App("g", x)
	f := App("f", x, gx)

	assert.Equal(t, []*PatternNode{f, x, gx, x}, f.PreOrder())
	assert.Equal(t, []*PatternNode{f, gx, x}, f.Schedule())
	assert.Equal(t, []*PatternNode{x}, f.Variables())
	assert.Equal(t, "f(?x, g(?x))", f.String())
	assert.Equal(t, "application", f.Kind.String())
}

func TestAllNextMatches_FreeVariableIdentity(t *testing.T) {
	g := simpleGraph(t)
	x := Var("x")
	b := New(g, App("f", x, Var("y")), []term.ID{3, 0})

	next := single(t, b.AllNextMatches(x))
	assert.Equal(t, []term.ID{3, 0}, next.UnusedBlameTerms())
	_, bound := next.Binding(x)
	assert.False(t, bound, "nothing was queued for x")
}

func TestAllNextMatches_Branching(t *testing.T) {
	g := newGraph(t,
		termSpec{0, "a", nil},
		termSpec{1, "b", nil},
		termSpec{2, "h", []term.ID{0}},
		termSpec{3, "h", []term.ID{1}},
		termSpec{4, "k", []term.ID{0}},
	)
	h := App("h", Var("x"))

	t.Run("one hypothesis per compatible term", func(t *testing.T) {
		b := New(g, h, []term.ID{2, 4, 3})
		hs := b.AllNextMatches(h)
		require.Len(t, hs, 2)

		first, _ := hs[0].Binding(h)
		second, _ := hs[1].Binding(h)
		assert.Equal(t, term.ID(2), first)
		assert.Equal(t, term.ID(3), second)
		assert.Equal(t, []term.ID{4, 3}, hs[0].UnusedBlameTerms())
		assert.Equal(t, []term.ID{2, 4}, hs[1].UnusedBlameTerms())

		assert.Equal(t, []term.ID{2, 4, 3}, b.UnusedBlameTerms(), "receiver unchanged")
		_, bound := b.Binding(h)
		assert.False(t, bound)
	})

	t.Run("no compatible term", func(t *testing.T) {
		b := New(g, h, []term.ID{4})
		assert.Empty(t, b.AllNextMatches(h))
	})

	t.Run("duplicate blame ids branch once", func(t *testing.T) {
		b := New(g, h, []term.ID{2, 2})
		next := single(t, b.AllNextMatches(h))
		assert.Equal(t, []term.ID{2}, next.UnusedBlameTerms())
	})
}

func TestAllNextMatches_MonotonicConsumption(t *testing.T) {
	g := newGraph(t,
		termSpec{0, "a", nil},
		termSpec{1, "h", []term.ID{0}},
		termSpec{2, "k", []term.ID{0}},
		termSpec{3, "h", []term.ID{2}},
	)
	h := App("h", Var("x"))
	k := App("k", Var("y"))
	b := New(g, App("p", h, k), []term.ID{1, 2, 3})

	for _, afterH := range b.AllNextMatches(h) {
		claimed, _ := afterH.Binding(h)
		assert.NotContains(t, afterH.UnusedBlameTerms(), claimed)

		for _, afterK := range afterH.AllNextMatches(k) {
			unused := afterK.UnusedBlameTerms()
			assert.NotContains(t, unused, claimed, "consumed term reappeared")
			assert.Subset(t, afterH.UnusedBlameTerms(), unused)
			assert.Len(t, unused, len(afterH.UnusedBlameTerms())-1)
		}
	}
}

func TestExample_SimpleMatch(t *testing.T) {
	g := simpleGraph(t)
	x, y := Var("x"), Var("y")
	gy := App("g", y)
	f := App("f", x, gy)

	b := New(g, f, []term.ID{3})
	b = single(t, b.AllNextMatches(f))
	b = single(t, b.AllNextMatches(x))

	require.True(t, b.HasOutstanding(gy))
	assert.Empty(t, b.AllNextMatches(gy), "no blame term left to claim")
	b = b.Propagate(gy)
	assert.False(t, b.HasOutstanding(gy))
	b = single(t, b.AllNextMatches(y))

	require.True(t, b.Finalize([]term.ID{3}, []term.ID{0, 1}))

	assert.Equal(t, map[*PatternNode]term.ID{x: 0, y: 1, f: 3, gy: 2}, b.Bindings())
	assert.Empty(t, b.UnusedBlameTerms())
	assert.Empty(t, b.Equalities())
	assert.Equal(t, []term.ID{3}, b.DistinctBlameTerms())
	assert.Equal(t, map[*PatternNode]term.ID{x: 0, y: 1}, b.BindingsToFreeVars())

	assert.Empty(t, b.MatchContext(3))
	assert.Equal(t, []Path{{3}}, b.MatchContext(0))
	assert.Equal(t, []Path{{3}}, b.MatchContext(2))
	assert.Equal(t, []Path{{3, 2}}, b.MatchContext(1))
}

func TestExample_ForcedEquality(t *testing.T) {
	t.Run("shared variable rebound", func(t *testing.T) {
		g := newGraph(t,
			termSpec{0, "a", nil},
			termSpec{1, "b", nil},
			termSpec{2, "h", []term.ID{0, 1}},
		)
		x := Var("x")
		h := App("h", x, x)

		b := New(g, h, []term.ID{2})
		b = single(t, b.AllNextMatches(h))
		b = single(t, b.AllNextMatches(x))

		assert.Equal(t, []term.ID{0}, b.Equality(x))
		bound, _ := b.Binding(x)
		assert.Equal(t, term.ID(1), bound)
	})

	t.Run("application claimed after structural obligation", func(t *testing.T) {
		// a(0) b(1) g(a)(2) f(g(a))(3) g(b)(4)
		g := newGraph(t,
			termSpec{0, "a", nil},
			termSpec{1, "b", nil},
			termSpec{2, "g", []term.ID{0}},
			termSpec{3, "f", []term.ID{2}},
			termSpec{4, "g", []term.ID{1}},
		)
		y := Var("y")
		gy := App("g", y)
		f := App("f", gy)
		blame := []term.ID{3, 4}

		b := New(g, f, blame)
		b = single(t, b.AllNextMatches(f))

		structural := b.Propagate(gy)
		structural = single(t, structural.AllNextMatches(y))
		assert.False(t, structural.Finalize(blame, []term.ID{1}), "g(b) left unused")

		claimed := single(t, b.AllNextMatches(gy))
		assert.Equal(t, []term.ID{2}, claimed.Equality(gy))
		bound, _ := claimed.Binding(gy)
		assert.Equal(t, term.ID(4), bound)

		claimed = single(t, claimed.AllNextMatches(y))
		assert.Equal(t, []term.ID{0}, claimed.Equality(y))
		require.True(t, claimed.Finalize(blame, []term.ID{1}))
		assert.Equal(t, []term.ID{3, 4}, claimed.DistinctBlameTerms())
	})
}

func TestPropagate_IncompatibleObligation(t *testing.T) {
	// a(0) h(a)(1) f(h(a))(2)
	g := newGraph(t,
		termSpec{0, "a", nil},
		termSpec{1, "h", []term.ID{0}},
		termSpec{2, "f", []term.ID{1}},
	)
	x := Var("x")
	gx := App("g", x)
	f := App("f", gx)

	b := New(g, f, []term.ID{2})
	b = single(t, b.AllNextMatches(f))
	require.True(t, b.HasOutstanding(gx))

	assert.Nil(t, b.Propagate(gx), "g(x) cannot bind h(a)")
	assert.Empty(t, b.AllNextMatches(gx))
	_, bound := b.Binding(gx)
	assert.False(t, bound)
}

func TestPropagate_CompatibleObligation(t *testing.T) {
	g := simpleGraph(t)
	y := Var("y")
	gy := App("g", y)
	f := App("f", Var("x"), gy)

	b := New(g, f, []term.ID{3})
	b = single(t, b.AllNextMatches(f))

	next := b.Propagate(gy)
	require.NotNil(t, next)
	bound, _ := next.Binding(gy)
	assert.Equal(t, term.ID(2), bound)
	assert.True(t, next.HasOutstanding(y))
}

func TestMatchContext_Accumulation(t *testing.T) {
	// t(0) r(t)(1) s(t)(2) p(r(t), s(t))(3)
	g := newGraph(t,
		termSpec{0, "t", nil},
		termSpec{1, "r", []term.ID{0}},
		termSpec{2, "s", []term.ID{0}},
		termSpec{3, "p", []term.ID{1, 2}},
	)
	x := Var("x")
	r := App("r", x)
	s := App("s", x)
	p := App("p", r, s)

	b := New(g, p, []term.ID{3})
	for _, node := range p.Schedule() {
		if node == p {
			b = single(t, b.AllNextMatches(node))
			continue
		}
		if node.IsVariable() {
			b = single(t, b.AllNextMatches(node))
			continue
		}
		b = b.Propagate(node)
	}

	assert.ElementsMatch(t, []Path{{3, 1}, {3, 2}}, b.MatchContext(0))
	assert.Empty(t, b.Equality(x), "same term reached twice is not an equality")
	assert.True(t, b.Finalize([]term.ID{3}, []term.ID{0}))
}

func TestMergeContext_Deduplicates(t *testing.T) {
	g := simpleGraph(t)
	b := New(g, Var("x"), nil)

	b.mergeContext(0, []Path{{3}})
	b.mergeContext(0, []Path{{3}, {2}})
	b.mergeContext(0, nil)

	assert.Equal(t, []Path{{3}, {2}}, b.MatchContext(0))
}

func TestClone_Isolation(t *testing.T) {
	g := simpleGraph(t)
	x := Var("x")
	f := App("f", x, Var("y"))
	b := New(g, f, []term.ID{3})

	parent := single(t, b.AllNextMatches(f))
	left := parent.Clone()
	right := parent.Clone()

	left.bindings.Set(x, 0)
	left.mergeContext(1, []Path{{9}})
	right.bindings.Set(x, 1)

	lx, _ := left.Binding(x)
	rx, _ := right.Binding(x)
	assert.Equal(t, term.ID(0), lx)
	assert.Equal(t, term.ID(1), rx)
	_, ok := parent.Binding(x)
	assert.False(t, ok, "parent must not see writes of its clones")
	assert.Empty(t, right.MatchContext(1))

	ctx := left.MatchContext(1)
	ctx[0][0] = 42
	assert.Equal(t, []Path{{9}}, left.MatchContext(1), "accessor returns a copy")
}

func TestClone_SeparateClonesConcurrentUse(t *testing.T) {
	g := simpleGraph(t)
	x, y := Var("x"), Var("y")
	f := App("f", x, y)
	parent := single(t, New(g, f, []term.ID{3}).AllNextMatches(f))

	// Clone writes to its receiver, so clones are taken on one goroutine.
	clones := make([]*BindingInfo, 8)
	for i := range clones {
		clones[i] = parent.Clone()
	}

	accepted := make([]bool, len(clones))
	var wg sync.WaitGroup
	for i, c := range clones {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, node := range []*PatternNode{x, y} {
				next := c.AllNextMatches(node)
				if len(next) != 1 {
					return
				}
				c = next[0]
			}
			accepted[i] = c.Finalize([]term.ID{3}, []term.ID{0, 2})
		}()
	}
	wg.Wait()

	for i, ok := range accepted {
		assert.True(t, ok, "clone %d", i)
	}
	_, bound := parent.Binding(x)
	assert.False(t, bound)
}

func TestNew_PanicsOnUnknownBlame(t *testing.T) {
	g := simpleGraph(t)
	assert.Panics(t, func() { New(g, Var("x"), []term.ID{99}) })
	assert.Panics(t, func() { New(nil, Var("x"), nil) })
}
