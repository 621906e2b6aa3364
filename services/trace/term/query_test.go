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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		raw, name, typ string
	}{
		{"select<Int,Bool>", "select", "<Int,Bool>"},
		{"f", "f", ""},
		{"<", "<", ""},
		{"<=", "<=", ""},
		{"a<>", "a", "<>"},
		{"weird<", "weird<", ""},
		{"Seq<List<Int>>", "Seq", "<List<Int>>"},
		{"x>", "x>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			name, typ := SplitName(tt.raw)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.typ, typ)
		})
	}
}

func TestGraph_IsSubterm(t *testing.T) {
	g := buildSample(t)

	assert.True(t, g.IsSubterm(3, 3), "reflexive")
	assert.True(t, g.IsSubterm(3, 0))
	assert.True(t, g.IsSubterm(3, 1), "nested argument")
	assert.True(t, g.IsSubterm(3, 2))
	assert.False(t, g.IsSubterm(2, 0))
	assert.False(t, g.IsSubterm(0, 3), "larger term cannot be inside")
	assert.False(t, g.IsSubterm(3, 99))
	assert.False(t, g.IsSubterm(99, 3))
}

func TestGraph_Compatible(t *testing.T) {
	g := buildSample(t)
	mustAdd(t, g, 5, "f", 1, 2)
	mustAdd(t, g, 6, "f", 1)
	mustAdd(t, g, 7, "f<Int>", 1, 2)

	assert.True(t, g.Compatible(3, 5))
	assert.False(t, g.Compatible(3, 6), "arity differs")
	assert.False(t, g.Compatible(3, 7), "type differs")
	assert.False(t, g.Compatible(3, 42))
}

func TestGraph_Format(t *testing.T) {
	g := buildSample(t)
	assert.Equal(t, "f(a, g(b))", g.Format(3))
	assert.Equal(t, "f(a, g(...))", g.FormatDepth(3, 1))
	assert.Equal(t, "f(...)", g.FormatDepth(3, 0))
	assert.Equal(t, "#42", g.Format(42))
}

func TestGraph_EqualityPartner(t *testing.T) {
	g := buildSample(t)

	other, ok := g.EqualityPartner(4, 0)
	assert.True(t, ok)
	assert.Equal(t, ID(1), other)

	other, ok = g.EqualityPartner(4, 1)
	assert.True(t, ok)
	assert.Equal(t, ID(0), other)

	_, ok = g.EqualityPartner(4, 2)
	assert.False(t, ok)
	_, ok = g.EqualityPartner(3, 0)
	assert.False(t, ok, "not an equality term")
}
