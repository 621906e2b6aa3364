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

	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// oracleGraph holds:
//
//	a(0) a(1) b(2) c(3) k(a)(4) k(a')(5) k(b)(6) =(b, c)(7) k(c)(8) m(a, b)(9)
func oracleGraph(t *testing.T) *term.Graph {
	return newGraph(t,
		termSpec{0, "a", nil},
		termSpec{1, "a", nil},
		termSpec{2, "b", nil},
		termSpec{3, "c", nil},
		termSpec{4, "k", []term.ID{0}},
		termSpec{5, "k", []term.ID{1}},
		termSpec{6, "k", []term.ID{2}},
		termSpec{7, "=", []term.ID{2, 3}},
		termSpec{8, "k", []term.ID{3}},
		termSpec{9, "m", []term.ID{0, 2}},
	)
}

func TestEqualityOracle_Reflexive(t *testing.T) {
	g := oracleGraph(t)
	o := NewEqualityOracle(g, 0)
	for _, id := range g.IDs() {
		assert.True(t, o.Equal(id, id), "term %d", id)
	}
}

func TestEqualityOracle_Equal(t *testing.T) {
	g := oracleGraph(t)

	tests := []struct {
		name string
		a, b term.ID
		want bool
	}{
		{"structural constants", 0, 1, true},
		{"structural application", 4, 5, true},
		{"observed edge", 2, 3, true},
		{"observed edge reversed", 3, 2, true},
		{"congruence through edge", 6, 8, true},
		{"different constants", 0, 2, false},
		{"different symbols", 4, 9, false},
		{"different arguments", 4, 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewEqualityOracle(g, 16)
			assert.Equal(t, tt.want, o.Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, o.Equal(tt.b, tt.a), "symmetric")
		})
	}
}

func TestEqualityOracle_Memo(t *testing.T) {
	g := oracleGraph(t)
	o := NewEqualityOracle(g, 16)

	o.Equal(6, 8)
	before := o.Stats()
	o.Equal(8, 6)
	after := o.Stats()

	assert.Equal(t, before.Hits+1, after.Hits)
	assert.Equal(t, before.Misses, after.Misses)
}

func TestEqualityOracle_Concurrent(t *testing.T) {
	g := oracleGraph(t)
	o := NewEqualityOracle(g, 4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.True(t, o.Equal(6, 8))
				assert.False(t, o.Equal(4, 6))
			}
		}()
	}
	wg.Wait()
}
