// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_Basic(t *testing.T) {
	t.Run("get and add", func(t *testing.T) {
		c := NewLRU[string, int](10)
		c.Add("a", 1)
		c.Add("b", 2)

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)

		_, ok = c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("update existing key", func(t *testing.T) {
		c := NewLRU[string, int](10)
		c.Add("a", 1)
		assert.False(t, c.Add("a", 2))

		v, _ := c.Get("a")
		assert.Equal(t, 2, v)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("remove", func(t *testing.T) {
		c := NewLRU[string, int](10)
		c.Add("a", 1)
		assert.True(t, c.Remove("a"))
		assert.False(t, c.Remove("a"))
		assert.Equal(t, 0, c.Len())
	})

	t.Run("default capacity", func(t *testing.T) {
		c := NewLRU[int, int](0)
		assert.Equal(t, DefaultCapacity, c.Stats().Capacity)
	})
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Get("a") // b is now least recent

	assert.True(t, c.Add("c", 3))

	_, ok := c.Peek("b")
	assert.False(t, ok, "b should have been evicted")
	assert.Equal(t, []string{"c", "a"}, c.Keys())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestLRU_PeekDoesNotTouchRecency(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Peek("a")
	c.Add("c", 3)

	_, ok := c.Peek("a")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().Hits)
}

func TestLRU_StatsAndPurge(t *testing.T) {
	c := NewLRU[string, int](4)
	c.Add("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("x")

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate(), 1e-9)

	c.Purge()
	s = c.Stats()
	assert.Equal(t, 0, s.Len)
	assert.Equal(t, int64(0), s.Hits)
	assert.Equal(t, 0.0, s.HitRate())
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[string, int](64)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				c.Add(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
