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
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetOrCompute(t *testing.T) {
	c := NewCache(4)
	var calls atomic.Int32
	fn := func(context.Context) (*Result, error) {
		calls.Add(1)
		return &Result{InstantiationID: 7}, nil
	}

	first, err := c.GetOrCompute(context.Background(), "k", fn)
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), "k", fn)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), c.Stats().Hits)

	assert.True(t, c.Invalidate("k"))
	_, err = c.GetOrCompute(context.Background(), "k", fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := NewCache(4)
	boom := errors.New("boom")
	var calls atomic.Int32
	fn := func(context.Context) (*Result, error) {
		calls.Add(1)
		return nil, boom
	}

	_, err := c.GetOrCompute(context.Background(), "k", fn)
	assert.ErrorIs(t, err, boom)
	_, err = c.GetOrCompute(context.Background(), "k", fn)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_Reconstruct(t *testing.T) {
	f := simpleFixture(t)
	r := New(f.trace.Graph)
	c := NewCache(0)

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Reconstruct(context.Background(), r, "simple", f.insts[0])
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results[1:] {
		assert.Same(t, results[0], res)
	}
	assert.Equal(t, "simple/1", Key("simple", f.insts[0]))

	_, err := c.Reconstruct(context.Background(), r, "simple", nil)
	assert.ErrorIs(t, err, ErrNilInstantiation)

	c.Purge()
	assert.Equal(t, 0, c.Stats().Len)
}
