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

// maxLayerDepth bounds the chain of frozen layers behind a map. Deeper
// chains are flattened on fork.
const maxLayerDepth = 16

// layer is a frozen set of writes shared between forks.
type layer[K comparable, V any] struct {
	parent  *layer[K, V]
	set     map[K]V
	deleted map[K]struct{}
	depth   int
}

// lookup walks the chain from l towards the root. A nil layer is empty.
func (l *layer[K, V]) lookup(k K) (V, bool) {
	for ; l != nil; l = l.parent {
		if v, ok := l.set[k]; ok {
			return v, true
		}
		if _, ok := l.deleted[k]; ok {
			break
		}
	}
	var zero V
	return zero, false
}

// flatten merges the chain into a single root layer.
func (l *layer[K, V]) flatten() *layer[K, V] {
	merged := make(map[K]V)
	seen := make(map[K]struct{})
	for cur := l; cur != nil; cur = cur.parent {
		for k, v := range cur.set {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			merged[k] = v
		}
		for k := range cur.deleted {
			seen[k] = struct{}{}
		}
	}
	return &layer[K, V]{set: merged, depth: 1}
}

// cowMap is a copy-on-write map. Writes go to a private overlay; fork
// freezes the overlay into a shared layer and hands both sides an empty one,
// so forks never observe each other's later writes.
//
// Values are stored as given. Callers that store slices MUST treat them as
// immutable and replace rather than append in place.
//
// A cowMap is not safe for concurrent use, including concurrent forks.
type cowMap[K comparable, V any] struct {
	base    *layer[K, V]
	set     map[K]V
	deleted map[K]struct{}
	n       int
}

// Get returns the value stored under k.
func (m *cowMap[K, V]) Get(k K) (V, bool) {
	if v, ok := m.set[k]; ok {
		return v, true
	}
	if _, ok := m.deleted[k]; ok {
		var zero V
		return zero, false
	}
	return m.base.lookup(k)
}

// Has reports whether k is present.
func (m *cowMap[K, V]) Has(k K) bool {
	_, ok := m.Get(k)
	return ok
}

// Set stores v under k.
func (m *cowMap[K, V]) Set(k K, v V) {
	if !m.Has(k) {
		m.n++
	}
	if m.set == nil {
		m.set = make(map[K]V)
	}
	m.set[k] = v
	delete(m.deleted, k)
}

// Delete removes k. Keys present in a frozen layer get a tombstone.
func (m *cowMap[K, V]) Delete(k K) {
	if !m.Has(k) {
		return
	}
	m.n--
	delete(m.set, k)
	if _, ok := m.base.lookup(k); ok {
		if m.deleted == nil {
			m.deleted = make(map[K]struct{})
		}
		m.deleted[k] = struct{}{}
	}
}

// Len returns the number of live keys.
func (m *cowMap[K, V]) Len() int {
	return m.n
}

// Range calls fn for each live key until fn returns false. Order is
// unspecified.
func (m *cowMap[K, V]) Range(fn func(K, V) bool) {
	seen := make(map[K]struct{}, m.n)
	for k, v := range m.set {
		seen[k] = struct{}{}
		if !fn(k, v) {
			return
		}
	}
	for k := range m.deleted {
		seen[k] = struct{}{}
	}
	for l := m.base; l != nil; l = l.parent {
		for k, v := range l.set {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if !fn(k, v) {
				return
			}
		}
		for k := range l.deleted {
			seen[k] = struct{}{}
		}
	}
}

// fork returns an independent copy that shares every write made so far.
func (m *cowMap[K, V]) fork() cowMap[K, V] {
	if len(m.set) > 0 || len(m.deleted) > 0 {
		depth := 1
		if m.base != nil {
			depth = m.base.depth + 1
		}
		l := &layer[K, V]{parent: m.base, set: m.set, deleted: m.deleted, depth: depth}
		if depth > maxLayerDepth {
			l = l.flatten()
		}
		m.base = l
		m.set = nil
		m.deleted = nil
	}
	return cowMap[K, V]{base: m.base, n: m.n}
}

// depth reports the number of frozen layers behind the map.
func (m *cowMap[K, V]) depth() int {
	if m.base == nil {
		return 0
	}
	return m.base.depth
}
