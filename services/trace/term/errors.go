// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package term provides the ground-term arena of a solver trace.
//
// Terms are immutable nodes addressed by integer ID. A term references its
// arguments by ID, so the arena never holds ownership cycles. Reverse edges
// (the terms that use a term as an argument) and the relations between terms
// and quantifier instantiations live in side tables owned by the Graph.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. After Freeze() the
// graph is read-only and may be shared between goroutines.
//
// # Lifecycle
//
//  1. Create with NewGraph()
//  2. Add terms bottom-up with Add() and record instantiation relations
//  3. Call Freeze() to finalize
//  4. Query with Get(), Dependents(), IsSubterm(), etc.
package term

import "errors"

// Sentinel errors for term graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("term graph is frozen and cannot be modified")

	// ErrTermNotFound is returned when an ID does not name a term in the graph.
	// Arguments must be added before the terms that use them.
	ErrTermNotFound = errors.New("term not found")

	// ErrDuplicateTerm is returned when adding a term whose ID already exists.
	ErrDuplicateTerm = errors.New("duplicate term ID")

	// ErrMaxTermsExceeded is returned when the graph is at its configured capacity.
	ErrMaxTermsExceeded = errors.New("maximum term count exceeded")

	// ErrInvalidTerm is returned for negative IDs or empty names.
	ErrInvalidTerm = errors.New("invalid term")
)
