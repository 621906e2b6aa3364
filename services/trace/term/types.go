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

// Default configuration values.
const (
	// DefaultMaxTerms is the default maximum number of terms a graph can hold.
	DefaultMaxTerms = 5_000_000

	// EqualityName is the function symbol of an observed equality term.
	EqualityName = "="
)

// ID identifies a term inside a Graph.
type ID int

// InstID identifies a quantifier instantiation recorded against a Graph.
type InstID int

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting Add calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// Term is an immutable ground term.
//
// Name and Type together form the function symbol: Type holds the generic
// type annotation (for example "<Int>") that was split off the raw name.
// Args reference other terms of the same graph by ID.
type Term struct {
	// ID is the unique identifier inside the graph.
	ID ID

	// Name is the function symbol without its type annotation.
	Name string

	// Type is the generic type annotation, empty when absent.
	Type string

	// Args are the argument terms in order. Empty for constants.
	Args []ID

	// Size is the number of nodes in the subtree rooted at this term,
	// counting shared subterms once per occurrence.
	Size int
}

// Arity returns the number of arguments.
func (t *Term) Arity() int {
	return len(t.Args)
}

// SameSymbol reports whether two terms agree on name, type annotation and arity.
func (t *Term) SameSymbol(other *Term) bool {
	return t.Name == other.Name && t.Type == other.Type && len(t.Args) == len(other.Args)
}

// GraphOptions configures Graph behavior and limits.
type GraphOptions struct {
	// MaxTerms is the maximum number of terms the graph can hold.
	// Default: 5,000,000
	MaxTerms int
}

// DefaultGraphOptions returns sensible defaults for graph configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxTerms: DefaultMaxTerms,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithMaxTerms sets the maximum number of terms the graph can hold.
func WithMaxTerms(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxTerms = n
	}
}

// GraphStats summarizes the contents of a graph.
type GraphStats struct {
	TermCount     int
	MaxTerms      int
	ProducedTerms int
	BlameLinks    int
	BindLinks     int
	EqualityTerms int
	State         GraphState
	FrozenAtMilli int64
}
