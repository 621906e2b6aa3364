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
	"strings"

	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// NodeKind distinguishes the two shapes of a pattern node.
type NodeKind int

const (
	// KindVariable is a free-variable placeholder. It matches any term.
	KindVariable NodeKind = iota

	// KindApplication is a function symbol applied to pattern arguments.
	KindApplication
)

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	switch k {
	case KindVariable:
		return "variable"
	case KindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// PatternNode is one node of a trigger pattern.
//
// Nodes are compared by pointer identity. A pattern may reuse the same
// variable node at several positions (f(x, g(x))); every occurrence then
// shares one binding, and a second, different match at that node is
// recorded as an equality.
//
// PatternNode values MUST NOT be mutated once a BindingInfo references them.
type PatternNode struct {
	Kind NodeKind

	// Name is the variable name or the function symbol.
	Name string

	// Type is the generic type annotation of an application, e.g. "<Int>".
	Type string

	// Args are the argument patterns of an application.
	Args []*PatternNode
}

// Var creates a free-variable node.
func Var(name string) *PatternNode {
	return &PatternNode{Kind: KindVariable, Name: name}
}

// App creates an application node. A "<...>" suffix on name becomes the
// type annotation, as with term.SplitName.
func App(name string, args ...*PatternNode) *PatternNode {
	base, typ := term.SplitName(name)
	return &PatternNode{
		Kind: KindApplication,
		Name: base,
		Type: typ,
		Args: args,
	}
}

// IsVariable reports whether p is a free-variable placeholder.
func (p *PatternNode) IsVariable() bool {
	return p.Kind == KindVariable
}

// Arity returns the number of pattern arguments.
func (p *PatternNode) Arity() int {
	return len(p.Args)
}

// Compatible reports whether t can be matched at p: p is a variable, or the
// name, type annotation and arity agree.
func (p *PatternNode) Compatible(t *term.Term) bool {
	if p.IsVariable() {
		return true
	}
	return p.Name == t.Name && p.Type == t.Type && len(p.Args) == len(t.Args)
}

// PreOrder returns every occurrence of every node in pre-order. Shared
// nodes appear once per occurrence.
func (p *PatternNode) PreOrder() []*PatternNode {
	var out []*PatternNode
	var walk func(n *PatternNode)
	walk = func(n *PatternNode) {
		out = append(out, n)
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(p)
	return out
}

// Schedule returns each distinct node once, ordered by its last occurrence
// in the pre-order walk.
//
// Description:
//
//	Every parent occurrence precedes its children in pre-order, so visiting
//	nodes in this order guarantees that all obligations for a node have
//	been queued by the time the node itself is visited. For patterns
//	without shared nodes the schedule equals the pre-order.
func (p *PatternNode) Schedule() []*PatternNode {
	all := p.PreOrder()
	last := make(map[*PatternNode]int, len(all))
	for i, n := range all {
		last[n] = i
	}
	out := make([]*PatternNode, 0, len(last))
	for i, n := range all {
		if last[n] == i {
			out = append(out, n)
		}
	}
	return out
}

// Variables returns the distinct variable nodes in schedule order.
func (p *PatternNode) Variables() []*PatternNode {
	var vars []*PatternNode
	for _, n := range p.Schedule() {
		if n.IsVariable() {
			vars = append(vars, n)
		}
	}
	return vars
}

// String renders the pattern, e.g. "f(?x, g(?y))".
func (p *PatternNode) String() string {
	var sb strings.Builder
	p.write(&sb)
	return sb.String()
}

func (p *PatternNode) write(sb *strings.Builder) {
	if p.IsVariable() {
		sb.WriteByte('?')
		sb.WriteString(p.Name)
		return
	}
	sb.WriteString(p.Name)
	sb.WriteString(p.Type)
	if len(p.Args) == 0 {
		return
	}
	sb.WriteByte('(')
	for i, a := range p.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		a.write(sb)
	}
	sb.WriteByte(')')
}
