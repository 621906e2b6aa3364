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
	"strconv"
	"strings"
)

// SplitName separates a raw function symbol from its generic type annotation.
//
// The annotation starts at the first '<' that is not the first character and
// must run to the end of the name. Names without an annotation are returned
// unchanged with an empty type, so relational symbols such as "<" or "<="
// stay intact.
//
// Example:
//
//	SplitName("select<Int,Bool>") // "select", "<Int,Bool>"
//	SplitName("f")                // "f", ""
func SplitName(raw string) (name, typ string) {
	if !strings.HasSuffix(raw, ">") {
		return raw, ""
	}
	idx := strings.IndexByte(raw[1:], '<')
	if idx < 0 {
		return raw, ""
	}
	idx++
	if idx == len(raw)-1 {
		return raw, ""
	}
	return raw[:idx], raw[idx:]
}

// Compatible reports whether two terms of g share name, type and arity.
// Missing terms are never compatible.
func (g *Graph) Compatible(a, b ID) bool {
	ta, ok := g.terms[a]
	if !ok {
		return false
	}
	tb, ok := g.terms[b]
	if !ok {
		return false
	}
	return ta.SameSymbol(tb)
}

// IsSubterm reports whether inner occurs in the subtree rooted at outer.
//
// Description:
//
//	A term is a subterm of itself. Terms larger than outer are rejected
//	without a traversal; otherwise the subtree is searched breadth first,
//	visiting every shared subterm once.
func (g *Graph) IsSubterm(outer, inner ID) bool {
	if outer == inner {
		return true
	}
	to, ok := g.terms[outer]
	if !ok {
		return false
	}
	ti, ok := g.terms[inner]
	if !ok || ti.Size > to.Size {
		return false
	}

	seen := map[ID]struct{}{outer: {}}
	queue := []ID{outer}
	for len(queue) > 0 {
		cur := g.terms[queue[0]]
		queue = queue[1:]
		for _, a := range cur.Args {
			if a == inner {
				return true
			}
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			if g.terms[a].Size > ti.Size {
				queue = append(queue, a)
			}
		}
	}
	return false
}

// Format renders a term as "f(a, g(b))". Unknown IDs render as "#<id>".
func (g *Graph) Format(id ID) string {
	return g.FormatDepth(id, -1)
}

// FormatDepth renders a term like Format but elides subterms nested deeper
// than depth with "...". A negative depth means no limit.
func (g *Graph) FormatDepth(id ID, depth int) string {
	var sb strings.Builder
	g.format(&sb, id, depth)
	return sb.String()
}

func (g *Graph) format(sb *strings.Builder, id ID, depth int) {
	t, ok := g.terms[id]
	if !ok {
		sb.WriteByte('#')
		sb.WriteString(strconv.Itoa(int(id)))
		return
	}
	sb.WriteString(t.Name)
	sb.WriteString(t.Type)
	if len(t.Args) == 0 {
		return
	}
	sb.WriteByte('(')
	if depth == 0 {
		sb.WriteString("...")
	} else {
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			g.format(sb, a, depth-1)
		}
	}
	sb.WriteByte(')')
}

// EqualityPartner returns the other argument of eq when eq is an observed
// equality term "=(a, b)" that has id as one of its arguments.
func (g *Graph) EqualityPartner(eq, id ID) (ID, bool) {
	t, ok := g.terms[eq]
	if !ok || t.Name != EqualityName || len(t.Args) != 2 {
		return 0, false
	}
	switch id {
	case t.Args[0]:
		return t.Args[1], true
	case t.Args[1]:
		return t.Args[0], true
	default:
		return 0, false
	}
}
