// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package path

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// RenderDepth is the term depth used by Render.
const RenderDepth = 8

// Render writes a plain-text walkthrough of ex.
func (ex Explanation) Render(w io.Writer, graph *term.Graph) error {
	r := &renderer{w: w, graph: graph}

	if ex.Loop != nil {
		r.line("Possible matching loop found!")
		r.line("Number of repetitions: %d", ex.Loop.Repetitions)
		r.line("Length: %d", len(ex.Loop.Quantifiers))
		r.line("Loop: %s", strings.Join(ex.Loop.Quantifiers, " -> "))
		r.line("")
	}

	r.line("Path explanation:")
	r.line("Length: %d", ex.Length)

	for i, s := range ex.Steps {
		r.line("")
		switch {
		case s.Legacy:
			r.line("No binding reconstruction for instantiation %d.", s.Instantiation)
			r.section("Blamed terms:", s.Blame)
			r.section("Bound terms:", s.Bound)
		case i == 0:
			r.section("Starting from the following term(s):", s.StartingTerms)
		default:
			if s.HasPrevious {
				r.section("This instantiation yields:", []term.ID{s.Previous})
			}
			if len(s.Generalized) > 0 {
				r.section("Generalized subterms:", s.Generalized)
			}
			if len(s.TogetherWith) > 0 {
				r.section("Together with the following term(s):", s.TogetherWith)
			}
		}

		if len(s.Equalities) > 0 {
			r.line("Relevant equalities:")
			for _, eq := range s.Equalities {
				parts := []string{r.term(eq.Current)}
				for _, old := range eq.Old {
					parts = append(parts, r.term(old))
				}
				r.line("  %s  [%s]", strings.Join(parts, " = "), eq.Pattern)
			}
		}

		r.line("Application of %s", s.Quantifier)
	}

	if ex.HasYield {
		r.line("")
		r.section("This instantiation yields:", []term.ID{ex.Yield})
	}
	return r.err
}

type renderer struct {
	w     io.Writer
	graph *term.Graph
	err   error
}

func (r *renderer) line(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *renderer) section(title string, ids []term.ID) {
	r.line(title)
	for _, id := range ids {
		r.line("  %s", r.term(id))
	}
}

func (r *renderer) term(id term.ID) string {
	return r.graph.FormatDepth(id, RenderDepth)
}
