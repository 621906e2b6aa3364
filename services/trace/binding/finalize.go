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
	"slices"

	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// Outcome classifies the result of finalizing a hypothesis.
type Outcome int

const (
	// OutcomeAccepted means the hypothesis is a valid reconstruction.
	OutcomeAccepted Outcome = iota

	// OutcomeUnusedBlame means some blame terms were never claimed.
	OutcomeUnusedBlame

	// OutcomeCountMismatch means the anchored bindings do not account for
	// exactly the bound and blame terms.
	OutcomeCountMismatch

	// OutcomeUnresolved means a variable is bound to a term that cannot be
	// proven equal to any bound term.
	OutcomeUnresolved
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeUnusedBlame:
		return "unused_blame"
	case OutcomeCountMismatch:
		return "count_mismatch"
	case OutcomeUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Finalize validates a completed hypothesis.
//
// Description:
//
//	Returns false when blame terms are left over, or when the number of
//	anchored bindings differs from len(bound)+len(blame). Anchored bindings
//	are the variable bindings plus the bindings to terms claimed from the
//	blame set, whether or not the term was also reached as a subterm.
//
//	Each variable bound to a term outside bound is then resolved with the
//	equality oracle: the first bound term proven equal replaces the
//	binding and the old term is recorded as an equality of the variable.
//	When no bound term qualifies the hypothesis is rejected.
//
//	The hypothesis is modified in place and is terminal afterwards. A false
//	result means "discard", never a fault.
func (b *BindingInfo) Finalize(blame, bound []term.ID) bool {
	return b.FinalizeOutcome(blame, bound) == OutcomeAccepted
}

// FinalizeOutcome is Finalize reporting why a hypothesis was rejected.
func (b *BindingInfo) FinalizeOutcome(blame, bound []term.ID) Outcome {
	if len(b.unused) > 0 {
		return OutcomeUnusedBlame
	}

	if b.anchoredCount() != len(bound)+len(blame) {
		return OutcomeCountMismatch
	}

	for _, v := range b.pattern.Variables() {
		cur, ok := b.bindings.Get(v)
		if !ok || slices.Contains(bound, cur) {
			continue
		}

		resolved := false
		for _, candidate := range bound {
			if b.oracle.Equal(cur, candidate) {
				eqs, _ := b.equalities.Get(v)
				b.equalities.Set(v, appendCopy(eqs, cur))
				b.bindings.Set(v, candidate)
				resolved = true
				break
			}
		}
		if !resolved {
			return OutcomeUnresolved
		}
	}

	return OutcomeAccepted
}

// anchoredCount counts variable bindings and bindings to claimed blame
// terms. A claimed term also reached as a subterm still counts.
func (b *BindingInfo) anchoredCount() int {
	n := 0
	b.bindings.Range(func(p *PatternNode, id term.ID) bool {
		if p.IsVariable() || b.claimed.Has(id) {
			n++
		}
		return true
	})
	return n
}
