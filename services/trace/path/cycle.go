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
	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

// MinRepetitions is the number of repetitions a detector is asked to
// require before it reports a matching loop.
const MinRepetitions = 3

// GeneralizationState describes the generalized form of one loop iteration.
type GeneralizationState interface {
	// IsReplaced reports whether the term was replaced by a generalized
	// placeholder.
	IsReplaced(id term.ID) bool

	// GeneralizedTerms returns the generalized term sequence of one
	// iteration.
	GeneralizedTerms() []term.ID
}

// CycleDetector finds repeating quantifier sequences (matching loops) in a
// path. Implementations are supplied by the caller.
type CycleDetector interface {
	HasCycle() bool
	CycleQuantifiers() []*quant.Quantifier
	Repetitions() int
	Generalization() GeneralizationState
	CycleInstantiations() []*quant.Instantiation
}

// DetectorFactory builds a detector over a path's instantiations.
type DetectorFactory func(insts []*quant.Instantiation, minRepetitions int) CycleDetector

// SetDetectorFactory installs the factory used by the loop queries.
func (p *InstantiationPath) SetDetectorFactory(f DetectorFactory) {
	p.factory = f
	p.detector = nil
}

// cycles returns the detector, creating it on first use. It is nil when no
// factory is installed.
func (p *InstantiationPath) cycles() CycleDetector {
	if p.detector == nil && p.factory != nil {
		p.detector = p.factory(p.insts, MinRepetitions)
	}
	return p.detector
}

// HasCycle reports whether the detector found a matching loop.
func (p *InstantiationPath) HasCycle() bool {
	d := p.cycles()
	return d != nil && d.HasCycle()
}

// LoopStep is one (quantifier, trigger) pair of a matching loop.
type LoopStep struct {
	Quantifier *quant.Quantifier
	Pattern    *binding.PatternNode
}

// TryGetLoop returns one iteration of the matching loop.
func (p *InstantiationPath) TryGetLoop() ([]LoopStep, bool) {
	if !p.HasCycle() {
		return nil, false
	}
	d := p.cycles()
	n := len(d.CycleQuantifiers())
	var loop []LoopStep
	for _, inst := range d.CycleInstantiations() {
		if len(loop) == n {
			break
		}
		loop = append(loop, LoopStep{Quantifier: inst.Quantifier, Pattern: inst.Pattern})
	}
	return loop, true
}

// TryGetCyclePath returns a new path over the loop's instantiations.
func (p *InstantiationPath) TryGetCyclePath() (*InstantiationPath, bool) {
	if !p.HasCycle() {
		return nil, false
	}
	cyc := New(p.cycles().CycleInstantiations()...)
	cyc.factory = p.factory
	return cyc, true
}

// NumRepetitions returns how often the loop repeats, 0 without a loop.
func (p *InstantiationPath) NumRepetitions() int {
	if !p.HasCycle() {
		return 0
	}
	return p.cycles().Repetitions()
}
