// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package path models chains of instantiations where each one consumes a
// term produced by its predecessor, and explains them step by step.
package path

import (
	"slices"

	"github.com/AleutianAI/AxiomTrace/services/trace/binding"
	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
)

// InstantiationPath is an ordered chain of instantiations.
//
// Thread Safety: Not safe for concurrent mutation.
type InstantiationPath struct {
	insts []*quant.Instantiation

	factory  DetectorFactory
	detector CycleDetector
}

// New creates a path holding insts in order.
func New(insts ...*quant.Instantiation) *InstantiationPath {
	return &InstantiationPath{insts: slices.Clone(insts)}
}

// Clone returns a copy of the path sharing the detector factory but not
// the detector.
func (p *InstantiationPath) Clone() *InstantiationPath {
	return &InstantiationPath{insts: slices.Clone(p.insts), factory: p.factory}
}

// Append adds inst at the end.
func (p *InstantiationPath) Append(inst *quant.Instantiation) {
	p.insts = append(p.insts, inst)
	p.detector = nil
}

// Prepend adds inst at the front.
func (p *InstantiationPath) Prepend(inst *quant.Instantiation) {
	p.insts = slices.Insert(p.insts, 0, inst)
	p.detector = nil
}

// AppendWithOverlap joins other onto p starting at the first instantiation
// of other that is not already on p. Nothing is appended when other is
// empty or entirely contained in p.
func (p *InstantiationPath) AppendWithOverlap(other *InstantiationPath) {
	join := slices.IndexFunc(other.insts, func(inst *quant.Instantiation) bool {
		return !slices.Contains(p.insts, inst)
	})
	if join < 0 {
		return
	}
	p.insts = append(p.insts, other.insts[join:]...)
	p.detector = nil
}

// Length returns the number of instantiations.
func (p *InstantiationPath) Length() int {
	return len(p.insts)
}

// Cost returns the summed cost of the instantiations.
func (p *InstantiationPath) Cost() float64 {
	total := 0.0
	for _, inst := range p.insts {
		total += inst.Cost
	}
	return total
}

// Instantiations returns the instantiations in order.
func (p *InstantiationPath) Instantiations() []*quant.Instantiation {
	return slices.Clone(p.insts)
}

// Stat counts the instantiations of one quantifier through one trigger.
type Stat struct {
	Quantifier *quant.Quantifier
	Pattern    *binding.PatternNode
	Count      int
}

// Statistics groups the path by (quantifier, pattern), in order of first
// appearance.
func (p *InstantiationPath) Statistics() []Stat {
	type key struct {
		q   *quant.Quantifier
		pat *binding.PatternNode
	}
	index := make(map[key]int)
	var stats []Stat
	for _, inst := range p.insts {
		k := key{inst.Quantifier, inst.Pattern}
		if i, ok := index[k]; ok {
			stats[i].Count++
			continue
		}
		index[k] = len(stats)
		stats = append(stats, Stat{Quantifier: inst.Quantifier, Pattern: inst.Pattern, Count: 1})
	}
	return stats
}
