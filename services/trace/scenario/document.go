// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scenario loads trace fixtures: YAML or JSON documents describing a
// term graph, quantifiers with trigger patterns, instantiations and paths.
//
// Example document:
//
//	name: simple
//	terms:
//	  - {id: 0, name: a}
//	  - {id: 1, name: b}
//	  - {id: 2, name: g, args: [1]}
//	  - {id: 3, name: f, args: [0, 2]}
//	quantifiers:
//	  - id: q1
//	    patterns:
//	      - name: f
//	        args: [{var: x}, {name: g, args: [{var: y}]}]
//	instantiations:
//	  - {id: 1, quantifier: q1, blame: [3], bound: [0, 1]}
package scenario

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxDocumentSize is the largest scenario document accepted (16MB).
const MaxDocumentSize = 16 * 1024 * 1024

// ErrInvalidScenario wraps every validation and build failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// scenarioValidate is shared by all documents.
var scenarioValidate = validator.New()

// Document is the serialized form of a scenario.
type Document struct {
	Name           string             `yaml:"name" json:"name" validate:"required"`
	Description    string             `yaml:"description,omitempty" json:"description,omitempty"`
	Terms          []TermDoc          `yaml:"terms" json:"terms" validate:"required,min=1,dive"`
	Quantifiers    []QuantifierDoc    `yaml:"quantifiers" json:"quantifiers" validate:"dive"`
	Instantiations []InstantiationDoc `yaml:"instantiations" json:"instantiations" validate:"dive"`

	// Paths lists instantiation chains by instantiation ID.
	Paths [][]int `yaml:"paths,omitempty" json:"paths,omitempty" validate:"dive,min=1"`

	// digest is the SHA-256 of the raw document, set by Parse.
	digest string
}

// TermDoc is one ground term. Args reference other term IDs.
type TermDoc struct {
	ID   int    `yaml:"id" json:"id" validate:"gte=0"`
	Name string `yaml:"name" json:"name" validate:"required"`
	Args []int  `yaml:"args,omitempty" json:"args,omitempty"`
}

// QuantifierDoc is one quantifier.
type QuantifierDoc struct {
	ID       string       `yaml:"id" json:"id" validate:"required"`
	Name     string       `yaml:"name,omitempty" json:"name,omitempty"`
	Body     *int         `yaml:"body,omitempty" json:"body,omitempty"`
	Patterns []PatternDoc `yaml:"patterns" json:"patterns" validate:"required,min=1,dive"`
}

// PatternDoc is a pattern node: either {var: x} or {name: f, args: [...]}.
// Within one pattern, variables with the same name are the same node.
type PatternDoc struct {
	Var  string       `yaml:"var,omitempty" json:"var,omitempty" validate:"required_without=Name,excluded_with=Name"`
	Name string       `yaml:"name,omitempty" json:"name,omitempty" validate:"required_without=Var"`
	Args []PatternDoc `yaml:"args,omitempty" json:"args,omitempty" validate:"dive"`
}

// InstantiationDoc is one quantifier instantiation.
type InstantiationDoc struct {
	ID         int    `yaml:"id" json:"id" validate:"gte=0"`
	Quantifier string `yaml:"quantifier" json:"quantifier" validate:"required"`

	// Pattern indexes the quantifier's patterns. Default: 0.
	Pattern int `yaml:"pattern,omitempty" json:"pattern,omitempty" validate:"gte=0"`

	Blame    []int   `yaml:"blame" json:"blame" validate:"required,min=1"`
	Bound    []int   `yaml:"bound,omitempty" json:"bound,omitempty"`
	Yields   *int    `yaml:"yields,omitempty" json:"yields,omitempty"`
	Produces []int   `yaml:"produces,omitempty" json:"produces,omitempty"`
	Cost     float64 `yaml:"cost,omitempty" json:"cost,omitempty" validate:"gte=0"`
}

// Parse decodes a YAML or JSON document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: document is %d bytes (max %d)", ErrInvalidScenario, len(data), MaxDocumentSize)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScenario)
		}
		return nil, fmt.Errorf("%w: decoding: %v", ErrInvalidScenario, err)
	}

	sum := sha256.Sum256(data)
	doc.digest = hex.EncodeToString(sum[:])
	return &doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat scenario: %w", err)
	}
	if info.Size() > MaxDocumentSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrInvalidScenario, path, info.Size(), MaxDocumentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Digest returns the SHA-256 of the raw document, empty when the document
// was not produced by Parse.
func (d *Document) Digest() string {
	return d.digest
}

// Validate checks struct constraints and cross references.
func (d *Document) Validate() error {
	if err := scenarioValidate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	terms := make(map[int]struct{}, len(d.Terms))
	for _, t := range d.Terms {
		if _, dup := terms[t.ID]; dup {
			return fmt.Errorf("%w: duplicate term id %d", ErrInvalidScenario, t.ID)
		}
		terms[t.ID] = struct{}{}
	}
	for _, t := range d.Terms {
		for _, a := range t.Args {
			if _, ok := terms[a]; !ok {
				return fmt.Errorf("%w: term %d references unknown argument %d", ErrInvalidScenario, t.ID, a)
			}
		}
	}

	quants := make(map[string]int, len(d.Quantifiers))
	for _, q := range d.Quantifiers {
		if _, dup := quants[q.ID]; dup {
			return fmt.Errorf("%w: duplicate quantifier %q", ErrInvalidScenario, q.ID)
		}
		quants[q.ID] = len(q.Patterns)
		if q.Body != nil {
			if _, ok := terms[*q.Body]; !ok {
				return fmt.Errorf("%w: quantifier %q body %d is not a term", ErrInvalidScenario, q.ID, *q.Body)
			}
		}
		for i, p := range q.Patterns {
			if p.Var != "" {
				return fmt.Errorf("%w: quantifier %q pattern %d is a bare variable", ErrInvalidScenario, q.ID, i)
			}
		}
	}

	insts := make(map[int]struct{}, len(d.Instantiations))
	for _, inst := range d.Instantiations {
		if _, dup := insts[inst.ID]; dup {
			return fmt.Errorf("%w: duplicate instantiation %d", ErrInvalidScenario, inst.ID)
		}
		insts[inst.ID] = struct{}{}

		n, ok := quants[inst.Quantifier]
		if !ok {
			return fmt.Errorf("%w: instantiation %d names unknown quantifier %q", ErrInvalidScenario, inst.ID, inst.Quantifier)
		}
		if inst.Pattern >= n {
			return fmt.Errorf("%w: instantiation %d pattern index %d out of range", ErrInvalidScenario, inst.ID, inst.Pattern)
		}

		refs := append(append(append([]int{}, inst.Blame...), inst.Bound...), inst.Produces...)
		if inst.Yields != nil {
			refs = append(refs, *inst.Yields)
		}
		for _, id := range refs {
			if _, ok := terms[id]; !ok {
				return fmt.Errorf("%w: instantiation %d references unknown term %d", ErrInvalidScenario, inst.ID, id)
			}
		}
	}

	for i, p := range d.Paths {
		for _, id := range p {
			if _, ok := insts[id]; !ok {
				return fmt.Errorf("%w: path %d references unknown instantiation %d", ErrInvalidScenario, i, id)
			}
		}
	}
	return nil
}
