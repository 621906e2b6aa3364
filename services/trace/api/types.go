// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"encoding/json"

	"github.com/AleutianAI/AxiomTrace/services/trace/engine"
	"github.com/AleutianAI/AxiomTrace/services/trace/store"
)

// =============================================================================
// Requests
// =============================================================================

// ScenarioRequest carries a scenario document. Scenario is either the
// document as a JSON object or a JSON string holding YAML.
type ScenarioRequest struct {
	Scenario json.RawMessage `json:"scenario" binding:"required"`

	// FirstOnly overrides the server's first-only mode.
	FirstOnly *bool `json:"first_only,omitempty"`

	// MaxHypotheses overrides the server's frontier cap when positive.
	MaxHypotheses int `json:"max_hypotheses,omitempty" binding:"gte=0"`
}

// ReconstructRequest is the body of POST /v1/axiomtrace/reconstruct.
type ReconstructRequest struct {
	ScenarioRequest

	// Instantiations restricts the run. Empty means all.
	Instantiations []int `json:"instantiations,omitempty" binding:"omitempty,dive,gte=0"`

	// Save stores the summaries in the result store.
	Save bool `json:"save,omitempty"`
}

// PathsRequest is the body of POST /v1/axiomtrace/paths.
type PathsRequest struct {
	ScenarioRequest
}

// =============================================================================
// Responses
// =============================================================================

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ReconstructResponse is returned by POST /v1/axiomtrace/reconstruct.
type ReconstructResponse struct {
	RequestID string `json:"request_id"`
	*engine.Report
}

// PathsResponse is returned by POST /v1/axiomtrace/paths.
type PathsResponse struct {
	RequestID string              `json:"request_id"`
	Scenario  string              `json:"scenario"`
	Paths     []engine.PathReport `json:"paths"`
}

// HistoryResponse is returned by GET /v1/axiomtrace/results.
type HistoryResponse struct {
	Scenario string          `json:"scenario,omitempty"`
	Records  []*store.Record `json:"records"`
}

// HealthResponse is returned by GET /v1/axiomtrace/health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Store   bool         `json:"store"`
	Caches  engine.Stats `json:"caches"`
}
