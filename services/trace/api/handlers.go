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
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AxiomTrace/services/trace/engine"
	"github.com/AleutianAI/AxiomTrace/services/trace/scenario"
	"github.com/AleutianAI/AxiomTrace/services/trace/store"
	"github.com/AleutianAI/AxiomTrace/services/trace/telemetry"
	"github.com/AleutianAI/AxiomTrace/services/trace/term"
)

type handlers struct {
	engine  *engine.Engine
	logger  *slog.Logger
	version string
}

// health handles GET /v1/axiomtrace/health.
func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
		Store:   h.engine.HasStore(),
		Caches:  h.engine.Stats(),
	})
}

// reconstruct handles POST /v1/axiomtrace/reconstruct.
//
// Response:
//
//	200 OK: ReconstructResponse
//	400 Bad Request: malformed body or invalid scenario
//	404 Not Found: a requested instantiation is not in the scenario
//	413 Request Entity Too Large: body over the configured limit
//	503 Service Unavailable: save requested without a result store
func (h *handlers) reconstruct(c *gin.Context) {
	reqID := getRequestID(c)
	logger := h.logger.With(slog.String("request_id", reqID), slog.String("handler", "reconstruct"))

	var req ReconstructRequest
	if !h.bind(c, logger, &req) {
		return
	}
	doc, ok := h.document(c, logger, req.ScenarioRequest)
	if !ok {
		return
	}

	ro := engine.RunOptions{
		FirstOnly:     req.FirstOnly,
		MaxHypotheses: req.MaxHypotheses,
		Save:          req.Save,
	}
	for _, id := range req.Instantiations {
		ro.Instantiations = append(ro.Instantiations, term.InstID(id))
	}

	rep, err := h.engine.Reconstruct(c.Request.Context(), doc, ro)
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	trace.SpanFromContext(c.Request.Context()).SetAttributes(
		attribute.String("axiomtrace.scenario", rep.Scenario),
		attribute.Int("axiomtrace.instantiations", len(rep.Results)),
	)
	c.JSON(http.StatusOK, ReconstructResponse{RequestID: reqID, Report: rep})
}

// paths handles POST /v1/axiomtrace/paths.
func (h *handlers) paths(c *gin.Context) {
	reqID := getRequestID(c)
	logger := h.logger.With(slog.String("request_id", reqID), slog.String("handler", "paths"))

	var req PathsRequest
	if !h.bind(c, logger, &req) {
		return
	}
	doc, ok := h.document(c, logger, req.ScenarioRequest)
	if !ok {
		return
	}

	reports, err := h.engine.Explain(c.Request.Context(), doc, engine.RunOptions{
		FirstOnly:     req.FirstOnly,
		MaxHypotheses: req.MaxHypotheses,
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if reports == nil {
		reports = []engine.PathReport{}
	}
	c.JSON(http.StatusOK, PathsResponse{RequestID: reqID, Scenario: doc.Name, Paths: reports})
}

// history handles GET /v1/axiomtrace/results[/:scenario].
func (h *handlers) history(c *gin.Context) {
	logger := h.logger.With(slog.String("request_id", getRequestID(c)), slog.String("handler", "history"))

	name := c.Param("scenario")
	recs, err := h.engine.History(c.Request.Context(), name)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if recs == nil {
		recs = []*store.Record{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Scenario: name, Records: recs})
}

// bind decodes the JSON body into req, answering 400 or 413 on failure.
func (h *handlers) bind(c *gin.Context, logger *slog.Logger, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		logger.Warn("request body too large", slog.Int64("limit", tooLarge.Limit))
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "request body too large",
			Code:  "BODY_TOO_LARGE",
		})
		return false
	}

	logger.Warn("invalid request body", slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "invalid request body",
		Code:  "INVALID_REQUEST",
	})
	return false
}

// document parses the scenario of req. A JSON string is treated as YAML
// source; anything else is parsed as the document itself.
func (h *handlers) document(c *gin.Context, logger *slog.Logger, req ScenarioRequest) (*scenario.Document, bool) {
	raw := []byte(req.Scenario)
	var src string
	if err := json.Unmarshal(raw, &src); err == nil {
		raw = []byte(src)
	}

	doc, err := scenario.Parse(raw)
	if err != nil {
		h.fail(c, logger, err)
		return nil, false
	}
	return doc, true
}

// fail maps err to a status and error code.
func (h *handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	switch {
	case errors.Is(err, scenario.ErrInvalidScenario):
		status, code = http.StatusBadRequest, "INVALID_SCENARIO"
	case errors.Is(err, store.ErrInvalidScenarioName):
		status, code = http.StatusBadRequest, "INVALID_SCENARIO_NAME"
	case errors.Is(err, engine.ErrUnknownInstantiation):
		status, code = http.StatusNotFound, "UNKNOWN_INSTANTIATION"
	case errors.Is(err, engine.ErrNoStore):
		status, code = http.StatusServiceUnavailable, "STORE_DISABLED"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		status, code = 499, "CANCELLED"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()), slog.String("code", code))
		telemetry.RecordError(trace.SpanFromContext(c.Request.Context()), err)
	} else {
		logger.Warn("request rejected", slog.String("error", err.Error()), slog.String("code", code))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
