// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reconstruct

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AxiomTrace/services/trace/quant"
)

// Reconstruction statuses used as metric labels.
const (
	statusAccepted = "accepted"
	statusRejected = "rejected"
	statusError    = "error"
)

// Package-level tracer and meter for reconstruction.
var (
	tracer = otel.Tracer("axiomtrace.reconstruct")
	meter  = otel.Meter("axiomtrace.reconstruct")
)

// OpenTelemetry instruments.
var (
	reconstructLatency metric.Float64Histogram
	reconstructTotal   metric.Int64Counter
	hypothesesExplored metric.Int64Histogram
	finalizeRejected   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// =============================================================================
// Prometheus Metrics for the result cache
// =============================================================================

var (
	// cacheLookups counts result cache lookups.
	// Labels: result (hit, miss, shared)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axiomtrace",
		Subsystem: "reconstruct",
		Name:      "cache_lookups_total",
		Help:      "Result cache lookups by result",
	}, []string{"result"})

	// cacheEvictions counts results evicted from the cache.
	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "axiomtrace",
		Subsystem: "reconstruct",
		Name:      "cache_evictions_total",
		Help:      "Results evicted from the result cache",
	})

	// searchDuration measures Reconstruct latency as seen by the cache.
	// Labels: status (accepted, rejected, error)
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "axiomtrace",
		Subsystem: "reconstruct",
		Name:      "search_duration_seconds",
		Help:      "Binding reconstruction latency in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"status"})
)

// initMetrics initializes the OpenTelemetry instruments. Safe to call
// multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		reconstructLatency, err = meter.Float64Histogram(
			"reconstruct_duration_seconds",
			metric.WithDescription("Duration of binding reconstructions"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		reconstructTotal, err = meter.Int64Counter(
			"reconstruct_total",
			metric.WithDescription("Total number of binding reconstructions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		hypothesesExplored, err = meter.Int64Histogram(
			"reconstruct_hypotheses_explored",
			metric.WithDescription("Hypotheses created per reconstruction"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		finalizeRejected, err = meter.Int64Counter(
			"reconstruct_finalize_rejected_total",
			metric.WithDescription("Hypotheses rejected at finalization"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordReconstructMetrics records the outcome of one Reconstruct call.
func recordReconstructMetrics(ctx context.Context, res *Result, status string) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))
	reconstructLatency.Record(ctx, res.Duration.Seconds(), attrs)
	reconstructTotal.Add(ctx, 1, attrs)
	hypothesesExplored.Record(ctx, int64(res.Explored))

	for outcome, n := range res.Rejected {
		finalizeRejected.Add(ctx, int64(n),
			metric.WithAttributes(attribute.String("outcome", outcome.String())),
		)
	}
}

// startReconstructSpan creates a span for one instantiation.
func startReconstructSpan(ctx context.Context, inst *quant.Instantiation) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.Int("reconstruct.instantiation", int(inst.ID)),
		attribute.Int("reconstruct.blame_terms", len(inst.Blame)),
		attribute.Int("reconstruct.bound_terms", len(inst.Bound)),
	}
	if inst.Quantifier != nil {
		attrs = append(attrs, attribute.String("reconstruct.quantifier", inst.Quantifier.ID))
	}
	return tracer.Start(ctx, "Reconstructor.Reconstruct", trace.WithAttributes(attrs...))
}
