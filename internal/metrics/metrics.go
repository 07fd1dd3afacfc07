// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics holds the Prometheus collectors of the query service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jsonquery"

// Request outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeAborted = "aborted"
)

// Metrics groups the collectors. A nil *Metrics is not valid; use New with
// a private registry in tests.
type Metrics struct {
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	Retries      prometheus.Counter
	Requests     *prometheus.CounterVec
	Errors       *prometheus.CounterVec
	BytesSent    prometheus.Counter
	CopyRows     prometheus.Counter
	CopyRejected prometheus.Counter
	Duration     prometheus.Histogram
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_cache_hits_total",
			Help:      "Queries served from a cached plan.",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_cache_misses_total",
			Help:      "Queries that had to be compiled.",
		}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_retries_total",
			Help:      "Plans recompiled after a cursor could not be opened.",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Query requests by outcome.",
		}, []string{"outcome"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Failed query requests by error kind.",
		}, []string{"kind"}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_bytes_total",
			Help:      "Response body bytes written to peers.",
		}),
		CopyRows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_rows_total",
			Help:      "Rows loaded by COPY.",
		}),
		CopyRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_rows_rejected_total",
			Help:      "Rows skipped by COPY because they did not parse.",
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request start until the last byte was queued.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
}
