// Package metrics holds the Prometheus collectors exported by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtside_ingest_total",
		Help: "Ingest runs by outcome.",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courtside_stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	ChunkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtside_chunk_failures_total",
		Help: "Transcript chunks kept verbatim because cleaning failed.",
	})

	ReconcileDowngrades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "courtside_reconcile_downgrades_total",
		Help: "Reads where a completed item was reported failed because an artifact was missing.",
	})

	IndexTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtside_index_total",
		Help: "Index publications by result.",
	}, []string{"result"})

	ChatTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtside_chat_total",
		Help: "Transcript questions by result.",
	}, []string{"result"})
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courtside_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courtside_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
