// Package metrics exposes the Prometheus instrumentation shared by the HTTP
// server and the ingestion pipeline. Collectors are registered on the default
// registry via promauto, so importing the package is enough to wire them up.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexrag_http_requests_total",
		Help: "HTTP requests by endpoint and status code.",
	}, []string{"endpoint", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lexrag_http_request_duration_seconds",
		Help:    "HTTP request latency by endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	QueryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexrag_query_cache_hits_total",
		Help: "Query result cache hits.",
	})

	QueryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexrag_query_cache_misses_total",
		Help: "Query result cache misses.",
	})

	PIIEntitiesAnonymized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexrag_pii_entities_anonymized_total",
		Help: "PII entities replaced with placeholders, by kind.",
	}, []string{"kind"})

	PIILeakageAborts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexrag_pii_leakage_aborts_total",
		Help: "Requests aborted because anonymized text still contained PII.",
	})

	TrustLabels = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lexrag_trust_labels_total",
		Help: "Verification outcomes by trust label.",
	}, []string{"label"})

	DocumentsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexrag_documents_indexed_total",
		Help: "Documents successfully indexed.",
	})

	ChunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lexrag_chunks_ingested_total",
		Help: "Chunks written to the vector store.",
	})

	KVPoolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lexrag_kv_pool_total_connections",
		Help: "Open connections in the KV store pool.",
	})

	KVPoolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lexrag_kv_pool_idle_connections",
		Help: "Idle connections in the KV store pool.",
	})
)
