package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExternalCallsTotal tracks calls to external services per operation
	ExternalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollster_external_calls_total",
			Help: "Total number of external service calls",
		},
		[]string{"service", "operation", "outcome"},
	)

	// RetriesTotal tracks retry attempts per service and failure kind
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollster_retries_total",
			Help: "Total number of retried attempts",
		},
		[]string{"service", "kind"},
	)

	// ExternalCallLatency tracks wall time of external calls including retries
	ExternalCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pollster_external_call_seconds",
			Help:    "External call latency in seconds, retries included",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "operation"},
	)

	// RankMatchFallbacks tracks ranking entries not matched by label
	RankMatchFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollster_rank_match_fallbacks_total",
			Help: "Ranking entries matched by a fallback strategy",
		},
		[]string{"method"},
	)

	// PollsTotal tracks completed poll simulations per kind
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollster_polls_total",
			Help: "Total number of poll simulations",
		},
		[]string{"kind", "outcome"},
	)

	// ExtractionsTotal tracks completed screenshot extractions
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollster_extractions_total",
			Help: "Total number of screenshot field extractions",
		},
		[]string{"outcome"},
	)

	// ProductsFetched tracks bulk-fetch item outcomes
	ProductsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollster_products_fetched_total",
			Help: "Total number of bulk-fetched products by outcome",
		},
		[]string{"status"},
	)

	// ProductCacheHits tracks cache hits on the product cache
	ProductCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pollster_product_cache_hits_total",
			Help: "Product cache hits",
		},
	)

	// ProductCacheMisses tracks cache misses on the product cache
	ProductCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pollster_product_cache_misses_total",
			Help: "Product cache misses",
		},
	)

	// QuotaUsed tracks daily quota consumption per external service
	QuotaUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pollster_service_quota_used",
			Help: "Daily request quota consumed per service",
		},
		[]string{"service"},
	)

	// DBConnectionPoolUsage tracks connection pool utilization percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pollster_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
