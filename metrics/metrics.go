// Package metrics 定义服务的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration 按路由与状态码统计请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recserve_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	// UpstreamRequests 上游调用结果：success / failure / rejected（熔断拒绝）
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recserve_upstream_requests_total",
			Help: "Total number of calls to upstream services by result",
		},
		[]string{"upstream", "result"},
	)

	// UpstreamDuration 上游调用耗时
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recserve_upstream_request_duration_seconds",
			Help:    "Duration of calls to upstream services in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	// SimilarityFailures 在线链路中相似物品调用失败次数（按处理策略）
	SimilarityFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recserve_similarity_failures_total",
			Help: "Similarity lookups that failed during online recommendation",
		},
		[]string{"policy"},
	)

	// CircuitBreakerState 熔断器状态：0=closed, 1=half-open, 2=open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recserve_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions 熔断器状态切换次数
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recserve_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// CacheRequests 相似物品缓存命中情况：hit / miss / error
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recserve_similarity_cache_requests_total",
			Help: "Similarity cache lookups by result",
		},
		[]string{"backend", "result"},
	)

	// LookupFaults 预计算链路中的数据访问异常（不计入 personal/default 计数）
	LookupFaults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recserve_lookup_faults_total",
			Help: "Precomputed lookups that degraded to an empty result due to a data fault",
		},
	)
)
