package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 回复生成服务调用延迟（毫秒）
	ReplyServiceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reply_service_latency_ms",
			Help:    "Reply generation service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~50s
		},
		[]string{"endpoint", "status"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 邮件加载计数
	EmailLoadCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_load_count",
			Help: "Total number of mailbox loads",
		},
		[]string{"result"}, // result: success, auth_required, unavailable, failed
	)

	// 邮件更新计数
	EmailUpdateCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_update_count",
			Help: "Total number of email updates",
		},
		[]string{"result"}, // result: success, rejected, not_found, unavailable, failed
	)

	// 回复草稿生成计数
	DraftGeneratedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_generated_count",
			Help: "Total number of reply drafts generated",
		},
		[]string{"source"}, // source: ai, template
	)

	// 统计缓存命中
	StatsCacheCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stats_cache_count",
			Help: "Stats cache lookups",
		},
		[]string{"result"}, // result: hit, miss, error
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordReplyServiceLatency 记录回复服务调用延迟
func RecordReplyServiceLatency(endpoint, status string, duration time.Duration) {
	ReplyServiceLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录一次慢查询，operation 为 SQL 首个关键字（SELECT/UPDATE...）
func IncrementSlowQuery(operation string) {
	SlowQueryCount.WithLabelValues(operation).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementEmailLoad(result string) {
	EmailLoadCount.WithLabelValues(result).Inc()
}

func IncrementEmailUpdate(result string) {
	EmailUpdateCount.WithLabelValues(result).Inc()
}

func IncrementDraftGenerated(source string) {
	DraftGeneratedCount.WithLabelValues(source).Inc()
}

func IncrementStatsCache(result string) {
	StatsCacheCount.WithLabelValues(result).Inc()
}
