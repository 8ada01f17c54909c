package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
	prometheus.MustRegister(collectors()...)
	prometheus.MustRegister(buildInfo)
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"method", "route", "status"},
	)

	codecOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codec_operations_total",
			Help: "Quadkey codec operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	neighborCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neighbor_cache_results_total",
			Help: "Neighbor cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by outcome.",
		},
		[]string{"op", "outcome"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	ingestEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_total",
			Help: "Point update events applied to the index, by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	kafkaConsumerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		codecOps,
		neighborCacheResults,
		cacheOps,
		redisOpDuration,
		ingestEvents,
		kafkaConsumerErrors,
	}
}

// Init registers the collectors with reg as well as the default registry and turns
// recording on or off. Build info stays on the default registry; a dedicated registry
// carries its own from the metrics provider.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveCodec(op string, err error) {
	if !enabled.Load() {
		return
	}
	codecOps.WithLabelValues(op, outcome(err)).Inc()
}

func IncNeighborCacheHit() {
	if enabled.Load() {
		neighborCacheResults.WithLabelValues("hit").Inc()
	}
}

func IncNeighborCacheMiss() {
	if enabled.Load() {
		neighborCacheResults.WithLabelValues("miss").Inc()
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	cacheOps.WithLabelValues(op, outcome(err)).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveIngest(op string, err error) {
	if !enabled.Load() {
		return
	}
	ingestEvents.WithLabelValues(op, outcome(err)).Inc()
}

func IncKafkaConsumerError(kind string) {
	if enabled.Load() {
		kafkaConsumerErrors.WithLabelValues(kind).Inc()
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
