package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/quadkey-index/pkg/quadkey"
)

type IngestCfg struct {
	Enabled bool
	Topic   string
	Brokers []string
	GroupID string
}

type RedisCfg struct {
	Addr         string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr              string
	LogLevel          string
	LogConsole        bool
	LogSampleN        int
	Redis             RedisCfg
	IndexPrecision    int
	MaxCells          int
	NeighborCacheSize int
	CacheOpTimeout    time.Duration
	PointTTL          time.Duration
	Ingest            IngestCfg
	Metrics           MetricsCfg
}

func FromEnv() Config {
	precision := getint("INDEX_PRECISION", 16)
	if precision < 1 {
		precision = 1
	}
	if precision > quadkey.MaxPixelPrecision {
		precision = quadkey.MaxPixelPrecision
	}

	maxCells := getint("CELLS_MAX", 4096)
	if maxCells < 1 {
		maxCells = 4096
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),
		Redis: RedisCfg{
			Addr:         getenv("REDIS_ADDR", "localhost:6379"),
			PoolSize:     getint("REDIS_POOL_SIZE", 64),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 4),
			DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getduration("REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", time.Second),
		},
		IndexPrecision:    precision,
		MaxCells:          maxCells,
		NeighborCacheSize: getint("NEIGHBOR_CACHE_SIZE", 8192),
		CacheOpTimeout:    getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		PointTTL:          getduration("POINT_TTL", 0),
		Ingest: IngestCfg{
			Enabled: getbool("INGEST_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "point-updates"),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			GroupID: getenv("KAFKA_GROUP_ID", "quadkey-indexer"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
