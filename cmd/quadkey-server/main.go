package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/quadkey-index/internal/cache/neighborcache"
	"github.com/mohammed-shakir/quadkey-index/internal/cache/redisstore"
	"github.com/mohammed-shakir/quadkey-index/internal/core/config"
	"github.com/mohammed-shakir/quadkey-index/internal/core/health"
	"github.com/mohammed-shakir/quadkey-index/internal/core/observability"
	"github.com/mohammed-shakir/quadkey-index/internal/core/router"
	"github.com/mohammed-shakir/quadkey-index/internal/core/server"
	"github.com/mohammed-shakir/quadkey-index/internal/ingest/kafkaconsumer"
	"github.com/mohammed-shakir/quadkey-index/internal/logger"
	qkmapper "github.com/mohammed-shakir/quadkey-index/internal/mapper/quadkey"
	"github.com/mohammed-shakir/quadkey-index/internal/metrics"
	"github.com/mohammed-shakir/quadkey-index/internal/pointindex"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	noStore := flag.Bool("no-store", false, "serve only the stateless codec routes")
	flag.Parse()

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "quadkey-index",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting quadkey server",
		"addr", cfg.Addr,
		"version", Version,
		"precision", cfg.IndexPrecision,
		"redis", cfg.Redis.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(p.Registerer(), true)
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	nc := neighborcache.New(cfg.NeighborCacheSize)
	deps := router.Deps{
		Logger:    appLog,
		Mapper:    qkmapper.New(cfg.MaxCells),
		Neighbors: nc,
		OpTimeout: cfg.CacheOpTimeout,
	}

	var ready health.Pinger
	if !*noStore {
		store, err := redisstore.New(ctx, cfg.Redis.Addr,
			redisstore.WithPoolSize(cfg.Redis.PoolSize),
			redisstore.WithMinIdleConns(cfg.Redis.MinIdleConns),
			redisstore.WithDialTimeout(cfg.Redis.DialTimeout),
			redisstore.WithReadTimeout(cfg.Redis.ReadTimeout),
			redisstore.WithWriteTimeout(cfg.Redis.WriteTimeout),
		)
		if err != nil {
			appLog.Error("redis setup failed", "err", err)
			return 1
		}
		defer func() { _ = store.Close() }()
		ready = store

		index := pointindex.New(store, pointindex.Options{
			Precision: uint(cfg.IndexPrecision),
			TTL:       cfg.PointTTL,
			Neighbors: nc,
		})
		deps.Points = index

		if cfg.Ingest.Enabled {
			kzl := logger.Build(logger.Config{
				Level:     cfg.LogLevel,
				Console:   cfg.LogConsole,
				Service:   "quadkey-index",
				Component: "kafka_consumer",
			}, os.Stdout)
			consumer := kafkaconsumer.New(kafkaconsumer.FromIngest(cfg.Ingest), appLog, &kzl, index)
			go func() {
				if err := consumer.Start(ctx); err != nil {
					appLog.Error("kafka consumer stopped", "err", err, "brokers", strings.Join(cfg.Ingest.Brokers, ","))
				}
			}()
		}
	}

	handler := server.NewHandler(cfg, appLog, router.New(deps), ready)
	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
