package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"emailai/internal/analytics"
	"emailai/internal/config"
	"emailai/internal/mqhandler"
	pkgconfig "emailai/pkg/config"
	"emailai/pkg/logger"
	"emailai/pkg/mq"
	"emailai/pkg/otel"
	redisclient "emailai/pkg/redis"
	"emailai/pkg/util"
)

const statsQueue = "email.updated.stats.q"

func main() {
	configDir := flag.String("config-dir", "config", "directory containing base.yaml")
	flag.Parse()

	cfg, err := config.Load(pkgconfig.GetConfigEnv(), *configDir)
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName: cfg.ServiceName + "-worker",
		Endpoint:    cfg.OTel.Endpoint,
		Enabled:     cfg.OTel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownOtel()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting worker service...")

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if err := redisclient.Ping(ctx, rdb); err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}

	deduper := util.NewDeduper(rdb, 24*time.Hour, log)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)
	cache := analytics.NewCache(rdb, cfg.Stats.CacheTTL, log)

	// DLQ 发布者
	publisher, err := mq.DialWithRetry(ctx, 30*time.Second, log, func() (*mq.Publisher, error) {
		return mq.NewPublisher(cfg.MQ.URL)
	})
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	statsHandler := mqhandler.NewEmailUpdatedStatsHandler(cache, deduper, retryCounter, publisher, log)

	log.Info("Initializing stats consumer", zap.String("queue", statsQueue))
	consumer, err := mq.DialWithRetry(ctx, 30*time.Second, log, func() (*mq.Consumer, error) {
		return mq.NewConsumer(cfg.MQ.URL, statsQueue, mq.RoutingKeyEmailUpdated, log)
	})
	if err != nil {
		log.Fatal("failed to init stats consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(statsHandler.Handle)

	log.Info("All consumers started, worker is ready to process messages")
	if err := consumer.StartConsuming(ctx); err != nil && ctx.Err() == nil {
		log.Error("stats consumer stopped", zap.Error(err))
	}
	log.Info("Worker stopped")
}
