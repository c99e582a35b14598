package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"emailai/internal/analytics"
	"emailai/internal/config"
	"emailai/internal/draft"
	"emailai/internal/handler"
	"emailai/internal/httpserver"
	"emailai/internal/repository"
	"emailai/internal/service/auth"
	"emailai/internal/store"
	pkgconfig "emailai/pkg/config"
	"emailai/pkg/db"
	"emailai/pkg/logger"
	"emailai/pkg/mq"
	"emailai/pkg/otel"
	"emailai/pkg/outbox"
	redisclient "emailai/pkg/redis"
)

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
		ServiceName: cfg.ServiceName + "-api",
		Endpoint:    cfg.OTel.Endpoint,
		Enabled:     cfg.OTel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownOtel()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB（用户、邮件、outbox 都在 PostgreSQL）
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis，不可用时统计缓存全部 miss
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if err := redisclient.Ping(ctx, rdb); err != nil {
		log.Warn("Redis unavailable, stats cache disabled until it recovers", zap.Error(err))
	}

	// Init MQ Publisher
	publisher, err := mq.DialWithRetry(ctx, 30*time.Second, log, func() (*mq.Publisher, error) {
		return mq.NewPublisher(cfg.MQ.URL)
	})
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories & services
	emailStore := store.NewPostgresStore(dbConn, log)
	sessions := repository.NewSessions(emailStore, log)
	go sessions.StartEviction(ctx, cfg.Sessions.SweepInterval, cfg.Sessions.IdleTTL)
	statsCache := analytics.NewCache(rdb, cfg.Stats.CacheTTL, log)
	userRepo := repository.NewUserRepository(dbConn)
	authService := auth.NewService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL)

	drafter, err := draft.New(cfg.Draft, log)
	if err != nil {
		log.Fatal("Draft provider initialization failed", zap.Error(err))
	}

	// Outbox
	outboxRepo := outbox.NewRepository(dbConn)
	replayService := outbox.NewReplayService(outboxRepo, publisher, log)
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:  handler.NewAuthHandler(authService, log),
		Email: handler.NewEmailHandler(sessions, drafter, statsCache, log),
		Stats: handler.NewStatsHandler(sessions, statsCache),
		Admin: handler.NewAdminHandler(replayService, log),
		Checks: []httpserver.ReadyCheck{
			{Name: "db", Check: emailStore.Ping},
			{Name: "mq", Check: func(context.Context) error {
				if !publisher.IsConnected() {
					return errors.New("publisher disconnected")
				}
				return nil
			}},
		},
	}, cfg.JWT.Secret)

	srv := router.Server(cfg.Server.Port)
	go func() {
		log.Info("Starting API server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
