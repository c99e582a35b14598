package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"emailai/internal/config"
	"emailai/internal/model"
	"emailai/internal/store"
	"emailai/pkg/db"
	"emailai/pkg/logger"
)

// options 全局 flag
type options struct {
	configDir  string
	env        string
	driver     string
	sqlitePath string
	actor      string
	logLevel   string
}

type emailStore interface {
	store.EmailStore
	store.Seeder
}

// app 每个子命令打开一次，结束时 close
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	store  emailStore
	pool   *pgxpool.Pool
	closer func()
}

func openApp(ctx context.Context, opts *options) (*app, error) {
	cfg, err := config.Load(opts.env, opts.configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.driver != "" {
		cfg.Store.Driver = opts.driver
	}
	if opts.sqlitePath != "" {
		cfg.Store.SQLitePath = opts.sqlitePath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	log := logger.NewLogger(cfg.LogLevel)
	a := &app{cfg: cfg, log: log}

	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		a.store = s
		a.closer = func() { _ = s.Close() }
	case config.DriverPostgres:
		pool, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.store = store.NewPostgresStore(pool, log)
		a.closer = pool.Close
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return a, nil
}

func (a *app) Close() {
	if a.closer != nil {
		a.closer()
	}
	_ = a.log.Sync()
}

func requireActor(opts *options) (string, error) {
	if opts.actor == "" {
		return "", fmt.Errorf("--actor is required: %w", model.ErrAuthRequired)
	}
	return opts.actor, nil
}
