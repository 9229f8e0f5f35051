package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goliatone/go-clinic-notifications/pkg/config"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-clinic-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-clinic-notifications/pkg/notifier"
	"github.com/goliatone/go-clinic-notifications/pkg/storage"
	"github.com/goliatone/go-clinic-notifications/pkg/transport"
	redistransport "github.com/goliatone/go-clinic-notifications/pkg/transport/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// app holds the assembled module and the resources it must release.
type app struct {
	module  *notifier.Module
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func bootstrap(ctx context.Context, cfg config.Config, lgr logger.Logger) (*app, error) {
	a := &app{}

	providers, err := openStorage(ctx, cfg.Database, a)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var (
		broadcasters []broadcaster.Broadcaster
		subscriber   transport.Subscriber
	)
	if cfg.Redis.Enabled {
		client := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rt, err := redistransport.New(client, redistransport.Options{
			Prefix: cfg.Redis.Prefix,
			Logger: lgr,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rt.Close)
		broadcasters = append(broadcasters, rt)
		subscriber = rt
	}

	module, err := notifier.NewModule(notifier.ModuleOptions{
		Config:       cfg,
		Storage:      providers,
		Logger:       lgr,
		Broadcasters: broadcasters,
		Subscriber:   subscriber,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.module = module
	return a, nil
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig, a *app) (storage.Providers, error) {
	if cfg.Driver == "memory" {
		return storage.NewMemoryProviders(), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return storage.Providers{}, fmt.Errorf("open database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	a.closers = append(a.closers, db.Close)

	if cfg.AutoMigrate {
		if err := storage.CreateSchema(ctx, db); err != nil {
			return storage.Providers{}, fmt.Errorf("create schema: %w", err)
		}
	}
	return storage.NewBunProviders(db), nil
}
