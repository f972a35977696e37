package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/datastore"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/panyam/monexa/client"
	"github.com/panyam/monexa/client/stores/fs"
	"github.com/panyam/monexa/client/stores/gae"
	gormstore "github.com/panyam/monexa/client/stores/gorm"
	redisstore "github.com/panyam/monexa/client/stores/redis"
	"github.com/panyam/monexa/internal/config"
)

// openStorage builds the credential backend named by the config. The
// returned cleanup releases connections and is never nil.
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (client.Storage, func(), error) {
	noop := func() {}
	sc := cfg.Storage

	switch sc.Kind {
	case config.StorageFS:
		storage, err := fs.NewFSStorage(sc.FSPath, "monexa", cfg.BaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open credentials file: %w", err)
		}
		logger.Debug("using file storage", zap.String("path", storage.Path()))
		return storage, noop, nil

	case config.StorageRedis:
		opts, err := goredis.ParseURL(sc.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := goredis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cleanup := func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("failed to close redis client", zap.Error(err))
			}
		}
		return redisstore.NewStorage(rdb, sc.Profile).WithContext(ctx), cleanup, nil

	case config.StoragePostgres:
		db, err := gorm.Open(postgres.Open(sc.PostgresDSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, fmt.Errorf("failed to get sql handle: %w", err)
		}
		cleanup := func() { sqlDB.Close() }
		if err := gormstore.AutoMigrate(db); err != nil {
			cleanup()
			return nil, noop, err
		}
		return gormstore.NewStorage(db, sc.Profile).WithContext(ctx), cleanup, nil

	case config.StorageDatastore:
		dsClient, err := datastore.NewClient(ctx, sc.DatastoreProject)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create datastore client: %w", err)
		}
		cleanup := func() { dsClient.Close() }
		return gae.NewStorage(dsClient, sc.DatastoreNamespace, sc.Profile).WithContext(ctx), cleanup, nil
	}

	return nil, noop, fmt.Errorf("unknown storage kind %q", sc.Kind)
}
