package cli

import (
	"context"
	"fmt"

	"github.com/gogotex/records/internal/config"
	"github.com/gogotex/records/internal/database"
	"github.com/gogotex/records/internal/record/repository"
	"github.com/gogotex/records/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const mongoConnectAttempts = 5

// backend is an opened record store and the function releasing it.
type backend struct {
	store repository.Store
	close func()
}

// connectRedis returns nil without error when no Redis host is configured.
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Host == "" {
		return nil, nil
	}
	client, err := database.ConnectRedis(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	logger.Infof("connected to Redis: %s", cfg.Redis.Addr())
	return client, nil
}

// openBackend opens the store selected by RECORDS_BACKEND. The redis backend
// shares rdb, which must then be non-nil.
func openBackend(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*backend, error) {
	switch cfg.Records.Backend {
	case config.BackendMemory:
		logger.Warnf("using in-memory record store; records are lost on restart")
		return &backend{store: repository.NewMemoryRepo(), close: func() {}}, nil

	case config.BackendMongo:
		client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoConnectAttempts)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB.Database)
		repo, err := repository.NewMongoRepo(ctx, db.Collection("records"), db.Collection("counters"))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Infof("using MongoDB record store: database=%s", cfg.MongoDB.Database)
		return &backend{store: repo, close: func() { _ = client.Disconnect(context.Background()) }}, nil

	case config.BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis backend: no Redis connection")
		}
		logger.Infof("using Redis record store: prefix=%s", cfg.Redis.Prefix)
		return &backend{store: repository.NewRedisRepository(rdb, cfg.Redis.Prefix), close: func() {}}, nil

	case config.BackendPostgres, config.BackendSQLite:
		open, target := database.OpenPostgres, cfg.SQL.PostgresDSN
		if cfg.Records.Backend == config.BackendSQLite {
			open, target = database.OpenSQLite, cfg.SQL.SQLitePath
		}
		db, err := open(ctx, target)
		if err != nil {
			return nil, err
		}
		repo := repository.NewSQLRepo(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Infof("using %s record store", cfg.Records.Backend)
		return &backend{store: repo, close: func() { db.Close() }}, nil
	}
	return nil, fmt.Errorf("unknown records backend %q", cfg.Records.Backend)
}
