package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/EcommerceGo/pkg/database"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/config"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage/memory"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/storage/postgres"
	redisstorage "github.com/utafrali/EcommerceGo/services/storefront/internal/storage/redis"
	"github.com/utafrali/EcommerceGo/services/storefront/migrations"
)

// storageBackend is the durable store selected by STORAGE_DRIVER together
// with its lifecycle hooks.
type storageBackend struct {
	storage.Storage
	close func()
	// purge removes expired rows; nil for backends that expire on their own.
	purge func(ctx context.Context) (int64, error)
}

// Update forwards to the selected backend so its atomic read-modify-write is
// not hidden behind the embedded interface.
func (b *storageBackend) Update(ctx context.Context, key string, fn storage.UpdateFunc) error {
	return storage.Update(ctx, b.Storage, key, fn)
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storageBackend, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; carts and logins are lost on restart")
		return &storageBackend{Storage: memory.New(), close: func() {}}, nil

	case config.StorageRedis:
		rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("host", cfg.RedisHost),
			slog.Int("port", cfg.RedisPort),
			slog.Int("db", cfg.RedisDB),
		)
		return &storageBackend{
			Storage: redisstorage.New(rdb, cfg.StorageTTL()),
			close: func() {
				if err := rdb.Close(); err != nil {
					logger.Error("redis close error", slog.String("error", err.Error()))
				}
			},
		}, nil

	case config.StoragePostgres:
		pgCfg := database.PostgresConfig{
			Host:            cfg.PostgresHost,
			Port:            cfg.PostgresPort,
			User:            cfg.PostgresUser,
			Password:        cfg.PostgresPass,
			DBName:          cfg.PostgresDB,
			SSLMode:         cfg.PostgresSSL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
			MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
		}
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "storefront"); err != nil {
			logger.Warn("register pool metrics", slog.String("error", err.Error()))
		}

		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")

		if cfg.SlowQueryThresholdMs > 0 {
			database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
		}

		pg := postgres.New(pool, cfg.StorageTTL())
		return &storageBackend{Storage: pg, close: pool.Close, purge: pg.PurgeExpired}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// runPurge deletes expired rows every interval until ctx is canceled.
func runPurge(ctx context.Context, purge func(context.Context) (int64, error), interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				logger.Warn("storage purge failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				logger.Info("purged expired storage entries", slog.Int64("count", n))
			}
		}
	}
}
