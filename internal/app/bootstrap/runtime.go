package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/clinicdesk/scheduling/internal/appointments"
	appconfig "github.com/clinicdesk/scheduling/internal/config"
	"github.com/clinicdesk/scheduling/internal/queue"
	"github.com/clinicdesk/scheduling/pkg/logging"
)

// BuildPgxPool connects the Postgres pool, or returns nil when no database is
// configured. When verify is true, a ping is issued and failures return nil.
func BuildPgxPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *pgxpool.Pool {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("postgres pool init failed", "error", err)
		return nil
	}
	if !verify {
		return pool
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("postgres not available", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildStore selects the Postgres store when a pool is available, otherwise
// the in-memory store for DB-less development runs.
func BuildStore(pool *pgxpool.Pool, logger *logging.Logger) appointments.Store {
	if logger == nil {
		logger = logging.Default()
	}
	if pool == nil {
		logger.Warn("no database configured, using in-memory appointment store")
		return appointments.NewInMemoryStore()
	}
	return appointments.NewPostgresStore(pool)
}

// BuildSequencer prefers the Redis sequencer and falls back to the store's
// atomic counter.
func BuildSequencer(redisClient *redis.Client, store appointments.Store) queue.Sequencer {
	if redisClient != nil {
		return queue.NewRedisSequencer(redisClient)
	}
	return queue.NewStoreSequencer(store)
}
