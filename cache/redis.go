package cache

import (
	"context"
	"fmt"
	"time"

	"stemlab/config"
	"stemlab/logger"

	"github.com/redis/go-redis/v9"
)

// Connect opens the Redis connection used by the analysis cache. Returns
// (nil, nil) when no Redis host is configured; every cache method is safe on
// a nil client, so callers never need to branch on availability.
func Connect(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisHost == "" {
		logger.Info("redis not configured, analysis cache disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis connected",
		logger.String("host", cfg.RedisHost),
		logger.String("port", cfg.RedisPort),
		logger.Int("db", cfg.RedisDB))
	return client, nil
}

// Close closes the Redis connection if one was opened.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
