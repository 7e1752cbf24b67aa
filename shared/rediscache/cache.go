package rediscache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// Cache caches job status views so the polling read path can skip the database
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache creates a Redis cache client and verifies the connection
func NewCache(config *Config, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis cache initialized",
		slog.String("host", config.Host),
		slog.Int("port", config.Port),
		slog.Duration("ttl", config.TTL),
	)

	return &Cache{client: client, ttl: config.TTL, logger: logger}, nil
}

func jobViewKey(jobID string) string {
	return "job_view:" + jobID
}

// GetJobView returns the cached status view for a job, or (nil, nil) on a miss
func (c *Cache) GetJobView(ctx context.Context, jobID string) ([]byte, error) {
	data, err := c.client.Get(ctx, jobViewKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job view from Redis: %w", err)
	}
	return data, nil
}

// SetJobView caches the status view for a job with the configured TTL
func (c *Cache) SetJobView(ctx context.Context, jobID string, view []byte) error {
	if err := c.client.Set(ctx, jobViewKey(jobID), view, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set job view in Redis: %w", err)
	}
	return nil
}

// Invalidate drops the cached view for a job; called on every status transition
func (c *Cache) Invalidate(ctx context.Context, jobID string) error {
	if err := c.client.Del(ctx, jobViewKey(jobID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate job view in Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
