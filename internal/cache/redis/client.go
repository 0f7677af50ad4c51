// Package redis caches the latest feed snapshot so bursty readers do not
// re-serialize the collection on every request.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/policyedge/backend/internal/models"
	"github.com/policyedge/backend/pkg/logger"
)

const feedKey = "intel:feed:latest"

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetFeed caches the sorted snapshot of a collection cycle.
func (c *Client) SetFeed(ctx context.Context, items []models.IntelligenceItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal feed: %w", err)
	}

	if err := c.client.Set(ctx, feedKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set feed cache: %w", err)
	}

	logger.Debug("Feed cached", zap.Int("items", len(items)), zap.Duration("ttl", c.ttl))
	return nil
}

// GetFeed returns the cached snapshot, or false when expired or absent.
func (c *Client) GetFeed(ctx context.Context) ([]models.IntelligenceItem, bool, error) {
	data, err := c.client.Get(ctx, feedKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get feed cache: %w", err)
	}

	var items []models.IntelligenceItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal feed: %w", err)
	}

	logger.Debug("Feed cache hit", zap.Int("items", len(items)))
	return items, true, nil
}

// InvalidateFeed drops the cached snapshot, forcing the next read through.
func (c *Client) InvalidateFeed(ctx context.Context) error {
	if err := c.client.Del(ctx, feedKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate feed cache: %w", err)
	}
	return nil
}
