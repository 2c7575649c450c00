package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pixel-relay/internal/models"

	"github.com/go-redis/redis/v8"
)

// Client caches destination configurations and holds fast-path dedup markers.
// Every caller treats it as best-effort: a Redis failure falls through to the
// database.
type Client struct {
	rdb            *redis.Client
	configTTL      time.Duration
	dedupMarkerTTL time.Duration
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(addr, password string, db int, configTTL, dedupMarkerTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, configTTL: configTTL, dedupMarkerTTL: dedupMarkerTTL}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func configKey(shopID int64) string {
	return fmt.Sprintf("destconfigs:%d", shopID)
}

// GetConfigs returns a shop's cached destination configurations.
// found=false on a cache miss.
func (c *Client) GetConfigs(ctx context.Context, shopID int64) ([]models.DestinationConfig, bool, error) {
	raw, err := c.rdb.Get(ctx, configKey(shopID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("config cache get failed: %w", err)
	}

	var configs []models.DestinationConfig
	if err := json.Unmarshal(raw, &configs); err != nil {
		return nil, false, fmt.Errorf("config cache decode failed: %w", err)
	}
	return configs, true, nil
}

// SetConfigs caches a shop's destination configurations.
func (c *Client) SetConfigs(ctx context.Context, shopID int64, configs []models.DestinationConfig) error {
	raw, err := json.Marshal(configs)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, configKey(shopID), raw, c.configTTL).Err()
}

// InvalidateConfigs drops a shop's cached configurations. Called by every
// write path that changes a destination configuration.
func (c *Client) InvalidateConfigs(ctx context.Context, shopID int64) error {
	return c.rdb.Del(ctx, configKey(shopID)).Err()
}

func deliveredKey(shopID, eventLogID int64, destinationType, environment string) string {
	return fmt.Sprintf("delivered:%d:%d:%s:%s", shopID, eventLogID, destinationType, environment)
}

// MarkDelivered records a successful send so subsequent dedup checks can skip
// the database. The ledger row remains the source of truth.
func (c *Client) MarkDelivered(ctx context.Context, shopID, eventLogID int64, destinationType, environment string) error {
	key := deliveredKey(shopID, eventLogID, destinationType, environment)
	return c.rdb.Set(ctx, key, "1", c.dedupMarkerTTL).Err()
}

// WasDelivered checks the fast-path marker for a prior successful send.
func (c *Client) WasDelivered(ctx context.Context, shopID, eventLogID int64, destinationType, environment string) (bool, error) {
	key := deliveredKey(shopID, eventLogID, destinationType, environment)
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
