// Package telemetry mirrors an Updater's status and progress into
// Redis, the same publish/subscribe-plus-hash pattern used across the
// fleet for every other piece of scooter state.
package telemetry

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// fleet-wide key and field names flashctl mirrors its state under.
const (
	KeyFlashctl         = "flashctl"
	FieldBootStatus     = "boot-status"
	FieldProgressPct    = "progress-pct"
	FieldProgressDesc   = "progress-desc"
	FieldLastError      = "last-error"
	FieldFirmwareName   = "firmware-name"
	FieldFirmwareDigest = "firmware-digest"
)

// Client wraps a Redis connection used to publish flashctl's run state
// for fleet tooling to observe.
type Client struct {
	client *redis.Client
	ctx    context.Context
}

// New dials addr and verifies connectivity with a PING before
// returning.
func New(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("telemetry: failed to connect to redis at %s: %w", addr, err)
	}

	return &Client{client: rdb, ctx: ctx}, nil
}

// WriteAndPublishString writes a hash field and publishes the change
// on the same key's channel, mirroring the rest of the fleet's
// state-mirroring convention.
func (c *Client) WriteAndPublishString(field, value string) error {
	pipe := c.client.Pipeline()
	pipe.HSet(c.ctx, KeyFlashctl, field, value)
	pipe.Publish(c.ctx, KeyFlashctl, fmt.Sprintf("%s:%s", field, value))
	_, err := pipe.Exec(c.ctx)
	return err
}

// WriteAndPublishFloat writes a hash field holding a formatted float
// and publishes the change.
func (c *Client) WriteAndPublishFloat(field string, value float64) error {
	return c.WriteAndPublishString(field, fmt.Sprintf("%.1f", value))
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
