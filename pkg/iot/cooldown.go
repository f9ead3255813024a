package iot

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/db"
)

// Cooldown decides whether a fire reading of a device may raise an alert now.
type Cooldown interface {
	Allow(ctx context.Context, devEUI string, now time.Time) (bool, error)
}

// NoCooldown alerts on every fire message.
type NoCooldown struct{}

func (NoCooldown) Allow(context.Context, string, time.Time) (bool, error) {
	return true, nil
}

// MemoryCooldown throttles per device inside this process.
type MemoryCooldown struct {
	store *LimiterStore
}

func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	return &MemoryCooldown{store: NewLimiterStore(window, 1)}
}

func (c *MemoryCooldown) Allow(_ context.Context, devEUI string, now time.Time) (bool, error) {
	return c.store.AllowAt(devEUI, now), nil
}

// RecordCooldown throttles on the last_notification stamp of the sensor row.
type RecordCooldown struct {
	sensors *db.SensorRepository
	window  time.Duration
}

func NewRecordCooldown(d *db.DB, window time.Duration) *RecordCooldown {
	return &RecordCooldown{sensors: db.NewSensorRepository(d), window: window}
}

func (c *RecordCooldown) Allow(ctx context.Context, devEUI string, now time.Time) (bool, error) {
	return c.sensors.ReserveNotification(ctx, devEUI, now, c.window)
}

// RedisCooldown throttles through a key per device shared by every replica.
type RedisCooldown struct {
	rdb    redis.Cmdable
	window time.Duration
	prefix string
}

func NewRedisCooldown(rdb redis.Cmdable, window time.Duration) *RedisCooldown {
	return &RedisCooldown{rdb: rdb, window: window, prefix: "fire-alarm:cooldown:"}
}

func (c *RedisCooldown) Allow(ctx context.Context, devEUI string, now time.Time) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, c.prefix+devEUI, now.UTC().Format(time.RFC3339Nano), c.window).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown key for %s: %w", devEUI, err)
	}
	return ok, nil
}
