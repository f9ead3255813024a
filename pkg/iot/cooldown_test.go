package iot

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/db"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

func TestLimiterStoreKeepsOneBucketPerDevice(t *testing.T) {
	store := NewLimiterStore(time.Minute, 1)
	now := time.Now()

	assert.True(t, store.AllowAt("device1", now))
	assert.False(t, store.AllowAt("device1", now.Add(time.Second)))
	assert.True(t, store.AllowAt("device2", now.Add(time.Second)))
	assert.Len(t, store.limiters, 2)
}

func TestLimiterStoreEvictsIdleBuckets(t *testing.T) {
	store := NewLimiterStore(time.Minute, 1)
	start := time.Now()

	for _, devEUI := range []string{"E1", "E2", "E3"} {
		require.True(t, store.AllowAt(devEUI, start))
	}
	require.True(t, store.AllowAt("E4", start.Add(30*time.Second)))
	assert.Len(t, store.limiters, 4)

	// E1..E3 refilled, E4 still cooling down and keeps its bucket
	assert.False(t, store.AllowAt("E4", start.Add(time.Minute)))
	assert.Len(t, store.limiters, 1)
	assert.Contains(t, store.limiters, "E4")

	assert.True(t, store.AllowAt("E1", start.Add(61*time.Second)))
	assert.False(t, store.AllowAt("E1", start.Add(62*time.Second)))
}

func TestLimiterStoreConcurrency(t *testing.T) {
	store := NewLimiterStore(time.Minute, 1)
	devEUI := uuid.NewString()
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.AllowAt(devEUI, now) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
}

func TestMemoryCooldownWindow(t *testing.T) {
	cooldown := NewMemoryCooldown(5 * time.Minute)
	ctx := context.Background()
	start := time.Now()

	ok, _ := cooldown.Allow(ctx, "E1", start)
	assert.True(t, ok)
	ok, _ = cooldown.Allow(ctx, "E1", start.Add(time.Minute))
	assert.False(t, ok)
	ok, _ = cooldown.Allow(ctx, "E2", start.Add(time.Minute))
	assert.True(t, ok, "devices are throttled independently")
	ok, _ = cooldown.Allow(ctx, "E1", start.Add(5*time.Minute+time.Second))
	assert.True(t, ok)
	ok, _ = cooldown.Allow(ctx, "E1", start.Add(5*time.Minute+2*time.Second))
	assert.False(t, ok, "sweeping idle buckets keeps the window of active ones")
	assert.Len(t, cooldown.store.limiters, 2, "E1 restarted, E2 still cooling down")
}

func TestNoCooldownAlwaysAllows(t *testing.T) {
	for range 3 {
		ok, err := NoCooldown{}.Allow(context.Background(), "E1", time.Now())
		assert.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRecordCooldown(t *testing.T) {
	common.SetTestLoggerNop()
	dbInstance, err := db.New(db.UseMemorySqliteDialector(uuid.NewString()))
	require.NoError(t, err)
	defer dbInstance.Close()

	ctx := context.Background()
	require.NoError(t, db.NewSensorRepository(dbInstance).Upsert(ctx,
		&models.Sensor{DevEUI: "E1", Status: models.StatusFire}, []string{"status"}))

	cooldown := NewRecordCooldown(dbInstance, 5*time.Minute)
	ok, err := cooldown.Allow(ctx, "E1", testNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cooldown.Allow(ctx, "E1", testNow.Add(4*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCooldownIntegration(t *testing.T) {
	if os.Getenv(common.EnvKeyRunIntegrationTests) != "true" {
		t.Skip("set RUN_INTEGRATION_TESTS=true to run against REDIS_ADDR")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	cooldown := NewRedisCooldown(rdb, time.Second)
	devEUI := uuid.NewString()

	ok, err := cooldown.Allow(ctx, devEUI, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cooldown.Allow(ctx, devEUI, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(1100 * time.Millisecond)
	ok, err = cooldown.Allow(ctx, devEUI, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDuplicateFilter(t *testing.T) {
	filter := NewDuplicateFilter(1000, 0.001, 75)
	fCnt := func(n uint32) *uint32 { return &n }

	assert.False(t, filter.Seen("E1", fCnt(1)))
	assert.True(t, filter.Seen("E1", fCnt(1)))
	assert.False(t, filter.Seen("E1", fCnt(2)))
	assert.False(t, filter.Seen("E2", fCnt(1)), "filters are per device")
	assert.False(t, filter.Seen("E1", nil))
	assert.False(t, filter.Seen("E1", nil), "uplinks without a counter always pass")
}

func TestDuplicateFilterResetsWhenFull(t *testing.T) {
	filter := NewDuplicateFilter(10, 0.01, 50)
	fCnt := func(n uint32) *uint32 { return &n }

	for n := range uint32(20) {
		filter.Seen("E1", fCnt(n))
	}
	// the filter was cleared on the way, so early counters are forgotten
	forgotten := 0
	for n := range uint32(5) {
		if !filter.Seen("E1", fCnt(n)) {
			forgotten++
		}
	}
	assert.Positive(t, forgotten)
}
