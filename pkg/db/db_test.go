package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

func tableExists(db *gorm.DB, tableName string) bool {
	var count int64
	err := db.Raw(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, tableName,
	).Scan(&count).Error
	return err == nil && count > 0
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	common.SetTestLoggerNop()

	instance, err := New(UseMemorySqliteDialector(uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = instance.Close() })
	return instance
}

func TestWithMemorySqlite(t *testing.T) {
	instance := newTestDB(t)

	var tables = []string{"sensors", "users", "notifications", "session_logs"}
	for _, table := range tables {
		if !tableExists(instance.Conn, table) {
			t.Errorf("Expected table %q to exist after migration", table)
		}
	}
}

func TestSensorPrimaryKeyColumn(t *testing.T) {
	instance := newTestDB(t)

	var columns []string
	require.NoError(t, instance.Conn.Raw(`SELECT name FROM pragma_table_info('sensors')`).Scan(&columns).Error)
	assert.Contains(t, columns, "dev_eui")
	assert.NotContains(t, columns, "dev_e_ui")
}

func TestMemoryDatabasesAreIsolated(t *testing.T) {
	ctx := context.Background()
	first := newTestDB(t)
	second := newTestDB(t)

	require.NoError(t, NewSensorRepository(first).Upsert(ctx, &models.Sensor{DevEUI: "E1", Status: models.StatusOn}, []string{"status"}))

	_, err := NewSensorRepository(second).FindByDevEUI(ctx, "E1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSensorUpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewSensorRepository(newTestDB(t))
	columns := []string{"name", "time", "battery", "status", "temperature"}

	first := &models.Sensor{DevEUI: "E1", Name: "Sensor", Time: time.Now().UTC(), Battery: 100, Status: models.StatusOn, Temperature: 21}
	require.NoError(t, repo.Upsert(ctx, first, columns))

	second := &models.Sensor{DevEUI: "E1", Name: "Sensor", Time: time.Now().UTC(), Battery: 0, Status: models.StatusFire, Temperature: 45}
	require.NoError(t, repo.Upsert(ctx, second, columns))

	all, err := repo.List(ctx, "", 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusFire, all[0].Status)
	assert.Equal(t, 45.0, all[0].Temperature)
	assert.Equal(t, 0.0, all[0].Battery)
}

func TestSensorUpsertLeavesUnlistedColumns(t *testing.T) {
	ctx := context.Background()
	repo := NewSensorRepository(newTestDB(t))

	stamp := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Upsert(ctx, &models.Sensor{DevEUI: "E1", Status: models.StatusOn, LastNotification: &stamp}, []string{"status"}))
	require.NoError(t, repo.Upsert(ctx, &models.Sensor{DevEUI: "E1", Status: models.StatusFire}, []string{"status"}))

	saved, err := repo.FindByDevEUI(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, saved.LastNotification)
	assert.True(t, stamp.Equal(*saved.LastNotification))

	require.NoError(t, repo.Upsert(ctx, &models.Sensor{DevEUI: "E1", Status: models.StatusFire}, []string{"status", "last_notification"}))
	saved, err = repo.FindByDevEUI(ctx, "E1")
	require.NoError(t, err)
	assert.Nil(t, saved.LastNotification)
}

func TestSensorListByType(t *testing.T) {
	ctx := context.Background()
	repo := NewSensorRepository(newTestDB(t))
	columns := []string{"type"}

	for _, s := range []models.Sensor{
		{DevEUI: "S2", Type: "Speaker", Status: models.StatusOn},
		{DevEUI: "S1", Type: "Speaker", Status: models.StatusOn},
		{DevEUI: "T1", Type: "Smoke", Status: models.StatusOn},
	} {
		sensor := s
		require.NoError(t, repo.Upsert(ctx, &sensor, columns))
	}

	speakers, err := repo.List(ctx, "Speaker", 100000, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, common.Mapper(speakers, func(s models.Sensor) string { return s.DevEUI }))

	page, err := repo.List(ctx, "", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "S2", page[0].DevEUI)
}

func TestReserveNotification(t *testing.T) {
	ctx := context.Background()
	repo := NewSensorRepository(newTestDB(t))
	window := 5 * time.Minute
	now := time.Now().UTC()

	ok, err := repo.ReserveNotification(ctx, "unknown", now, window)
	require.NoError(t, err)
	assert.True(t, ok, "sensors without a row are not throttled")

	require.NoError(t, repo.Upsert(ctx, &models.Sensor{DevEUI: "E1", Status: models.StatusFire}, []string{"status"}))

	ok, err = repo.ReserveNotification(ctx, "E1", now, window)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveNotification(ctx, "E1", now.Add(time.Minute), window)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ReserveNotification(ctx, "E1", now.Add(6*time.Minute), window)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserveNotificationWindowSequence(t *testing.T) {
	ctx := context.Background()
	repo := NewSensorRepository(newTestDB(t))
	window := 5 * time.Minute
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, &models.Sensor{DevEUI: "E1", Status: models.StatusFire}, []string{"status"}))

	steps := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{time.Minute, false},
		{4*time.Minute + 59*time.Second, false},
		{5*time.Minute + time.Second, true},
		{6 * time.Minute, false},
		{11 * time.Minute, true},
	}
	for _, step := range steps {
		ok, err := repo.ReserveNotification(ctx, "E1", start.Add(step.offset), window)
		require.NoError(t, err)
		assert.Equal(t, step.want, ok, "at +%v", step.offset)
	}

	sensor, err := repo.FindByDevEUI(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, sensor.LastNotification)
	assert.True(t, sensor.LastNotification.Equal(start.Add(11*time.Minute)))
}

func TestReserveNotificationConcurrency(t *testing.T) {
	ctx := context.Background()
	repo := NewSensorRepository(newTestDB(t))
	require.NoError(t, repo.Upsert(ctx, &models.Sensor{DevEUI: "E1", Status: models.StatusFire}, []string{"status"}))

	now := time.Now().UTC()
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ReserveNotification(ctx, "E1", now, time.Minute)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
}

func TestUsersAndNotifications(t *testing.T) {
	ctx := context.Background()
	instance := newTestDB(t)

	token := "tok-1"
	require.NoError(t, instance.Conn.Create(&models.User{ID: "u1", DeviceToken: &token}).Error)
	require.NoError(t, instance.Conn.Create(&models.User{ID: "u2"}).Error)

	users, err := NewUserRepository(instance).List(ctx, 100000, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "tok-1", *users[0].DeviceToken)
	assert.Nil(t, users[1].DeviceToken)

	notifications := NewNotificationRepository(instance)
	base := time.Now().UTC()
	require.NoError(t, notifications.Create(ctx, &models.Notification{ID: "n1", SensorID: "E1", Title: "t", Time: base}))
	require.NoError(t, notifications.Create(ctx, &models.Notification{ID: "n2", SensorID: "E2", Title: "t", Time: base.Add(time.Second)}))
	require.NoError(t, notifications.Create(ctx, &models.Notification{ID: "n3", SensorID: "E1", Title: "t", Time: base.Add(2 * time.Second)}))

	all, err := notifications.List(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"n3", "n2", "n1"}, common.Mapper(all, func(n models.Notification) string { return n.ID }))

	forE1, err := notifications.List(ctx, "E1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"n3", "n1"}, common.Mapper(forE1, func(n models.Notification) string { return n.ID }))
}

func TestSessionLogAppend(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionLogRepository(newTestDB(t))

	require.NoError(t, repo.Append(ctx, "client connect successfully"))

	entries, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "client connect successfully", entries[0].Log)
	assert.Equal(t, SessionLogTypeMQTT, entries[0].Type)
}
