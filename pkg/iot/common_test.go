package iot

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/actuator"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/db"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/iot/mocks"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

const (
	testSmokeProfile   = "p-smoke"
	testTempHumProfile = "p-th"
	testButtonProfile  = "p-button"
)

var testDownlink = actuator.QueueItem{Data: "AQ==", FPort: 10, Confirmed: true}

func testOptions() Options {
	return Options{
		Profiles: Profiles{
			Smoke:        testSmokeProfile,
			TempHumidity: testTempHumProfile,
			Button:       testButtonProfile,
		},
		Actuator: ActuatorOptions{Type: "Speaker", Downlink: testDownlink},
		Reset:    LegacyResetPolicy,
	}
}

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func GetMockIOTWithMemorySqliteDialector(t *testing.T, opts Options) (
	*gomock.Controller,
	*IOT,
	*mocks.MockPusher,
	*mocks.MockDownlinker,
) {
	ctrl := gomock.NewController(t)

	mockPusher := mocks.NewMockPusher(ctrl)
	mockDownlinker := mocks.NewMockDownlinker(ctrl)

	dbInstance, err := db.New(db.UseMemorySqliteDialector(uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbInstance.Close() })

	iotInstance := New(dbInstance, opts, mockPusher, mockDownlinker)
	iotInstance.now = func() time.Time { return testNow }

	return ctrl, iotInstance, mockPusher, mockDownlinker
}

func seedActuators(t *testing.T, i *IOT, devEUIs ...string) {
	t.Helper()
	repo := db.NewSensorRepository(i.Db)
	for _, devEUI := range devEUIs {
		require.NoError(t, repo.Upsert(context.Background(), &models.Sensor{
			DevEUI: devEUI,
			Name:   "Speaker",
			Type:   "Speaker",
			Status: models.StatusOn,
		}, []string{"type"}))
	}
}

func seedUsers(t *testing.T, i *IOT, tokens ...string) {
	t.Helper()
	for _, token := range tokens {
		user := models.User{ID: uuid.NewString()}
		if token != "" {
			tok := token
			user.DeviceToken = &tok
		}
		require.NoError(t, i.Db.Conn.Create(&user).Error)
	}
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}
