package iot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/common"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/db"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

var telemetryColumns = []string{
	"name", "time", "battery", "type", "value", "humidity", "smoke", "temperature", "status",
}

// ResetPolicy decides which legacy fields a telemetry write clears.
type ResetPolicy struct {
	ClearTurnOnTime       bool
	ClearLastNotification bool
}

// LegacyResetPolicy clears time_turn_on on every write and last_notification
// on smoke writes.
var LegacyResetPolicy = ResetPolicy{ClearTurnOnTime: true, ClearLastNotification: true}

// Apply resets the fields on sensor and returns the extra columns the upsert
// must overwrite.
func (p ResetPolicy) Apply(kind Kind, sensor *models.Sensor) []string {
	var columns []string
	if p.ClearTurnOnTime {
		sensor.TimeTurnOn = ""
		columns = append(columns, "time_turn_on")
	}
	if p.ClearLastNotification && kind == KindSmoke {
		sensor.LastNotification = nil
		columns = append(columns, "last_notification")
	}
	return columns
}

func sensorFromReading(r Reading, now time.Time) *models.Sensor {
	return &models.Sensor{
		DevEUI:      r.DevEUI,
		Name:        r.Name,
		Time:        now,
		Battery:     r.Battery,
		Type:        r.Type,
		Value:       r.Value,
		Humidity:    r.Humidity,
		Smoke:       0,
		Temperature: r.Temperature,
		Status:      r.Status,
	}
}

func (i *IOT) writeState(ctx context.Context, r Reading, now time.Time) error {
	logger := common.GetLoggerWith(
		common.LoggerNameIOTCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryState),
	)

	sensor := sensorFromReading(r, now)
	columns := append(append([]string{}, telemetryColumns...), i.Options.Reset.Apply(r.Kind, sensor)...)

	if err := db.NewSensorRepository(i.Db).Upsert(ctx, sensor, columns); err != nil {
		logger.Error("Sensor state write failed", zap.String("dev_eui", r.DevEUI), zap.Error(err))
		return fmt.Errorf("write state of %s: %w", r.DevEUI, err)
	}

	logger.Info("Sensor state updated",
		zap.String("dev_eui", r.DevEUI),
		zap.String("kind", string(r.Kind)),
		zap.String("status", string(r.Status)),
	)
	return nil
}

type IStateImpl struct {
	iot *IOT
}

func (is *IStateImpl) Write(ctx context.Context, r Reading, now time.Time) error {
	return is.iot.writeState(ctx, r, now)
}

func (i *IOT) GetIState() IState {
	return &IStateImpl{iot: i}
}
