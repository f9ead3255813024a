package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

var ErrNotFound = errors.New("record not found")

// SensorRepository handles database operations for models.Sensor
type SensorRepository struct {
	db *gorm.DB
}

func NewSensorRepository(d *DB) *SensorRepository {
	return &SensorRepository{db: d.Conn}
}

// Upsert inserts sensor, or overwrites only the given columns of the row that
// already carries its DevEUI.
func (r *SensorRepository) Upsert(ctx context.Context, sensor *models.Sensor, columns []string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dev_eui"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(sensor).Error
	if err != nil {
		return fmt.Errorf("failed to upsert sensor %s: %w", sensor.DevEUI, err)
	}
	return nil
}

func (r *SensorRepository) FindByDevEUI(ctx context.Context, devEUI string) (*models.Sensor, error) {
	var sensor models.Sensor
	err := r.db.WithContext(ctx).Where("dev_eui = ?", devEUI).First(&sensor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sensor %s: %w", devEUI, err)
	}
	return &sensor, nil
}

// List returns sensors ordered by EUI; an empty sensorType lists every type.
func (r *SensorRepository) List(ctx context.Context, sensorType string, limit, offset int) ([]models.Sensor, error) {
	var sensors []models.Sensor
	query := r.db.WithContext(ctx).Order("dev_eui").Limit(limit).Offset(offset)
	if sensorType != "" {
		query = query.Where("type = ?", sensorType)
	}
	if err := query.Find(&sensors).Error; err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	return sensors, nil
}

// ReserveNotification stamps last_notification with now when the previous
// stamp is missing or older than window. It reports whether the stamp was
// taken; the conditional update keeps concurrent handlers from both winning.
// A sensor without a row yet is always allowed.
func (r *SensorRepository) ReserveNotification(ctx context.Context, devEUI string, now time.Time, window time.Duration) (bool, error) {
	now = now.UTC()
	result := r.db.WithContext(ctx).Model(&models.Sensor{}).
		Where("dev_eui = ? AND (last_notification IS NULL OR last_notification <= ?)", devEUI, now.Add(-window)).
		Update("last_notification", now)
	if result.Error != nil {
		return false, fmt.Errorf("failed to reserve notification for %s: %w", devEUI, result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Sensor{}).Where("dev_eui = ?", devEUI).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up sensor %s: %w", devEUI, err)
	}
	return count == 0, nil
}
