package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

// NotificationRepository appends and reads dispatched fire alerts
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(d *DB) *NotificationRepository {
	return &NotificationRepository{db: d.Conn}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// List returns the newest notifications first, optionally for one sensor.
func (r *NotificationRepository) List(ctx context.Context, sensorID string, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	query := r.db.WithContext(ctx).Order("time desc").Limit(limit)
	if sensorID != "" {
		query = query.Where("sensor_id = ?", sensorID)
	}
	if err := query.Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
