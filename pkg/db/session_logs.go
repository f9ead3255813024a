package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

const SessionLogTypeMQTT = "MQTT"

// SessionLogRepository keeps an audit trail of broker session events
type SessionLogRepository struct {
	db *gorm.DB
}

func NewSessionLogRepository(d *DB) *SessionLogRepository {
	return &SessionLogRepository{db: d.Conn}
}

func (r *SessionLogRepository) Append(ctx context.Context, message string) error {
	entry := models.SessionLog{
		Log:  message,
		Time: time.Now().UTC(),
		Type: SessionLogTypeMQTT,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append session log: %w", err)
	}
	return nil
}

func (r *SessionLogRepository) List(ctx context.Context, limit int) ([]models.SessionLog, error) {
	var entries []models.SessionLog
	if err := r.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list session logs: %w", err)
	}
	return entries, nil
}
