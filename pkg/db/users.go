package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"liyu1981.xyz/iot-fire-alarm-service/pkg/models"
)

// UserRepository reads the users registered by the mobile app
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(d *DB) *UserRepository {
	return &UserRepository{db: d.Conn}
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("id").Limit(limit).Offset(offset).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
