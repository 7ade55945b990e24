// Package repository 提供数据访问层
package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// UserRepository 用户仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID 根据 ID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsActive 用户是否存在且未被禁用
func (r *UserRepository) ExistsActive(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND status = ?", id, models.UserStatusActive).
		Count(&count).Error
	return count > 0, err
}

// PhoneOf 用户手机号，未绑定时返回空串
func (r *UserRepository) PhoneOf(ctx context.Context, id int64) (string, error) {
	var phones []string
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND phone IS NOT NULL", id).
		Limit(1).
		Pluck("phone", &phones).Error
	if err != nil || len(phones) == 0 {
		return "", err
	}
	return phones[0], nil
}
