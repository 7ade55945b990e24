// Package repository 提供数据访问层
package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// VillaRepository 房源仓储
type VillaRepository struct {
	db *gorm.DB
}

// NewVillaRepository 创建房源仓储
func NewVillaRepository(db *gorm.DB) *VillaRepository {
	return &VillaRepository{db: db}
}

// Create 创建房源
func (r *VillaRepository) Create(ctx context.Context, villa *models.Villa) error {
	return r.db.WithContext(ctx).Create(villa).Error
}

// GetByID 根据 ID 获取房源
func (r *VillaRepository) GetByID(ctx context.Context, id int64) (*models.Villa, error) {
	var villa models.Villa
	err := r.db.WithContext(ctx).First(&villa, id).Error
	if err != nil {
		return nil, err
	}
	return &villa, nil
}

// UpdateStatus 更新房源状态
func (r *VillaRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).Model(&models.Villa{}).Where("id = ?", id).Update("status", status).Error
}

// VillaListFilters 房源列表筛选条件
type VillaListFilters struct {
	HostUserID int64
	City       string
	Status     string
	MinGuests  int
}

// List 获取房源列表
func (r *VillaRepository) List(ctx context.Context, offset, limit int, filters *VillaListFilters) ([]*models.Villa, int64, error) {
	var villas []*models.Villa
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Villa{})

	if filters != nil {
		if filters.HostUserID > 0 {
			query = query.Where("host_user_id = ?", filters.HostUserID)
		}
		if filters.City != "" {
			query = query.Where("city = ?", filters.City)
		}
		if filters.Status != "" {
			query = query.Where("status = ?", filters.Status)
		}
		if filters.MinGuests > 0 {
			query = query.Where("occupancy >= ?", filters.MinGuests)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&villas).Error; err != nil {
		return nil, 0, err
	}

	return villas, total, nil
}

// ListPublished 获取已上架的房源列表
func (r *VillaRepository) ListPublished(ctx context.Context, offset, limit int, city string, minGuests int) ([]*models.Villa, int64, error) {
	return r.List(ctx, offset, limit, &VillaListFilters{
		City:      city,
		Status:    models.VillaStatusPublished,
		MinGuests: minGuests,
	})
}
