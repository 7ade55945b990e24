// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// CalendarBlockRepository 房东日历仓储
type CalendarBlockRepository struct {
	db *gorm.DB
}

// NewCalendarBlockRepository 创建日历仓储
func NewCalendarBlockRepository(db *gorm.DB) *CalendarBlockRepository {
	return &CalendarBlockRepository{db: db}
}

// ListUnavailable 获取 [start, end) 内被关闭的日期，按日期升序
func (r *CalendarBlockRepository) ListUnavailable(ctx context.Context, villaID int64, start, end string) ([]*models.CalendarBlock, error) {
	var blocks []*models.CalendarBlock
	err := unavailableBlockQuery(r.db.WithContext(ctx), villaID, start, end).
		Order("date ASC").
		Find(&blocks).Error
	return blocks, err
}

// ListRange 获取 [start, end) 内的全部日历记录，含已重新开放的日期
func (r *CalendarBlockRepository) ListRange(ctx context.Context, villaID int64, start, end string) ([]*models.CalendarBlock, error) {
	var blocks []*models.CalendarBlock
	err := r.db.WithContext(ctx).
		Where("villa_id = ?", villaID).
		Where("date >= ? AND date < ?", start, end).
		Order("date ASC").
		Find(&blocks).Error
	return blocks, err
}

// Upsert 批量写入日期状态，同一 (villa_id, date) 覆盖旧值，note 为空时清除备注
// 与预订提交一样先锁房源行
func (r *CalendarBlockRepository) Upsert(ctx context.Context, villaID int64, dates []string, isAvailable, isBlocked bool, note string, actorID int64) error {
	if len(dates) == 0 {
		return nil
	}

	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	now := time.Now()
	rows := make([]*models.CalendarBlock, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, &models.CalendarBlock{
			VillaID:     villaID,
			Date:        d,
			IsAvailable: isAvailable,
			IsBlocked:   isBlocked,
			Note:        notePtr,
			UpdatedBy:   actorID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockVilla(tx, villaID); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "villa_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_available", "is_blocked", "note", "updated_by", "updated_at"}),
		}).Create(&rows).Error
	})
}

// DeleteBefore 删除早于 date 的日历记录，返回删除行数
// 过去的日期不再参与任何区间判断
func (r *CalendarBlockRepository) DeleteBefore(ctx context.Context, date string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("date < ?", date).
		Delete(&models.CalendarBlock{})
	return result.RowsAffected, result.Error
}
