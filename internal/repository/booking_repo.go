// Package repository 提供数据访问层
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// ErrRangeTaken 事务内复核发现日期区间已被占用
var ErrRangeTaken = errors.New("booking date range already taken")

// BookingRepository 预订仓储
type BookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository 创建预订仓储
func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// InsertAtomic 锁定房源行后复核占用并插入预订
// 同一房源的提交与日历修改在该行锁上串行
func (r *BookingRepository) InsertAtomic(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockVilla(tx, booking.VillaID); err != nil {
			return err
		}

		var overlapping int64
		if err := overlapQuery(tx, booking.VillaID, booking.StartDate, booking.EndDate).
			Count(&overlapping).Error; err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrRangeTaken
		}

		var blocked int64
		if err := unavailableBlockQuery(tx, booking.VillaID, booking.StartDate, booking.EndDate).
			Count(&blocked).Error; err != nil {
			return err
		}
		if blocked > 0 {
			return ErrRangeTaken
		}

		return tx.Create(booking).Error
	})
}

// GetByID 根据 ID 获取预订
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByBookingNo 根据预订号获取预订
func (r *BookingRepository) GetByBookingNo(ctx context.Context, bookingNo string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Where("booking_no = ?", bookingNo).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// TransitionStatus 条件更新状态，仅当当前状态属于 from 时生效
// 返回 false 表示状态已被其他请求改变
func (r *BookingRepository) TransitionStatus(ctx context.Context, id int64, from []string, to string, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Where("status IN ?", from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListActiveByVilla 获取与 [start, end) 重叠的有效预订
func (r *BookingRepository) ListActiveByVilla(ctx context.Context, villaID int64, start, end string) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := overlapQuery(r.db.WithContext(ctx), villaID, start, end).
		Order("start_date ASC").
		Find(&bookings).Error
	return bookings, err
}

// ListStalePending 获取创建时间早于 before 的待确认预订，按创建时间升序
func (r *BookingRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.Booking, error) {
	var bookings []*models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ?", models.BookingStatusPending).
		Where("created_at < ?", before).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

// BookingListFilters 预订列表筛选条件
type BookingListFilters struct {
	VillaID     int64
	GuestUserID int64
	HostUserID  int64
	Status      string
}

// List 获取预订列表
func (r *BookingRepository) List(ctx context.Context, offset, limit int, filters *BookingListFilters) ([]*models.Booking, int64, error) {
	var bookings []*models.Booking
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Booking{})

	if filters != nil {
		if filters.VillaID > 0 {
			query = query.Where("villa_id = ?", filters.VillaID)
		}
		if filters.GuestUserID > 0 {
			query = query.Where("guest_user_id = ?", filters.GuestUserID)
		}
		if filters.HostUserID > 0 {
			query = query.Where("host_user_id = ?", filters.HostUserID)
		}
		if filters.Status != "" {
			query = query.Where("status = ?", filters.Status)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Order("start_date ASC, id ASC").
		Offset(offset).Limit(limit).
		Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

// ListByVilla 获取房源的预订列表
func (r *BookingRepository) ListByVilla(ctx context.Context, villaID int64, offset, limit int, status string) ([]*models.Booking, int64, error) {
	return r.List(ctx, offset, limit, &BookingListFilters{VillaID: villaID, Status: status})
}

// ListByGuest 获取房客的预订列表
func (r *BookingRepository) ListByGuest(ctx context.Context, guestUserID int64, offset, limit int, status string) ([]*models.Booking, int64, error) {
	return r.List(ctx, offset, limit, &BookingListFilters{GuestUserID: guestUserID, Status: status})
}

// lockVilla 对房源行加排他锁，SQLite 下由单连接保证串行
func lockVilla(tx *gorm.DB, villaID int64) error {
	var villa models.Villa
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&villa, villaID).Error
}

// overlapQuery 半开区间重叠：start_date < end AND end_date > start
func overlapQuery(db *gorm.DB, villaID int64, start, end string) *gorm.DB {
	return db.Model(&models.Booking{}).
		Where("villa_id = ?", villaID).
		Where("status IN ?", models.ActiveBookingStatuses).
		Where("start_date < ? AND end_date > ?", end, start)
}

// unavailableBlockQuery 区间内被房东关闭的日期
func unavailableBlockQuery(db *gorm.DB, villaID int64, start, end string) *gorm.DB {
	return db.Model(&models.CalendarBlock{}).
		Where("villa_id = ?", villaID).
		Where("date >= ? AND date < ?", start, end).
		Where("(is_blocked = ? OR is_available = ?)", true, false)
}
