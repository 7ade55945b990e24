package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// NotificationRepository 站内通知仓储
// user_id 为空的通知是系统广播，对所有用户可见但没有已读状态
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// NotificationFilter 用户收件箱筛选条件，零值不筛选
type NotificationFilter struct {
	Type      string
	BookingID int64
	IsRead    *bool
}

// visibleTo 用户本人的通知加系统广播
func visibleTo(userID int64) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(user_id = ? OR user_id IS NULL)", userID)
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// CreateBookingNotification 写入一条预订事件通知
func (r *NotificationRepository) CreateBookingNotification(ctx context.Context, userID, bookingID int64, event, title, content string) error {
	return r.Create(ctx, &models.Notification{
		UserID:    &userID,
		Type:      models.NotificationTypeBooking,
		Event:     event,
		Title:     title,
		Content:   content,
		BookingID: &bookingID,
	})
}

// GetForUser 按 ID 读取用户可见的通知，不可见时返回 gorm.ErrRecordNotFound
func (r *NotificationRepository) GetForUser(ctx context.Context, id, userID int64) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Scopes(visibleTo(userID)).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ListForUser 分页列出收件箱，新通知在前
func (r *NotificationRepository) ListForUser(ctx context.Context, userID int64, f NotificationFilter, offset, limit int) ([]*models.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Scopes(visibleTo(userID))
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.BookingID > 0 {
		query = query.Where("booking_id = ?", f.BookingID)
	}
	if f.IsRead != nil {
		query = query.Where("is_read = ?", *f.IsRead)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*models.Notification
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// MarkAsRead 标记本人的通知已读，已读的保留原 read_at，广播不受影响
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID int64) error {
	return r.markRead(r.db.WithContext(ctx).Where("id = ?", id), userID)
}

// MarkAllAsRead 标记本人全部通知已读
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID int64) error {
	return r.markRead(r.db.WithContext(ctx), userID)
}

func (r *NotificationRepository) markRead(query *gorm.DB, userID int64) error {
	return query.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()}).Error
}

// CountUnread 本人未读数量，不含广播
func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
