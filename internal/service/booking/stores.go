package booking

import (
	"context"
	"time"

	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// VillaStore 房源读取
type VillaStore interface {
	GetByID(ctx context.Context, id int64) (*models.Villa, error)
}

// GuestStore 用户存在性检查
type GuestStore interface {
	ExistsActive(ctx context.Context, id int64) (bool, error)
}

// BookingStore 预订存储，不做权限判断
type BookingStore interface {
	ListActiveByVilla(ctx context.Context, villaID int64, start, end string) ([]*models.Booking, error)
	InsertAtomic(ctx context.Context, booking *models.Booking) error
	TransitionStatus(ctx context.Context, id int64, from []string, to string, fields map[string]interface{}) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByBookingNo(ctx context.Context, bookingNo string) (*models.Booking, error)
	ListByVilla(ctx context.Context, villaID int64, offset, limit int, status string) ([]*models.Booking, int64, error)
	ListByGuest(ctx context.Context, guestUserID int64, offset, limit int, status string) ([]*models.Booking, int64, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.Booking, error)
}

// CalendarBlockStore 房东日历存储
type CalendarBlockStore interface {
	ListUnavailable(ctx context.Context, villaID int64, start, end string) ([]*models.CalendarBlock, error)
	ListRange(ctx context.Context, villaID int64, start, end string) ([]*models.CalendarBlock, error)
	Upsert(ctx context.Context, villaID int64, dates []string, isAvailable, isBlocked bool, note string, actorID int64) error
}

// Actor 当前操作者
type Actor struct {
	UserID  int64
	IsAdmin bool
}

// owns 操作者是否为该用户本人或管理员
func (a Actor) owns(userID int64) bool {
	return a.IsAdmin || (a.UserID != 0 && a.UserID == userID)
}
