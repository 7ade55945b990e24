package booking

import (
	"context"
	"time"

	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// CancellationPolicy 取消前的放行判断
type CancellationPolicy interface {
	Allow(ctx context.Context, booking *models.Booking, villa *models.Villa, actor Actor, now time.Time) bool
}

// AllowAll 默认策略，始终放行
type AllowAll struct{}

// Allow 始终放行
func (AllowAll) Allow(context.Context, *models.Booking, *models.Villa, Actor, time.Time) bool {
	return true
}

// NoticePolicy 按房源取消政策要求提前量
// 房客取消已确认的预订时检查，房东、管理员和待确认预订不受限制
type NoticePolicy struct {
	Notice map[string]time.Duration
}

// DefaultNoticePolicy 宽松 1 天、适中 5 天、严格 14 天
func DefaultNoticePolicy() *NoticePolicy {
	return &NoticePolicy{
		Notice: map[string]time.Duration{
			models.CancellationPolicyFlexible: 24 * time.Hour,
			models.CancellationPolicyModerate: 5 * 24 * time.Hour,
			models.CancellationPolicyStrict:   14 * 24 * time.Hour,
		},
	}
}

// Allow 入住日零点前至少留出政策要求的时间
func (p *NoticePolicy) Allow(_ context.Context, booking *models.Booking, villa *models.Villa, actor Actor, now time.Time) bool {
	if actor.IsAdmin || actor.UserID == booking.HostUserID {
		return true
	}
	if booking.Status == models.BookingStatusPending {
		return true
	}

	checkIn, err := ParseDate(booking.StartDate)
	if err != nil {
		return false
	}
	notice, ok := p.Notice[villa.CancellationPolicy]
	if !ok {
		notice = p.Notice[models.CancellationPolicyStrict]
	}
	return !now.Add(notice).After(checkIn)
}
