package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/villa-booking-backend/internal/common/config"
	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
)

// 任务名称
const (
	TaskExpirePending = "expire_pending_bookings"
	TaskPruneCalendar = "prune_calendar_blocks"
)

// PendingExpirer 取消超时未确认的预订
type PendingExpirer interface {
	ExpirePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// CalendarPruner 清理过期日历记录
type CalendarPruner interface {
	DeleteBefore(ctx context.Context, date string) (int64, error)
}

// TaskHandler 任务处理器
type TaskHandler struct {
	expirer     PendingExpirer
	pruner      CalendarPruner
	expireAfter time.Duration
	batch       int
	retainDays  int
	now         func() time.Time
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(expirer PendingExpirer, pruner CalendarPruner, cfg *config.Config) *TaskHandler {
	return &TaskHandler{
		expirer:     expirer,
		pruner:      pruner,
		expireAfter: cfg.Business.Booking.PendingExpireDuration(),
		batch:       cfg.Scheduler.ExpirePendingBatch,
		retainDays:  cfg.Scheduler.CalendarRetainDays,
		now:         time.Now,
	}
}

// ExpirePendingBookings 自动取消长时间未确认的预订，释放日期
func (h *TaskHandler) ExpirePendingBookings(ctx context.Context) error {
	if h.expireAfter <= 0 {
		return nil
	}
	n, err := h.expirer.ExpirePending(ctx, h.expireAfter, h.batch)
	if n > 0 {
		logger.Info("Pending bookings expired", zap.Int("count", n))
	}
	return err
}

// PruneCalendarBlocks 删除 retainDays 天以前的日历记录
func (h *TaskHandler) PruneCalendarBlocks(ctx context.Context) error {
	if h.retainDays <= 0 {
		return nil
	}
	cutoff := h.now().UTC().AddDate(0, 0, -h.retainDays).Format(booking.DateLayout)
	n, err := h.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("Calendar blocks pruned", zap.Int64("count", n), zap.String("before", cutoff))
	}
	return nil
}

// Register 按配置注册全部任务
func Register(s *Scheduler, h *TaskHandler, cfg *config.SchedulerConfig) error {
	if err := s.AddTask(TaskExpirePending, cfg.ExpirePendingSpec, h.ExpirePendingBookings); err != nil {
		return err
	}
	return s.AddTask(TaskPruneCalendar, cfg.PruneCalendarSpec, h.PruneCalendarBlocks)
}
