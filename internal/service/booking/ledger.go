package booking

import (
	"context"
	stderrors "errors"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
	"github.com/dumeirei/villa-booking-backend/internal/common/tracing"
	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// DefaultMaxCalendarDays 不可订日期查询的默认最大窗口
const DefaultMaxCalendarDays = 366

// maxNoteLength 与 calendar_blocks.note 列宽一致
const maxNoteLength = 255

// Ledger 房源可订日历
// 预订占用按区间判断，不按晚落库；房东关闭的日期存于 calendar_blocks
type Ledger struct {
	villas        VillaStore
	bookings      BookingStore
	blocks        CalendarBlockStore
	cache         *CalendarCache
	maxWindowDays int
}

// NewLedger 创建日历，cache 可为 nil
func NewLedger(villas VillaStore, bookings BookingStore, blocks CalendarBlockStore, cache *CalendarCache, maxWindowDays int) *Ledger {
	if maxWindowDays <= 0 {
		maxWindowDays = DefaultMaxCalendarDays
	}
	return &Ledger{
		villas:        villas,
		bookings:      bookings,
		blocks:        blocks,
		cache:         cache,
		maxWindowDays: maxWindowDays,
	}
}

// IsRangeFree [start, end) 是否没有有效预订和关闭日期
func (l *Ledger) IsRangeFree(ctx context.Context, villaID int64, start, end string) (bool, error) {
	stay, err := ParseStay(start, end)
	if err != nil {
		return false, err
	}
	return l.isStayFree(ctx, villaID, stay)
}

func (l *Ledger) isStayFree(ctx context.Context, villaID int64, stay Stay) (bool, error) {
	start, end := stay.StartDate(), stay.EndDate()

	bookings, err := l.bookings.ListActiveByVilla(ctx, villaID, start, end)
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}
	if len(bookings) > 0 {
		return false, nil
	}

	blocks, err := l.blocks.ListUnavailable(ctx, villaID, start, end)
	if err != nil {
		return false, errors.ErrDatabaseError.WithError(err)
	}
	return len(blocks) == 0, nil
}

// CheckAvailability 先确认房源存在，再判断区间是否空闲
func (l *Ledger) CheckAvailability(ctx context.Context, villaID int64, start, end string) (bool, error) {
	stay, err := ParseStay(start, end)
	if err != nil {
		return false, err
	}
	if _, err := l.getVilla(ctx, villaID); err != nil {
		return false, err
	}
	return l.isStayFree(ctx, villaID, stay)
}

// ListUnavailableDates 窗口内已被预订或关闭的日期，升序去重
func (l *Ledger) ListUnavailableDates(ctx context.Context, villaID int64, windowStart, windowEnd string) ([]string, error) {
	window, err := ParseStay(windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	if window.Nights() > l.maxWindowDays {
		return nil, errors.ErrInvalidRange.WithMessage("查询窗口过大")
	}
	if _, err := l.getVilla(ctx, villaID); err != nil {
		return nil, err
	}

	start, end := window.StartDate(), window.EndDate()
	// 版本号在读库前获取，读库期间若有提交则回填的是已失效版本
	cached, version, hit := l.cache.Lookup(ctx, villaID, start, end)
	if hit {
		return cached, nil
	}

	ctx, span := tracing.StartSpan(ctx, "booking.ledger.unavailable_dates", tracing.WithVillaID(villaID))
	defer span.End()

	set := make(map[string]struct{})

	bookings, err := l.bookings.ListActiveByVilla(ctx, villaID, start, end)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	for _, b := range bookings {
		s, err1 := ParseDate(b.StartDate)
		e, err2 := ParseDate(b.EndDate)
		if err1 != nil || err2 != nil {
			logger.Warn("Skipping booking with malformed dates", logger.BookingID(b.ID))
			continue
		}
		s, e = clamp(s, e, window.Start, window.End)
		for _, d := range EachNight(s, e) {
			set[d] = struct{}{}
		}
	}

	blocks, err := l.blocks.ListUnavailable(ctx, villaID, start, end)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	for _, b := range blocks {
		set[b.Date] = struct{}{}
	}

	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	l.cache.Fill(ctx, villaID, version, start, end, dates)
	return dates, nil
}

// BlockDates 房东关闭日期，note 为给自己看的备注
func (l *Ledger) BlockDates(ctx context.Context, villaID int64, dates []string, note string, actor Actor) ([]string, error) {
	if utf8.RuneCountInString(note) > maxNoteLength {
		return nil, errors.ErrInvalidParams.WithMessage("备注过长")
	}
	return l.setDates(ctx, villaID, dates, actor, false, note)
}

// UnblockDates 房东重新开放日期，同时清除备注
func (l *Ledger) UnblockDates(ctx context.Context, villaID int64, dates []string, actor Actor) ([]string, error) {
	return l.setDates(ctx, villaID, dates, actor, true, "")
}

func (l *Ledger) setDates(ctx context.Context, villaID int64, dates []string, actor Actor, available bool, note string) ([]string, error) {
	normalized, err := NormalizeDates(dates)
	if err != nil {
		return nil, err
	}
	if len(normalized) > l.maxWindowDays {
		return nil, errors.ErrInvalidParams.WithMessage("一次修改的日期过多")
	}

	villa, err := l.getVilla(ctx, villaID)
	if err != nil {
		return nil, err
	}
	if !actor.owns(villa.HostUserID) {
		return nil, errors.ErrPermissionDenied.WithMessage("只有房东可以修改日历")
	}

	if err := l.blocks.Upsert(ctx, villaID, normalized, available, !available, note, actor.UserID); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	l.Invalidate(ctx, villaID)

	logger.Info("Calendar updated",
		logger.VillaID(villaID),
		logger.UserID(actor.UserID),
		zap.Bool("available", available),
		zap.Int("dates", len(normalized)),
	)
	return normalized, nil
}

// HostCalendar 房东查看窗口内的日历记录，包括备注和已重新开放的日期
func (l *Ledger) HostCalendar(ctx context.Context, villaID int64, windowStart, windowEnd string, actor Actor) ([]*models.CalendarBlock, error) {
	window, err := ParseStay(windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	if window.Nights() > l.maxWindowDays {
		return nil, errors.ErrInvalidRange.WithMessage("查询窗口过大")
	}
	villa, err := l.getVilla(ctx, villaID)
	if err != nil {
		return nil, err
	}
	if !actor.owns(villa.HostUserID) {
		return nil, errors.ErrPermissionDenied.WithMessage("只有房东可以查看日历")
	}

	blocks, err := l.blocks.ListRange(ctx, villaID, window.StartDate(), window.EndDate())
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return blocks, nil
}

// Invalidate 清除房源的日历缓存
func (l *Ledger) Invalidate(ctx context.Context, villaID int64) {
	l.cache.Invalidate(ctx, villaID)
}

func (l *Ledger) getVilla(ctx context.Context, villaID int64) (*models.Villa, error) {
	villa, err := l.villas.GetByID(ctx, villaID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrVillaNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return villa, nil
}
