package booking

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
	"github.com/dumeirei/villa-booking-backend/internal/common/metrics"
	"github.com/dumeirei/villa-booking-backend/internal/common/tracing"
	"github.com/dumeirei/villa-booking-backend/internal/common/utils"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/repository"
	"github.com/dumeirei/villa-booking-backend/internal/service/notify"
)

// DefaultBookingNoPrefix 预订号前缀
const DefaultBookingNoPrefix = "V"

// DefaultMaxStayNights 单次入住晚数上限
const DefaultMaxStayNights = 90

// expiredReason 超时自动取消的原因
const expiredReason = "超时未确认，系统自动取消"

const maxReasonLength = 255

// ManagerOptions 可选依赖，零值可用
type ManagerOptions struct {
	Policy          CancellationPolicy
	Sink            notify.Sink
	Metrics         *metrics.Metrics
	BookingNoPrefix string
	MaxStayNights   int
	Now             func() time.Time
}

// Manager 预订事务
type Manager struct {
	villas          VillaStore
	guests          GuestStore
	bookings        BookingStore
	ledger          *Ledger
	policy          CancellationPolicy
	sink            notify.Sink
	metrics         *metrics.Metrics
	bookingNoPrefix string
	maxStayNights   int
	now             func() time.Time
}

// NewManager 创建预订事务
func NewManager(villas VillaStore, guests GuestStore, bookings BookingStore, ledger *Ledger, opts ManagerOptions) *Manager {
	m := &Manager{
		villas:          villas,
		guests:          guests,
		bookings:        bookings,
		ledger:          ledger,
		policy:          opts.Policy,
		sink:            opts.Sink,
		metrics:         opts.Metrics,
		bookingNoPrefix: opts.BookingNoPrefix,
		maxStayNights:   opts.MaxStayNights,
		now:             opts.Now,
	}
	if m.policy == nil {
		m.policy = AllowAll{}
	}
	if m.sink == nil {
		m.sink = notify.NopSink{}
	}
	if m.bookingNoPrefix == "" {
		m.bookingNoPrefix = DefaultBookingNoPrefix
	}
	if m.maxStayNights <= 0 {
		m.maxStayNights = DefaultMaxStayNights
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Ledger 返回关联的日历
func (m *Manager) Ledger() *Ledger {
	return m.ledger
}

// SubmitRequest 提交预订请求
// TotalPrice 为客户端展示的总价，仅用于比对，不参与计价
type SubmitRequest struct {
	VillaID     int64    `json:"villa_id" binding:"required"`
	GuestUserID int64    `json:"guest_user_id"`
	StartDate   string   `json:"start_date" binding:"required"`
	EndDate     string   `json:"end_date" binding:"required"`
	Adults      int      `json:"adults"`
	Children    int      `json:"children"`
	Infants     int      `json:"infants"`
	TotalPrice  *float64 `json:"total_price,omitempty"`
}

// QuoteRequest 报价请求
type QuoteRequest struct {
	VillaID   int64
	StartDate string
	EndDate   string
	Adults    int
	Children  int
}

// SubmitBooking 校验并原子地占用日期，按顺序检查，遇到第一个失败即返回
func (m *Manager) SubmitBooking(ctx context.Context, actor Actor, req *SubmitRequest) (booking *models.Booking, err error) {
	attrs := append(tracing.WithStay(req.StartDate, req.EndDate),
		tracing.WithVillaID(req.VillaID),
		tracing.WithUserID(actor.UserID),
	)
	ctx, span := tracing.StartSpan(ctx, "booking.submit", attrs...)
	defer func() {
		m.finishSubmit(span, req, err)
		span.End()
	}()

	// 结构校验
	stay, villa, err := m.checkStructure(ctx, req.VillaID, req.StartDate, req.EndDate, req.Adults, req.Children, req.Infants)
	if err != nil {
		return nil, err
	}
	if err := m.checkGuest(ctx, req.GuestUserID); err != nil {
		return nil, err
	}

	// 房源规则
	if err := checkPolicy(villa, stay, req.Adults, req.Children); err != nil {
		return nil, err
	}

	// 身份
	if !actor.owns(req.GuestUserID) {
		return nil, errors.ErrIdentityMismatch
	}

	// 可订性预检，真正的判断在事务内复核
	free, err := m.ledger.isStayFree(ctx, villa.ID, stay)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, errors.ErrDatesUnavailable
	}

	quote := QuoteFor(villa, stay.Nights())
	if req.TotalPrice != nil && !quote.MatchesYuan(*req.TotalPrice) {
		logger.Debug("Client total ignored",
			logger.VillaID(villa.ID),
			zap.Float64("client_total", *req.TotalPrice),
			zap.Float64("total", quote.TotalPrice),
		)
	}

	booking = &models.Booking{
		BookingNo:     utils.GenerateBookingNo(m.bookingNoPrefix, m.now()),
		VillaID:       villa.ID,
		GuestUserID:   req.GuestUserID,
		HostUserID:    villa.HostUserID,
		StartDate:     stay.StartDate(),
		EndDate:       stay.EndDate(),
		Adults:        req.Adults,
		Children:      req.Children,
		Infants:       req.Infants,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusPending,
	}
	quote.Apply(booking)

	if err := m.commit(ctx, booking); err != nil {
		return nil, err
	}
	span.SetAttributes(tracing.WithBookingID(booking.ID))

	m.ledger.Invalidate(ctx, villa.ID)
	m.publish(ctx, notify.EventCreated, booking)

	logger.Info("Booking accepted",
		logger.BookingID(booking.ID),
		logger.BookingNo(booking.BookingNo),
		logger.VillaID(booking.VillaID),
		logger.UserID(booking.GuestUserID),
		logger.StayRange(booking.StartDate, booking.EndDate),
	)
	return booking, nil
}

// commit 加锁复核后插入，预订号冲突时换号重试一次
func (m *Manager) commit(ctx context.Context, booking *models.Booking) error {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		err := m.bookings.InsertAtomic(ctx, booking)
		if m.metrics != nil {
			m.metrics.ObserveBookingCommit(time.Since(start))
		}

		switch {
		case err == nil:
			return nil
		case stderrors.Is(err, repository.ErrRangeTaken):
			return errors.ErrDatesUnavailable
		case stderrors.Is(err, gorm.ErrRecordNotFound):
			return errors.ErrVillaNotFound
		case stderrors.Is(err, gorm.ErrDuplicatedKey) && attempt == 0:
			booking.ID = 0
			booking.BookingNo = utils.GenerateBookingNo(m.bookingNoPrefix, m.now())
			continue
		}
		return errors.ErrDatabaseError.WithError(err)
	}
}

func (m *Manager) finishSubmit(span trace.Span, req *SubmitRequest, err error) {
	result := "accepted"
	if err != nil {
		kind := errors.KindOf(err)
		result = kind.String()
		span.SetAttributes(tracing.WithErrorKind(result))

		fields := []zap.Field{
			logger.VillaID(req.VillaID),
			logger.UserID(req.GuestUserID),
			logger.StayRange(req.StartDate, req.EndDate),
			zap.String("kind", result),
		}
		switch kind {
		case errors.KindDatesUnavailable:
			logger.Info("Booking rejected: dates unavailable", fields...)
		case errors.KindStoreFailure, errors.KindUnknown:
			tracing.RecordFailure(span, err)
			logger.Error("Booking submission failed", append(fields, zap.Error(err))...)
		default:
			logger.Debug("Booking rejected", append(fields, zap.Error(err))...)
		}
	}
	if m.metrics != nil {
		m.metrics.RecordBookingSubmission(result)
	}
}

// QuoteStay 报价预览，只做结构和房源规则校验
func (m *Manager) QuoteStay(ctx context.Context, req *QuoteRequest) (*Quote, error) {
	stay, villa, err := m.checkStructure(ctx, req.VillaID, req.StartDate, req.EndDate, req.Adults, req.Children, 0)
	if err != nil {
		return nil, err
	}
	if err := checkPolicy(villa, stay, req.Adults, req.Children); err != nil {
		return nil, err
	}
	return QuoteFor(villa, stay.Nights()), nil
}

func (m *Manager) checkStructure(ctx context.Context, villaID int64, start, end string, adults, children, infants int) (Stay, *models.Villa, error) {
	stay, err := ParseStay(start, end)
	if err != nil {
		return Stay{}, nil, err
	}
	if stay.Nights() > m.maxStayNights {
		return Stay{}, nil, errors.ErrInvalidRange.WithMessage(fmt.Sprintf("单次入住不能超过 %d 晚", m.maxStayNights))
	}
	if adults < 1 {
		return Stay{}, nil, errors.ErrInvalidGuests.WithMessage("至少需要一位成人")
	}
	if children < 0 || infants < 0 {
		return Stay{}, nil, errors.ErrInvalidGuests
	}
	villa, err := m.ledger.getVilla(ctx, villaID)
	if err != nil {
		return Stay{}, nil, err
	}
	return stay, villa, nil
}

func (m *Manager) checkGuest(ctx context.Context, guestID int64) error {
	if guestID <= 0 {
		return errors.ErrGuestNotFound
	}
	exists, err := m.guests.ExistsActive(ctx, guestID)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if !exists {
		return errors.ErrGuestNotFound
	}
	return nil
}

// checkPolicy 婴儿不计入入住人数
func checkPolicy(villa *models.Villa, stay Stay, adults, children int) error {
	if stay.Nights() < villa.MinimumStayNights {
		return errors.ErrBelowMinimumStay
	}
	if adults+children > villa.Occupancy {
		return errors.ErrOverOccupancy
	}
	if !villa.IsPublished() {
		return errors.ErrNotPublished
	}
	return nil
}

// ============================================================================
// 状态流转
// ============================================================================

// ConfirmBooking 房东确认 pending -> confirmed
func (m *Manager) ConfirmBooking(ctx context.Context, actor Actor, bookingID int64) (*models.Booking, error) {
	ctx, span := tracing.StartSpan(ctx, "booking.confirm", tracing.WithBookingID(bookingID), tracing.WithUserID(actor.UserID))
	defer span.End()

	booking, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.owns(booking.HostUserID) {
		return nil, errors.ErrPermissionDenied.WithMessage("只有房东可以确认预订")
	}
	if booking.Status != models.BookingStatusPending {
		return nil, errors.ErrInvalidTransition
	}

	now := m.now()
	err = m.transition(ctx, booking, []string{models.BookingStatusPending}, models.BookingStatusConfirmed,
		map[string]interface{}{"confirmed_at": now},
		func(b *models.Booking) { b.ConfirmedAt = &now },
	)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, notify.EventConfirmed, booking)
	logger.Info("Booking confirmed", logger.BookingID(booking.ID), logger.UserID(actor.UserID))
	return booking, nil
}

// CancelBooking 取消 pending|confirmed -> cancelled，立即释放日期
func (m *Manager) CancelBooking(ctx context.Context, actor Actor, bookingID int64, reason string) (*models.Booking, error) {
	ctx, span := tracing.StartSpan(ctx, "booking.cancel", tracing.WithBookingID(bookingID), tracing.WithUserID(actor.UserID))
	defer span.End()

	booking, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.owns(booking.GuestUserID) && !actor.owns(booking.HostUserID) {
		return nil, errors.ErrPermissionDenied
	}
	if !booking.IsActive() {
		return nil, errors.ErrInvalidTransition
	}

	villa, err := m.ledger.getVilla(ctx, booking.VillaID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if !m.policy.Allow(ctx, booking, villa, actor, now) {
		return nil, errors.ErrCancellationRefused
	}

	reasonPtr := normalizeReason(reason)
	actorID := actor.UserID
	err = m.transition(ctx, booking, models.ActiveBookingStatuses, models.BookingStatusCancelled,
		map[string]interface{}{
			"cancelled_at":        now,
			"cancelled_by":        actorID,
			"cancellation_reason": reasonPtr,
		},
		func(b *models.Booking) {
			b.CancelledAt = &now
			b.CancelledBy = &actorID
			b.CancellationReason = reasonPtr
		},
	)
	if err != nil {
		return nil, err
	}

	m.publish(ctx, notify.EventCancelled, booking)
	logger.Info("Booking cancelled", logger.BookingID(booking.ID), logger.UserID(actor.UserID))
	return booking, nil
}

// ExpirePending 取消创建超过 olderThan 仍未确认的预订，返回取消数量
func (m *Manager) ExpirePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if olderThan <= 0 || limit <= 0 {
		return 0, nil
	}

	stale, err := m.bookings.ListStalePending(ctx, m.now().Add(-olderThan), limit)
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}

	expired := 0
	for _, booking := range stale {
		now := m.now()
		reason := expiredReason
		err := m.transition(ctx, booking, []string{models.BookingStatusPending}, models.BookingStatusCancelled,
			map[string]interface{}{
				"cancelled_at":        now,
				"cancellation_reason": reason,
			},
			func(b *models.Booking) {
				b.CancelledAt = &now
				b.CancellationReason = &reason
			},
		)
		if errors.Is(err, errors.ErrInvalidTransition) {
			// 已被房东确认或取消
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
		m.publish(ctx, notify.EventExpired, booking)
	}

	if expired > 0 {
		logger.Info("Expired pending bookings", zap.Int("count", expired))
	}
	return expired, nil
}

// transition 条件更新，只有一个并发请求能成功
func (m *Manager) transition(ctx context.Context, booking *models.Booking, from []string, to string, fields map[string]interface{}, apply func(*models.Booking)) error {
	ok, err := m.bookings.TransitionStatus(ctx, booking.ID, from, to, fields)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if !ok {
		return errors.ErrInvalidTransition
	}

	booking.Status = to
	apply(booking)

	m.ledger.Invalidate(ctx, booking.VillaID)
	if m.metrics != nil {
		m.metrics.RecordBookingTransition(to)
	}
	return nil
}

func normalizeReason(reason string) *string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		reason = string([]rune(reason)[:maxReasonLength])
	}
	return &reason
}

// ============================================================================
// 查询
// ============================================================================

// GetBooking 房客、房东或管理员查看预订
func (m *Manager) GetBooking(ctx context.Context, actor Actor, bookingID int64) (*models.Booking, error) {
	booking, err := m.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.owns(booking.GuestUserID) && !actor.owns(booking.HostUserID) {
		return nil, errors.ErrPermissionDenied
	}
	return booking, nil
}

// LookupCheckIn 房东按入住码中的预订号核验预订，预订须属于该房源
func (m *Manager) LookupCheckIn(ctx context.Context, actor Actor, villaID int64, bookingNo string) (*models.Booking, error) {
	bookingNo = strings.TrimSpace(bookingNo)
	if bookingNo == "" {
		return nil, errors.ErrInvalidParams.WithMessage("缺少预订号")
	}
	booking, err := m.bookings.GetByBookingNo(ctx, bookingNo)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if booking.VillaID != villaID {
		return nil, errors.ErrBookingNotFound
	}
	if !actor.owns(booking.HostUserID) {
		return nil, errors.ErrPermissionDenied.WithMessage("只有房东可以核验入住")
	}
	return booking, nil
}

// ListVillaBookings 房东或管理员查看房源的预订
func (m *Manager) ListVillaBookings(ctx context.Context, actor Actor, villaID int64, page utils.Pagination, status string) ([]*models.Booking, int64, error) {
	if err := checkStatusFilter(status); err != nil {
		return nil, 0, err
	}
	villa, err := m.ledger.getVilla(ctx, villaID)
	if err != nil {
		return nil, 0, err
	}
	if !actor.owns(villa.HostUserID) {
		return nil, 0, errors.ErrPermissionDenied
	}

	list, total, err := m.bookings.ListByVilla(ctx, villaID, page.GetOffset(), page.GetLimit(), status)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

// ListGuestBookings 当前用户作为房客的预订
func (m *Manager) ListGuestBookings(ctx context.Context, actor Actor, page utils.Pagination, status string) ([]*models.Booking, int64, error) {
	if err := checkStatusFilter(status); err != nil {
		return nil, 0, err
	}
	list, total, err := m.bookings.ListByGuest(ctx, actor.UserID, page.GetOffset(), page.GetLimit(), status)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

func checkStatusFilter(status string) error {
	switch status {
	case "", models.BookingStatusPending, models.BookingStatusConfirmed, models.BookingStatusCancelled:
		return nil
	}
	return errors.ErrInvalidParams.WithMessage("无效的预订状态")
}

func (m *Manager) getBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := m.bookings.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrBookingNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return booking, nil
}

// publish 通知房客和房东，投递失败只记录日志
func (m *Manager) publish(ctx context.Context, eventType string, booking *models.Booking) {
	ctx = context.WithoutCancel(ctx)
	for _, event := range notify.EventsFor(eventType, booking, m.now()) {
		if err := m.sink.Publish(ctx, event); err != nil {
			logger.Warn("Booking notification failed",
				logger.BookingID(booking.ID),
				zap.String("event", eventType),
				zap.Int64("recipient_id", event.RecipientID),
				zap.Error(err),
			)
		}
	}
}
