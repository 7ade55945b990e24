package booking

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
	"github.com/dumeirei/villa-booking-backend/internal/common/utils"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/service/notify"
)

func TestManager_SubmitBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	clientTotal := 1.0
	req := env.request("2026-03-01", "2026-03-03")
	req.Children = 1
	req.Infants = 1
	req.TotalPrice = &clientTotal

	b, err := env.manager.SubmitBooking(ctx, env.guestActor(), req)
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.True(t, strings.HasPrefix(b.BookingNo, DefaultBookingNoPrefix))
	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, models.PaymentStatusPending, b.PaymentStatus)
	assert.Equal(t, env.host.ID, b.HostUserID)
	assert.Equal(t, 2, b.Nights)
	// 忽略客户端总价，按房源价格计算
	assert.Equal(t, 1600.0, b.Subtotal)
	assert.Equal(t, 1750.0, b.TotalPrice)

	var stored models.Booking
	require.NoError(t, env.db.First(&stored, b.ID).Error)
	assert.Equal(t, 1750.0, stored.TotalPrice)
	assert.Equal(t, "2026-03-01", stored.StartDate)
	assert.Equal(t, "2026-03-03", stored.EndDate)

	events := env.sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, notify.EventCreated, events[0].Type)
	assert.Equal(t, env.guest.ID, events[0].RecipientID)
	assert.Equal(t, env.host.ID, events[1].RecipientID)
	assert.Equal(t, b.ID, events[1].Booking.ID)
}

func TestManager_SubmitBooking_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	draft := createTestVilla(t, env.db, env.host.ID, func(v *models.Villa) { v.Status = models.VillaStatusDraft })
	longStay := createTestVilla(t, env.db, env.host.ID, func(v *models.Villa) { v.MinimumStayNights = 3 })

	tests := []struct {
		name   string
		mutate func(r *SubmitRequest)
		actor  func() Actor
		want   *errors.AppError
		kind   errors.Kind
	}{
		{"日期格式错误", func(r *SubmitRequest) { r.StartDate = "03/01/2026" }, nil, errors.ErrInvalidRange, errors.KindValidation},
		{"起止相同", func(r *SubmitRequest) { r.EndDate = r.StartDate }, nil, errors.ErrInvalidRange, errors.KindValidation},
		{"倒置区间", func(r *SubmitRequest) { r.StartDate, r.EndDate = r.EndDate, r.StartDate }, nil, errors.ErrInvalidRange, errors.KindValidation},
		{"超过最长晚数", func(r *SubmitRequest) { r.EndDate = "2026-09-01" }, nil, errors.ErrInvalidRange, errors.KindValidation},
		{"跨越数百年", func(r *SubmitRequest) { r.StartDate, r.EndDate = "2000-01-01", "2400-01-01" }, nil, errors.ErrInvalidRange, errors.KindValidation},
		{"没有成人", func(r *SubmitRequest) { r.Adults = 0 }, nil, errors.ErrInvalidGuests, errors.KindValidation},
		{"儿童为负", func(r *SubmitRequest) { r.Children = -1 }, nil, errors.ErrInvalidGuests, errors.KindValidation},
		{"婴儿为负", func(r *SubmitRequest) { r.Infants = -1 }, nil, errors.ErrInvalidGuests, errors.KindValidation},
		{"房源不存在", func(r *SubmitRequest) { r.VillaID = 9999 }, nil, errors.ErrVillaNotFound, errors.KindValidation},
		{"房客不存在", func(r *SubmitRequest) { r.GuestUserID = 9999 }, func() Actor { return Actor{UserID: 9999} }, errors.ErrGuestNotFound, errors.KindValidation},
		{"未达到最少晚数", func(r *SubmitRequest) { r.VillaID = longStay.ID }, nil, errors.ErrBelowMinimumStay, errors.KindPolicy},
		{"超员", func(r *SubmitRequest) { r.Adults = 3; r.Children = 2 }, nil, errors.ErrOverOccupancy, errors.KindPolicy},
		{"未上架", func(r *SubmitRequest) { r.VillaID = draft.ID }, nil, errors.ErrNotPublished, errors.KindPolicy},
		{"代他人预订", nil, func() Actor { return Actor{UserID: env.host.ID} }, errors.ErrIdentityMismatch, errors.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := env.request("2026-03-01", "2026-03-03")
			if tt.mutate != nil {
				tt.mutate(req)
			}
			actor := env.guestActor()
			if tt.actor != nil {
				actor = tt.actor()
			}

			b, err := env.manager.SubmitBooking(ctx, actor, req)
			assert.Nil(t, b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, tt.kind, errors.KindOf(err))
		})
	}

	var count int64
	env.db.Model(&models.Booking{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, env.sink.Events())

	t.Run("婴儿不计入人数", func(t *testing.T) {
		req := env.request("2026-03-01", "2026-03-03")
		req.Adults = 4
		req.Infants = 2
		_, err := env.manager.SubmitBooking(ctx, env.guestActor(), req)
		assert.NoError(t, err)
	})
}

func TestManager_SubmitBooking_AdminOnBehalf(t *testing.T) {
	env := newTestEnv(t)
	b, err := env.manager.SubmitBooking(context.Background(), Actor{UserID: 777, IsAdmin: true}, env.request("2026-03-01", "2026-03-02"))
	require.NoError(t, err)
	assert.Equal(t, env.guest.ID, b.GuestUserID)
}

func TestManager_SubmitBooking_MinimumStayBeforeAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.submit(t, "2026-03-01", "2026-03-05")

	require.NoError(t, env.db.Model(env.villa).Update("minimum_stay_nights", 3).Error)

	// 区间既被占用又不满足最少晚数，先报最少晚数
	_, err := env.manager.SubmitBooking(ctx, env.guestActor(), env.request("2026-03-02", "2026-03-03"))
	assert.True(t, errors.Is(err, errors.ErrBelowMinimumStay))
}

func TestManager_SubmitBooking_DatesUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.submit(t, "2026-03-10", "2026-03-15")

	_, err := env.manager.SubmitBooking(ctx, env.guestActor(), env.request("2026-03-12", "2026-03-16"))
	assert.True(t, errors.Is(err, errors.ErrDatesUnavailable))
	assert.Equal(t, errors.KindDatesUnavailable, errors.KindOf(err))

	_, err = env.ledger.BlockDates(ctx, env.villa.ID, []string{"2026-03-20"}, "", env.hostActor())
	require.NoError(t, err)
	_, err = env.manager.SubmitBooking(ctx, env.guestActor(), env.request("2026-03-19", "2026-03-21"))
	assert.True(t, errors.Is(err, errors.ErrDatesUnavailable))

	// 相邻区间可订
	env.submit(t, "2026-03-15", "2026-03-17")
}

func TestManager_SubmitBooking_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.manager.SubmitBooking(ctx, env.guestActor(), env.request("2026-07-01", "2026-07-05"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, errors.ErrDatesUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, workers-1, conflicts)

	var count int64
	env.db.Model(&models.Booking{}).Where("villa_id = ?", env.villa.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestManager_SubmitBooking_ConcurrentDifferentVillas(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	villas := []*models.Villa{env.villa}
	for i := 0; i < 4; i++ {
		villas = append(villas, createTestVilla(t, env.db, env.host.ID))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(villas))
	for i, v := range villas {
		wg.Add(1)
		go func(i int, villaID int64) {
			defer wg.Done()
			req := env.request("2026-08-01", "2026-08-03")
			req.VillaID = villaID
			_, errs[i] = env.manager.SubmitBooking(ctx, env.guestActor(), req)
		}(i, v.ID)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

// 已确认 06-10→06-15，最少两晚
func TestManager_EndToEndExample(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.db.Model(env.villa).Update("minimum_stay_nights", 2).Error)

	existing := env.submit(t, "2024-06-10", "2024-06-15")
	_, err := env.manager.ConfirmBooking(ctx, env.hostActor(), existing.ID)
	require.NoError(t, err)

	t.Run("A 重叠被拒", func(t *testing.T) {
		_, err := env.manager.SubmitBooking(ctx, env.guestActor(), env.request("2024-06-12", "2024-06-14"))
		assert.True(t, errors.Is(err, errors.ErrDatesUnavailable))
	})

	t.Run("B 紧接离店日被接受", func(t *testing.T) {
		b, err := env.manager.SubmitBooking(ctx, env.guestActor(), env.request("2024-06-15", "2024-06-17"))
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusPending, b.Status)
		assert.Equal(t, 2*800.0+100+50, b.TotalPrice)
	})

	t.Run("C 与 D 同时提交只有一个成功", func(t *testing.T) {
		var wg sync.WaitGroup
		results := make([]*models.Booking, 2)
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = env.manager.SubmitBooking(ctx, env.guestActor(), env.request("2024-06-20", "2024-06-22"))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for i := range errs {
			if errs[i] == nil {
				succeeded++
				assert.NotNil(t, results[i])
				continue
			}
			assert.True(t, errors.Is(errs[i], errors.ErrDatesUnavailable))
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestManager_ConfirmBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.submit(t, "2026-03-01", "2026-03-03")

	t.Run("房客不能确认", func(t *testing.T) {
		_, err := env.manager.ConfirmBooking(ctx, env.guestActor(), b.ID)
		assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
	})

	t.Run("预订不存在", func(t *testing.T) {
		_, err := env.manager.ConfirmBooking(ctx, env.hostActor(), 9999)
		assert.True(t, errors.Is(err, errors.ErrBookingNotFound))
	})

	t.Run("房东确认", func(t *testing.T) {
		confirmed, err := env.manager.ConfirmBooking(ctx, env.hostActor(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)
		assert.NotNil(t, confirmed.ConfirmedAt)

		var stored models.Booking
		require.NoError(t, env.db.First(&stored, b.ID).Error)
		assert.Equal(t, models.BookingStatusConfirmed, stored.Status)
		assert.NotNil(t, stored.ConfirmedAt)

		events := env.sink.Events()
		assert.Equal(t, notify.EventConfirmed, events[len(events)-1].Type)
		assert.Equal(t, models.BookingStatusConfirmed, events[len(events)-1].Booking.Status)
	})

	t.Run("重复确认", func(t *testing.T) {
		_, err := env.manager.ConfirmBooking(ctx, env.hostActor(), b.ID)
		assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
		assert.Equal(t, errors.KindPolicy, errors.KindOf(err))
	})

	t.Run("确认后日期仍被占用", func(t *testing.T) {
		free, err := env.ledger.IsRangeFree(ctx, env.villa.ID, "2026-03-01", "2026-03-03")
		require.NoError(t, err)
		assert.False(t, free)
	})
}

func TestManager_CancelBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.submit(t, "2026-03-01", "2026-03-04")

	t.Run("无关用户不能取消", func(t *testing.T) {
		_, err := env.manager.CancelBooking(ctx, Actor{UserID: 4242}, b.ID, "")
		assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
	})

	t.Run("房客取消并释放日期", func(t *testing.T) {
		cancelled, err := env.manager.CancelBooking(ctx, env.guestActor(), b.ID, "  行程变更  ")
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancellationReason)
		assert.Equal(t, "行程变更", *cancelled.CancellationReason)
		assert.Equal(t, env.guest.ID, *cancelled.CancelledBy)

		var stored models.Booking
		require.NoError(t, env.db.First(&stored, b.ID).Error)
		assert.Equal(t, models.BookingStatusCancelled, stored.Status)
		assert.Equal(t, "行程变更", *stored.CancellationReason)
		assert.NotNil(t, stored.CancelledAt)

		// 同一区间立即可以再次预订
		env.submit(t, "2026-03-01", "2026-03-04")
	})

	t.Run("已取消不能再次取消", func(t *testing.T) {
		_, err := env.manager.CancelBooking(ctx, env.guestActor(), b.ID, "")
		assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	})

	t.Run("已取消不能确认", func(t *testing.T) {
		_, err := env.manager.ConfirmBooking(ctx, env.hostActor(), b.ID)
		assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
	})

	t.Run("房东可以取消已确认的预订", func(t *testing.T) {
		other := env.submit(t, "2026-04-01", "2026-04-03")
		_, err := env.manager.ConfirmBooking(ctx, env.hostActor(), other.ID)
		require.NoError(t, err)

		cancelled, err := env.manager.CancelBooking(ctx, env.hostActor(), other.ID, "")
		require.NoError(t, err)
		assert.Nil(t, cancelled.CancellationReason)
	})
}

func TestManager_CancelBooking_Policy(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, withPolicy(DefaultNoticePolicy()), withClock(func() time.Time { return now }))
	ctx := context.Background()
	require.NoError(t, env.db.Model(env.villa).Update("cancellation_policy", models.CancellationPolicyStrict).Error)

	soon := env.submit(t, "2026-03-15", "2026-03-17")
	_, err := env.manager.ConfirmBooking(ctx, env.hostActor(), soon.ID)
	require.NoError(t, err)

	_, err = env.manager.CancelBooking(ctx, env.guestActor(), soon.ID, "")
	assert.True(t, errors.Is(err, errors.ErrCancellationRefused))
	assert.Equal(t, errors.KindPolicy, errors.KindOf(err))

	later := env.submit(t, "2026-04-15", "2026-04-17")
	_, err = env.manager.ConfirmBooking(ctx, env.hostActor(), later.ID)
	require.NoError(t, err)
	_, err = env.manager.CancelBooking(ctx, env.guestActor(), later.ID, "")
	assert.NoError(t, err)
}

func TestManager_ConcurrentTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.submit(t, "2026-03-01", "2026-03-03")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = env.manager.ConfirmBooking(ctx, env.hostActor(), b.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = env.manager.CancelBooking(ctx, env.guestActor(), b.ID, "")
	}()
	wg.Wait()

	var stored models.Booking
	require.NoError(t, env.db.First(&stored, b.ID).Error)

	// 先确认再取消两者都成功；先取消则确认失败
	if errs[0] != nil {
		assert.True(t, errors.Is(errs[0], errors.ErrInvalidTransition))
	}
	assert.NoError(t, errs[1])
	assert.Equal(t, models.BookingStatusCancelled, stored.Status)
}

func TestManager_ExpirePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := env.submit(t, "2026-03-01", "2026-03-03")
	confirmed := env.submit(t, "2026-03-05", "2026-03-07")
	_, err := env.manager.ConfirmBooking(ctx, env.hostActor(), confirmed.ID)
	require.NoError(t, err)
	fresh := env.submit(t, "2026-03-10", "2026-03-12")

	past := time.Now().Add(-72 * time.Hour)
	require.NoError(t, env.db.Model(&models.Booking{}).
		Where("id IN ?", []int64{stale.ID, confirmed.ID}).
		Update("created_at", past).Error)

	expired, err := env.manager.ExpirePending(ctx, 48*time.Hour, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var got models.Booking
	require.NoError(t, env.db.First(&got, stale.ID).Error)
	assert.Equal(t, models.BookingStatusCancelled, got.Status)
	assert.Nil(t, got.CancelledBy)
	require.NotNil(t, got.CancellationReason)

	var freshGot models.Booking
	require.NoError(t, env.db.First(&freshGot, fresh.ID).Error)
	assert.Equal(t, models.BookingStatusPending, freshGot.Status)

	events := env.sink.Events()
	assert.Equal(t, notify.EventExpired, events[len(events)-1].Type)

	t.Run("关闭过期", func(t *testing.T) {
		n, err := env.manager.ExpirePending(ctx, 0, 100)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestManager_GetAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b1 := env.submit(t, "2026-03-01", "2026-03-03")
	env.submit(t, "2026-03-05", "2026-03-07")
	_, err := env.manager.CancelBooking(ctx, env.guestActor(), b1.ID, "")
	require.NoError(t, err)

	t.Run("房客查看", func(t *testing.T) {
		got, err := env.manager.GetBooking(ctx, env.guestActor(), b1.ID)
		require.NoError(t, err)
		assert.Equal(t, b1.BookingNo, got.BookingNo)
	})

	t.Run("他人不能查看", func(t *testing.T) {
		_, err := env.manager.GetBooking(ctx, Actor{UserID: 4242}, b1.ID)
		assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
	})

	page := utils.Pagination{Page: 1, PageSize: 10}

	t.Run("房东查看房源预订", func(t *testing.T) {
		list, total, err := env.manager.ListVillaBookings(ctx, env.hostActor(), env.villa.ID, page, "")
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, list, 2)

		list, total, err = env.manager.ListVillaBookings(ctx, env.hostActor(), env.villa.ID, page, models.BookingStatusPending)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "2026-03-05", list[0].StartDate)
	})

	t.Run("房客不能查看房源预订", func(t *testing.T) {
		_, _, err := env.manager.ListVillaBookings(ctx, env.guestActor(), env.villa.ID, page, "")
		assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
	})

	t.Run("无效状态", func(t *testing.T) {
		_, _, err := env.manager.ListVillaBookings(ctx, env.hostActor(), env.villa.ID, page, "paid")
		assert.True(t, errors.Is(err, errors.ErrInvalidParams))
	})

	t.Run("我的预订", func(t *testing.T) {
		list, total, err := env.manager.ListGuestBookings(ctx, env.guestActor(), page, "")
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, list, 2)

		_, total, err = env.manager.ListGuestBookings(ctx, env.hostActor(), page, "")
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestManager_LookupCheckIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.submit(t, "2026-03-01", "2026-03-03")
	other := createTestVilla(t, env.db, env.host.ID)

	t.Run("房东按预订号核验", func(t *testing.T) {
		got, err := env.manager.LookupCheckIn(ctx, env.hostActor(), env.villa.ID, " "+b.BookingNo+" ")
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	})

	t.Run("管理员可以核验", func(t *testing.T) {
		_, err := env.manager.LookupCheckIn(ctx, Actor{UserID: 999, IsAdmin: true}, env.villa.ID, b.BookingNo)
		assert.NoError(t, err)
	})

	t.Run("房客不能核验", func(t *testing.T) {
		_, err := env.manager.LookupCheckIn(ctx, env.guestActor(), env.villa.ID, b.BookingNo)
		assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
	})

	t.Run("其他房源的预订", func(t *testing.T) {
		_, err := env.manager.LookupCheckIn(ctx, env.hostActor(), other.ID, b.BookingNo)
		assert.True(t, errors.Is(err, errors.ErrBookingNotFound))
	})

	t.Run("预订号不存在", func(t *testing.T) {
		_, err := env.manager.LookupCheckIn(ctx, env.hostActor(), env.villa.ID, "V0000")
		assert.True(t, errors.Is(err, errors.ErrBookingNotFound))
	})

	t.Run("缺少预订号", func(t *testing.T) {
		_, err := env.manager.LookupCheckIn(ctx, env.hostActor(), env.villa.ID, "  ")
		assert.True(t, errors.Is(err, errors.ErrInvalidParams))
	})
}

func TestManager_QuoteStay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	q, err := env.manager.QuoteStay(ctx, &QuoteRequest{VillaID: env.villa.ID, StartDate: "2026-03-01", EndDate: "2026-03-04", Adults: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Nights)
	assert.Equal(t, 2550.0, q.TotalPrice)

	// 报价不占用日期
	free, err := env.ledger.IsRangeFree(ctx, env.villa.ID, "2026-03-01", "2026-03-04")
	require.NoError(t, err)
	assert.True(t, free)

	_, err = env.manager.QuoteStay(ctx, &QuoteRequest{VillaID: env.villa.ID, StartDate: "2026-03-01", EndDate: "2026-03-04", Adults: 9})
	assert.True(t, errors.Is(err, errors.ErrOverOccupancy))
}

func TestManager_MaxStayNights(t *testing.T) {
	env := newTestEnv(t, func(o *ManagerOptions) { o.MaxStayNights = 7 })
	ctx := context.Background()

	_, err := env.manager.QuoteStay(ctx, &QuoteRequest{VillaID: env.villa.ID, StartDate: "2026-03-01", EndDate: "2026-03-08", Adults: 2})
	assert.NoError(t, err)

	_, err = env.manager.QuoteStay(ctx, &QuoteRequest{VillaID: env.villa.ID, StartDate: "2026-03-01", EndDate: "2026-03-09", Adults: 2})
	assert.True(t, errors.Is(err, errors.ErrInvalidRange))
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	b, err := env.manager.SubmitBooking(ctx, env.guestActor(), env.request("2026-03-01", "2026-03-09"))
	assert.Nil(t, b)
	assert.True(t, errors.Is(err, errors.ErrInvalidRange))
	assert.Empty(t, env.sink.Events())
}

type brokenSink struct{}

func (brokenSink) Name() string { return "broken" }

func (brokenSink) Publish(context.Context, notify.Event) error {
	return stderrors.New("broker unreachable")
}

func TestManager_NotificationFailureLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(zap.NewNop()) })

	recorder := &recordingSink{}
	env := newTestEnv(t, func(o *ManagerOptions) {
		o.Sink = notify.NewMultiSink(nil, brokenSink{}, recorder)
	})

	// 投递失败不影响提交
	b := env.submit(t, "2026-03-01", "2026-03-03")
	assert.NotZero(t, b.ID)
	assert.Len(t, recorder.Events(), 2)

	assert.Equal(t, 2, logs.Len())
	failed := logs.FilterMessage("Booking notification failed").All()
	require.Len(t, failed, 2)
	assert.Equal(t, b.ID, failed[0].ContextMap()["booking_id"])
}
