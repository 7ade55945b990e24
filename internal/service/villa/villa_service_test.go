package villa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/utils"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/repository"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
)

func setupService(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	return NewService(repository.NewVillaRepository(db)), db
}

func validRequest() *CreateRequest {
	return &CreateRequest{
		Title:         " 山间小屋 ",
		City:          "大理",
		PricePerNight: 599.999,
		CleaningFee:   80,
		Occupancy:     3,
	}
}

func TestService_CreateDraft(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	host := booking.Actor{UserID: 7}

	t.Run("默认值", func(t *testing.T) {
		v, err := svc.CreateDraft(ctx, host, validRequest())
		require.NoError(t, err)
		assert.Equal(t, "山间小屋", v.Title)
		assert.Equal(t, models.VillaStatusDraft, v.Status)
		assert.Equal(t, int64(7), v.HostUserID)
		assert.Equal(t, 1, v.MinimumStayNights)
		assert.Equal(t, models.CancellationPolicyFlexible, v.CancellationPolicy)
		assert.Equal(t, 600.0, v.PricePerNight)
	})

	t.Run("未知取消政策", func(t *testing.T) {
		req := validRequest()
		req.CancellationPolicy = "whatever"
		_, err := svc.CreateDraft(ctx, host, req)
		assert.ErrorIs(t, err, errors.ErrVillaInvalid)
	})

	t.Run("空标题", func(t *testing.T) {
		req := validRequest()
		req.Title = "   "
		_, err := svc.CreateDraft(ctx, host, req)
		assert.ErrorIs(t, err, errors.ErrVillaInvalid)
	})

	t.Run("未登录", func(t *testing.T) {
		_, err := svc.CreateDraft(ctx, booking.Actor{}, validRequest())
		assert.ErrorIs(t, err, errors.ErrUnauthorized)
	})
}

func TestService_PublishLifecycle(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	host := booking.Actor{UserID: 7}
	stranger := booking.Actor{UserID: 8}

	v, err := svc.CreateDraft(ctx, host, validRequest())
	require.NoError(t, err)

	t.Run("草稿对他人不可见", func(t *testing.T) {
		_, err := svc.Get(ctx, stranger, v.ID)
		assert.ErrorIs(t, err, errors.ErrVillaNotFound)

		got, err := svc.Get(ctx, host, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, got.ID)

		_, err = svc.Get(ctx, booking.Actor{UserID: 99, IsAdmin: true}, v.ID)
		assert.NoError(t, err)
	})

	t.Run("非房东不能上架", func(t *testing.T) {
		_, err := svc.Publish(ctx, stranger, v.ID)
		assert.ErrorIs(t, err, errors.ErrPermissionDenied)
	})

	t.Run("上架后公开可见", func(t *testing.T) {
		got, err := svc.Publish(ctx, host, v.ID)
		require.NoError(t, err)
		assert.Equal(t, models.VillaStatusPublished, got.Status)

		_, err = svc.Get(ctx, stranger, v.ID)
		assert.NoError(t, err)

		list, total, err := svc.ListPublished(ctx, utils.Pagination{Page: 1, PageSize: 10}, "大理", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, list, 1)
	})

	t.Run("重复上架", func(t *testing.T) {
		_, err := svc.Publish(ctx, host, v.ID)
		assert.ErrorIs(t, err, errors.ErrVillaStatusError)
	})

	t.Run("下架", func(t *testing.T) {
		got, err := svc.Unpublish(ctx, host, v.ID)
		require.NoError(t, err)
		assert.Equal(t, models.VillaStatusUnpublished, got.Status)

		_, err = svc.Unpublish(ctx, host, v.ID)
		assert.ErrorIs(t, err, errors.ErrVillaStatusError)

		_, total, err := svc.ListPublished(ctx, utils.Pagination{Page: 1, PageSize: 10}, "", 0)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("房源不存在", func(t *testing.T) {
		_, err := svc.Publish(ctx, host, 404)
		assert.ErrorIs(t, err, errors.ErrVillaNotFound)
	})
}

func TestService_PublishRejectsIncompleteVilla(t *testing.T) {
	svc, db := setupService(t)
	v := &models.Villa{
		HostUserID:         7,
		Title:              "半成品",
		PricePerNight:      0,
		MinimumStayNights:  1,
		Occupancy:          2,
		CancellationPolicy: models.CancellationPolicyStrict,
		Status:             models.VillaStatusDraft,
	}
	require.NoError(t, db.Create(v).Error)

	_, err := svc.Publish(context.Background(), booking.Actor{UserID: 7}, v.ID)
	assert.ErrorIs(t, err, errors.ErrVillaInvalid)
}
