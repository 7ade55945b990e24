// Package villa 提供房源草稿与上下架管理
package villa

import (
	"context"
	stderrors "errors"
	"strings"

	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/logger"
	"github.com/dumeirei/villa-booking-backend/internal/common/utils"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/repository"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
)

// Store 房源存储
type Store interface {
	Create(ctx context.Context, villa *models.Villa) error
	GetByID(ctx context.Context, id int64) (*models.Villa, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	ListPublished(ctx context.Context, offset, limit int, city string, minGuests int) ([]*models.Villa, int64, error)
}

var _ Store = (*repository.VillaRepository)(nil)

// Service 房源服务
type Service struct {
	store Store
}

// NewService 创建房源服务
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateRequest 创建房源请求
type CreateRequest struct {
	Title              string  `json:"title" binding:"required,max=100"`
	City               string  `json:"city" binding:"max=50"`
	Address            string  `json:"address" binding:"max=255"`
	Description        *string `json:"description"`
	PricePerNight      float64 `json:"price_per_night" binding:"required,gt=0"`
	CleaningFee        float64 `json:"cleaning_fee" binding:"gte=0"`
	ServiceFee         float64 `json:"service_fee" binding:"gte=0"`
	MinimumStayNights  int     `json:"minimum_stay_nights" binding:"gte=0"`
	Occupancy          int     `json:"occupancy" binding:"required,gte=1"`
	CancellationPolicy string  `json:"cancellation_policy"`
}

var cancellationPolicies = map[string]struct{}{
	models.CancellationPolicyFlexible: {},
	models.CancellationPolicyModerate: {},
	models.CancellationPolicyStrict:   {},
}

// CreateDraft 以当前用户为房东创建草稿
func (s *Service) CreateDraft(ctx context.Context, actor booking.Actor, req *CreateRequest) (*models.Villa, error) {
	if actor.UserID == 0 {
		return nil, errors.ErrUnauthorized
	}

	villa := &models.Villa{
		HostUserID:         actor.UserID,
		Title:              strings.TrimSpace(req.Title),
		City:               strings.TrimSpace(req.City),
		Address:            strings.TrimSpace(req.Address),
		Description:        req.Description,
		PricePerNight:      utils.RoundYuan(req.PricePerNight),
		CleaningFee:        utils.RoundYuan(req.CleaningFee),
		ServiceFee:         utils.RoundYuan(req.ServiceFee),
		MinimumStayNights:  req.MinimumStayNights,
		Occupancy:          req.Occupancy,
		CancellationPolicy: req.CancellationPolicy,
		Status:             models.VillaStatusDraft,
	}
	if villa.MinimumStayNights == 0 {
		villa.MinimumStayNights = 1
	}
	if villa.CancellationPolicy == "" {
		villa.CancellationPolicy = models.CancellationPolicyFlexible
	}
	if err := validate(villa); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, villa); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("Villa draft created", logger.VillaID(villa.ID), logger.UserID(actor.UserID))
	return villa, nil
}

// validate 上架前必须满足的条件
func validate(v *models.Villa) error {
	switch {
	case v.Title == "":
		return errors.ErrVillaInvalid.WithMessage("房源标题不能为空")
	case v.PricePerNight <= 0:
		return errors.ErrVillaInvalid.WithMessage("每晚价格必须大于 0")
	case v.CleaningFee < 0 || v.ServiceFee < 0:
		return errors.ErrVillaInvalid.WithMessage("费用不能为负")
	case v.Occupancy < 1:
		return errors.ErrVillaInvalid.WithMessage("可住人数至少为 1")
	case v.MinimumStayNights < 1:
		return errors.ErrVillaInvalid.WithMessage("最少入住晚数至少为 1")
	}
	if _, ok := cancellationPolicies[v.CancellationPolicy]; !ok {
		return errors.ErrVillaInvalid.WithMessage("未知的取消政策")
	}
	return nil
}

// Publish draft|unpublished -> published
func (s *Service) Publish(ctx context.Context, actor booking.Actor, id int64) (*models.Villa, error) {
	villa, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if villa.Status == models.VillaStatusPublished {
		return nil, errors.ErrVillaStatusError.WithMessage("房源已上架")
	}
	if err := validate(villa); err != nil {
		return nil, err
	}
	return s.setStatus(ctx, actor, villa, models.VillaStatusPublished)
}

// Unpublish published -> unpublished，已有预订不受影响
func (s *Service) Unpublish(ctx context.Context, actor booking.Actor, id int64) (*models.Villa, error) {
	villa, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if villa.Status != models.VillaStatusPublished {
		return nil, errors.ErrVillaStatusError.WithMessage("房源未上架")
	}
	return s.setStatus(ctx, actor, villa, models.VillaStatusUnpublished)
}

func (s *Service) setStatus(ctx context.Context, actor booking.Actor, villa *models.Villa, status string) (*models.Villa, error) {
	if err := s.store.UpdateStatus(ctx, villa.ID, status); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	villa.Status = status
	logger.Info("Villa status changed", logger.VillaID(villa.ID), logger.UserID(actor.UserID), logger.Status(status))
	return villa, nil
}

// Get 查看房源，未上架的房源只对房东和管理员可见
func (s *Service) Get(ctx context.Context, actor booking.Actor, id int64) (*models.Villa, error) {
	villa, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !villa.IsPublished() && !actor.IsAdmin && actor.UserID != villa.HostUserID {
		return nil, errors.ErrVillaNotFound
	}
	return villa, nil
}

// ListPublished 已上架房源列表
func (s *Service) ListPublished(ctx context.Context, page utils.Pagination, city string, minGuests int) ([]*models.Villa, int64, error) {
	list, total, err := s.store.ListPublished(ctx, page.GetOffset(), page.GetLimit(), city, minGuests)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return list, total, nil
}

func (s *Service) getOwned(ctx context.Context, actor booking.Actor, id int64) (*models.Villa, error) {
	villa, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && actor.UserID != villa.HostUserID {
		return nil, errors.ErrPermissionDenied.WithMessage("只有房东可以管理房源")
	}
	return villa, nil
}

func (s *Service) get(ctx context.Context, id int64) (*models.Villa, error) {
	villa, err := s.store.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrVillaNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return villa, nil
}
