// Package notification 站内通知收件箱
// 预订事件经 StoreSink 落库后，客户端通过这里轮询
package notification

import (
	stderrors "errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/handler"
	"github.com/dumeirei/villa-booking-backend/internal/common/response"
	"github.com/dumeirei/villa-booking-backend/internal/repository"
)

// Handler 通知处理器
type Handler struct {
	repo *repository.NotificationRepository
}

// NewHandler 创建通知处理器
func NewHandler(repo *repository.NotificationRepository) *Handler {
	return &Handler{repo: repo}
}

// UnreadCountResponse 未读数量
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// RegisterRoutes 注册通知路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.GET("/unread-count", h.GetUnreadCount)
		notifications.POST("/read-all", h.MarkAllAsRead)
		notifications.GET("/:id", h.GetNotification)
		notifications.POST("/:id/read", h.MarkAsRead)
	}
}

// ListNotifications 获取通知列表
// @Summary 获取通知列表
// @Tags 通知
// @Produce json
// @Security Bearer
// @Param type query string false "通知类型"
// @Param is_read query bool false "是否已读"
// @Param booking_id query int false "预订ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.Notification}}
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var isRead *bool
	if raw := c.Query("is_read"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "无效的参数 is_read")
			return
		}
		isRead = &v
	}

	bookingID, ok := handler.QueryInt(c, "booking_id", 0)
	if !ok {
		return
	}

	filter := repository.NotificationFilter{Type: c.Query("type"), BookingID: int64(bookingID), IsRead: isRead}
	page := handler.BindPagination(c)
	list, total, err := h.repo.ListForUser(c.Request.Context(), userID, filter, page.GetOffset(), page.GetLimit())
	if err != nil {
		err = errors.ErrDatabaseError.WithError(err)
	}
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// GetNotification 获取通知详情
// @Summary 获取通知详情
// @Tags 通知
// @Produce json
// @Security Bearer
// @Param id path int true "通知ID"
// @Success 200 {object} response.Response{data=models.Notification}
// @Router /api/v1/notifications/{id} [get]
func (h *Handler) GetNotification(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "通知")
	if !ok {
		return
	}

	n, err := h.repo.GetForUser(c.Request.Context(), id, userID)
	handler.MustSucceed(c, lookupError(err), n)
}

// MarkAsRead 标记通知为已读
// @Summary 标记通知为已读
// @Tags 通知
// @Produce json
// @Security Bearer
// @Param id path int true "通知ID"
// @Success 200 {object} response.Response
// @Router /api/v1/notifications/{id}/read [post]
func (h *Handler) MarkAsRead(c *gin.Context) {
	userID, id, ok := handler.RequireUserAndParseID(c, "通知")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.repo.GetForUser(ctx, id, userID); handler.HandleError(c, lookupError(err)) {
		return
	}
	var err error
	if err = h.repo.MarkAsRead(ctx, id, userID); err != nil {
		err = errors.ErrDatabaseError.WithError(err)
	}
	handler.MustSucceed(c, err, nil)
}

// MarkAllAsRead 标记所有通知为已读
// @Summary 标记所有通知为已读
// @Tags 通知
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /api/v1/notifications/read-all [post]
func (h *Handler) MarkAllAsRead(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var err error
	if err = h.repo.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		err = errors.ErrDatabaseError.WithError(err)
	}
	handler.MustSucceed(c, err, nil)
}

// GetUnreadCount 获取未读通知数量
// @Summary 获取未读通知数量
// @Tags 通知
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=UnreadCountResponse}
// @Router /api/v1/notifications/unread-count [get]
func (h *Handler) GetUnreadCount(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	count, err := h.repo.CountUnread(c.Request.Context(), userID)
	if err != nil {
		err = errors.ErrDatabaseError.WithError(err)
	}
	handler.MustSucceed(c, err, &UnreadCountResponse{Count: count})
}

func lookupError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.ErrNotFound.WithMessage("通知不存在")
	default:
		return errors.ErrDatabaseError.WithError(err)
	}
}
