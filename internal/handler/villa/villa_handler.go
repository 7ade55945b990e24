package villa

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/villa-booking-backend/internal/common/handler"
	"github.com/dumeirei/villa-booking-backend/internal/common/response"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
	villaService "github.com/dumeirei/villa-booking-backend/internal/service/villa"
)

// Handler 房源与日历处理器
type Handler struct {
	villaService *villaService.Service
	manager      *booking.Manager
}

// NewHandler 创建房源处理器
func NewHandler(villaSvc *villaService.Service, manager *booking.Manager) *Handler {
	return &Handler{
		villaService: villaSvc,
		manager:      manager,
	}
}

// ListVillas 已上架房源列表
// @Summary 房源列表
// @Tags 房源
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param city query string false "城市"
// @Param guests query int false "入住人数"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/villas [get]
func (h *Handler) ListVillas(c *gin.Context) {
	guests, ok := handler.QueryInt(c, "guests", 0)
	if !ok {
		return
	}
	p := handler.BindPagination(c)

	list, total, err := h.villaService.ListPublished(c.Request.Context(), p, c.Query("city"), guests)
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// GetVilla 房源详情
// @Summary 房源详情
// @Tags 房源
// @Produce json
// @Param id path int true "房源ID"
// @Success 200 {object} response.Response{data=models.Villa}
// @Router /api/v1/villas/{id} [get]
func (h *Handler) GetVilla(c *gin.Context) {
	villaID, ok := handler.ParseID(c, "房源")
	if !ok {
		return
	}

	villa, err := h.villaService.Get(c.Request.Context(), actorFrom(c), villaID)
	handler.MustSucceed(c, err, villa)
}

// CreateVilla 房东创建房源草稿
// @Summary 创建房源草稿
// @Tags 房源
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body villaService.CreateRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Villa}
// @Router /api/v1/villas [post]
func (h *Handler) CreateVilla(c *gin.Context) {
	if _, ok := handler.RequireUserID(c); !ok {
		return
	}

	var req villaService.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	villa, err := h.villaService.CreateDraft(c.Request.Context(), actorFrom(c), &req)
	if handler.HandleError(c, err) {
		return
	}
	response.Created(c, villa)
}

// PublishVilla 上架房源
// @Summary 上架房源
// @Tags 房源
// @Produce json
// @Security Bearer
// @Param id path int true "房源ID"
// @Success 200 {object} response.Response{data=models.Villa}
// @Router /api/v1/villas/{id}/publish [post]
func (h *Handler) PublishVilla(c *gin.Context) {
	_, villaID, ok := handler.RequireUserAndParseID(c, "房源")
	if !ok {
		return
	}

	villa, err := h.villaService.Publish(c.Request.Context(), actorFrom(c), villaID)
	handler.MustSucceed(c, err, villa)
}

// UnpublishVilla 下架房源
// @Summary 下架房源
// @Tags 房源
// @Produce json
// @Security Bearer
// @Param id path int true "房源ID"
// @Success 200 {object} response.Response{data=models.Villa}
// @Router /api/v1/villas/{id}/unpublish [post]
func (h *Handler) UnpublishVilla(c *gin.Context) {
	_, villaID, ok := handler.RequireUserAndParseID(c, "房源")
	if !ok {
		return
	}

	villa, err := h.villaService.Unpublish(c.Request.Context(), actorFrom(c), villaID)
	handler.MustSucceed(c, err, villa)
}

// ListVillaBookings 房东查看房源的预订
// @Summary 房源预订列表
// @Tags 房源
// @Produce json
// @Security Bearer
// @Param id path int true "房源ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param status query string false "状态"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/villas/{id}/bookings [get]
func (h *Handler) ListVillaBookings(c *gin.Context) {
	_, villaID, ok := handler.RequireUserAndParseID(c, "房源")
	if !ok {
		return
	}
	p := handler.BindPagination(c)

	list, total, err := h.manager.ListVillaBookings(c.Request.Context(), actorFrom(c), villaID, p, c.Query("status"))
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// CheckInVerifyResponse 入住核验结果，仅已确认的预订可以入住
type CheckInVerifyResponse struct {
	Booking *models.Booking `json:"booking"`
	Allowed bool            `json:"allowed"`
}

// VerifyCheckIn 房东扫描入住码后按预订号核验
// @Summary 入住核验
// @Tags 房源
// @Produce json
// @Security Bearer
// @Param id path int true "房源ID"
// @Param booking_no path string true "预订号"
// @Success 200 {object} response.Response{data=CheckInVerifyResponse}
// @Failure 404 {object} response.Response "预订不存在或不属于该房源"
// @Router /api/v1/villas/{id}/checkin/{booking_no} [get]
func (h *Handler) VerifyCheckIn(c *gin.Context) {
	_, villaID, ok := handler.RequireUserAndParseID(c, "房源")
	if !ok {
		return
	}

	b, err := h.manager.LookupCheckIn(c.Request.Context(), actorFrom(c), villaID, c.Param("booking_no"))
	if handler.HandleError(c, err) {
		return
	}
	response.Success(c, &CheckInVerifyResponse{
		Booking: b,
		Allowed: b.Status == models.BookingStatusConfirmed,
	})
}
