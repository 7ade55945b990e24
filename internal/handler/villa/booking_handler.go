package villa

import (
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/handler"
	"github.com/dumeirei/villa-booking-backend/internal/common/qrcode"
	"github.com/dumeirei/villa-booking-backend/internal/common/response"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
)

// BookingHandler 预订处理器
type BookingHandler struct {
	manager *booking.Manager
	qr      *qrcode.Renderer
}

// NewBookingHandler 创建预订处理器，qr 为 nil 时使用默认尺寸
func NewBookingHandler(manager *booking.Manager, qr *qrcode.Renderer) *BookingHandler {
	if qr == nil {
		qr = qrcode.NewRenderer(0)
	}
	return &BookingHandler{manager: manager, qr: qr}
}

// CheckInCodeResponse 入住码
type CheckInCodeResponse struct {
	BookingNo string `json:"booking_no"`
	Content   string `json:"content"`
	QRCode    string `json:"qrcode"` // data:image/png;base64,...
}

// CancelBookingRequest 取消预订请求
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// CreateBooking 提交预订
// @Summary 提交预订
// @Description guest_user_id 缺省为当前用户；total_price 仅作参考，以服务端计算为准
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body booking.SubmitRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Booking}
// @Failure 409 {object} response.Response "所选日期不可预订"
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req booking.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	if req.GuestUserID == 0 {
		req.GuestUserID = userID
	}

	b, err := h.manager.SubmitBooking(c.Request.Context(), actorFrom(c), &req)
	if handler.HandleError(c, err) {
		return
	}
	response.Created(c, b)
}

// GetBookingDetail 预订详情
// @Summary 预订详情
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/bookings/{id} [get]
func (h *BookingHandler) GetBookingDetail(c *gin.Context) {
	_, bookingID, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	b, err := h.manager.GetBooking(c.Request.Context(), actorFrom(c), bookingID)
	handler.MustSucceed(c, err, b)
}

// GetMyBookings 我的预订列表
// @Summary 我的预订列表
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param status query string false "状态"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/v1/bookings [get]
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	if _, ok := handler.RequireUserID(c); !ok {
		return
	}
	p := handler.BindPagination(c)

	list, total, err := h.manager.ListGuestBookings(c.Request.Context(), actorFrom(c), p, c.Query("status"))
	handler.MustSucceedPage(c, err, list, total, p.Page, p.PageSize)
}

// ConfirmBooking 房东确认预订
// @Summary 确认预订
// @Tags 预订
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/bookings/{id}/confirm [post]
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	_, bookingID, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	b, err := h.manager.ConfirmBooking(c.Request.Context(), actorFrom(c), bookingID)
	handler.MustSucceed(c, err, b)
}

// CancelBooking 取消预订，释放日期
// @Summary 取消预订
// @Tags 预订
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预订ID"
// @Param request body CancelBookingRequest false "请求参数"
// @Success 200 {object} response.Response{data=models.Booking}
// @Router /api/v1/bookings/{id}/cancel [post]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	_, bookingID, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	var req CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		response.BadRequest(c, "参数错误")
		return
	}

	b, err := h.manager.CancelBooking(c.Request.Context(), actorFrom(c), bookingID, req.Reason)
	handler.MustSucceed(c, err, b)
}

// GetCheckInCode 已确认预订的入住二维码
// @Summary 入住二维码
// @Tags 预订
// @Produce json
// @Produce png
// @Security Bearer
// @Param id path int true "预订ID"
// @Param format query string false "png 时直接返回图片"
// @Success 200 {object} response.Response{data=CheckInCodeResponse}
// @Router /api/v1/bookings/{id}/checkin-code [get]
func (h *BookingHandler) GetCheckInCode(c *gin.Context) {
	_, bookingID, ok := handler.RequireUserAndParseID(c, "预订")
	if !ok {
		return
	}

	b, err := h.manager.GetBooking(c.Request.Context(), actorFrom(c), bookingID)
	if handler.HandleError(c, err) {
		return
	}
	if b.Status != models.BookingStatusConfirmed {
		handler.HandleError(c, errors.ErrInvalidTransition.WithMessage("预订确认后才能生成入住码"))
		return
	}

	pass := qrcode.Pass{BookingNo: b.BookingNo, VillaID: b.VillaID, StartDate: b.StartDate, EndDate: b.EndDate}
	if c.Query("format") == "png" {
		png, err := h.qr.PNG(pass)
		if handler.HandleError(c, err) {
			return
		}
		c.Data(http.StatusOK, "image/png", png)
		return
	}

	dataURL, err := h.qr.DataURL(pass)
	handler.MustSucceed(c, err, &CheckInCodeResponse{
		BookingNo: b.BookingNo,
		Content:   pass.Content(),
		QRCode:    dataURL,
	})
}
