package villa

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/villa-booking-backend/internal/common/handler"
	"github.com/dumeirei/villa-booking-backend/internal/common/response"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
)

// CalendarDatesRequest 日历屏蔽/解除请求，note 仅在屏蔽时保存
type CalendarDatesRequest struct {
	Dates []string `json:"dates" binding:"required,min=1"`
	Note  string   `json:"note"`
}

// HostCalendarResponse 房东日历
type HostCalendarResponse struct {
	VillaID int64                   `json:"villa_id"`
	Days    []*models.CalendarBlock `json:"days"`
}

// AvailabilityResponse 可订性查询结果
type AvailabilityResponse struct {
	VillaID   int64  `json:"villa_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Free      bool   `json:"free"`
}

// UnavailableDatesResponse 不可订日期
type UnavailableDatesResponse struct {
	VillaID int64    `json:"villa_id"`
	Dates   []string `json:"dates"`
}

// GetUnavailableDates 查询窗口内不可订的晚上
// @Summary 不可订日期
// @Tags 日历
// @Produce json
// @Param id path int true "房源ID"
// @Param start_date query string true "窗口开始 YYYY-MM-DD"
// @Param end_date query string true "窗口结束 YYYY-MM-DD（不含）"
// @Success 200 {object} response.Response{data=UnavailableDatesResponse}
// @Router /api/v1/villas/{id}/unavailable-dates [get]
func (h *Handler) GetUnavailableDates(c *gin.Context) {
	villaID, ok := handler.ParseID(c, "房源")
	if !ok {
		return
	}
	start, end, ok := handler.RequireQueryDateRange(c)
	if !ok {
		return
	}

	dates, err := h.manager.Ledger().ListUnavailableDates(c.Request.Context(), villaID, start, end)
	if handler.HandleError(c, err) {
		return
	}
	if dates == nil {
		dates = []string{}
	}
	response.Success(c, &UnavailableDatesResponse{VillaID: villaID, Dates: dates})
}

// CheckAvailability 查询区间是否可订
// @Summary 区间可订性
// @Tags 日历
// @Produce json
// @Param id path int true "房源ID"
// @Param start_date query string true "入住日期"
// @Param end_date query string true "离店日期"
// @Success 200 {object} response.Response{data=AvailabilityResponse}
// @Router /api/v1/villas/{id}/availability [get]
func (h *Handler) CheckAvailability(c *gin.Context) {
	villaID, ok := handler.ParseID(c, "房源")
	if !ok {
		return
	}
	start, end, ok := handler.RequireQueryDateRange(c)
	if !ok {
		return
	}

	free, err := h.manager.Ledger().CheckAvailability(c.Request.Context(), villaID, start, end)
	handler.MustSucceed(c, err, &AvailabilityResponse{
		VillaID:   villaID,
		StartDate: start,
		EndDate:   end,
		Free:      free,
	})
}

// GetQuote 按房源当前价格报价
// @Summary 价格试算
// @Tags 日历
// @Produce json
// @Param id path int true "房源ID"
// @Param start_date query string true "入住日期"
// @Param end_date query string true "离店日期"
// @Param adults query int false "成人数，默认 1"
// @Param children query int false "儿童数"
// @Success 200 {object} response.Response{data=booking.Quote}
// @Router /api/v1/villas/{id}/quote [get]
func (h *Handler) GetQuote(c *gin.Context) {
	villaID, ok := handler.ParseID(c, "房源")
	if !ok {
		return
	}
	start, end, ok := handler.RequireQueryDateRange(c)
	if !ok {
		return
	}
	adults, ok := handler.QueryInt(c, "adults", 1)
	if !ok {
		return
	}
	children, ok := handler.QueryInt(c, "children", 0)
	if !ok {
		return
	}

	quote, err := h.manager.QuoteStay(c.Request.Context(), &booking.QuoteRequest{
		VillaID:   villaID,
		StartDate: start,
		EndDate:   end,
		Adults:    adults,
		Children:  children,
	})
	handler.MustSucceed(c, err, quote)
}

// BlockDates 房东屏蔽日期
// @Summary 屏蔽日期
// @Tags 日历
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "房源ID"
// @Param request body CalendarDatesRequest true "请求参数"
// @Success 200 {object} response.Response{data=UnavailableDatesResponse}
// @Router /api/v1/villas/{id}/calendar/block [post]
func (h *Handler) BlockDates(c *gin.Context) {
	h.setDates(c, true)
}

// UnblockDates 房东解除屏蔽
// @Summary 解除屏蔽
// @Tags 日历
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "房源ID"
// @Param request body CalendarDatesRequest true "请求参数"
// @Success 200 {object} response.Response{data=UnavailableDatesResponse}
// @Router /api/v1/villas/{id}/calendar/unblock [post]
func (h *Handler) UnblockDates(c *gin.Context) {
	h.setDates(c, false)
}

func (h *Handler) setDates(c *gin.Context, block bool) {
	_, villaID, ok := handler.RequireUserAndParseID(c, "房源")
	if !ok {
		return
	}

	var req CalendarDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请选择日期")
		return
	}

	ledger := h.manager.Ledger()
	var (
		dates []string
		err   error
	)
	if block {
		dates, err = ledger.BlockDates(c.Request.Context(), villaID, req.Dates, req.Note, actorFrom(c))
	} else {
		dates, err = ledger.UnblockDates(c.Request.Context(), villaID, req.Dates, actorFrom(c))
	}
	handler.MustSucceed(c, err, &UnavailableDatesResponse{VillaID: villaID, Dates: dates})
}

// GetHostCalendar 房东查看日历记录
// @Summary 房东日历
// @Description 返回窗口内房东设置过的日期及备注，不含预订占用
// @Tags 日历
// @Produce json
// @Security Bearer
// @Param id path int true "房源ID"
// @Param start_date query string true "窗口开始 YYYY-MM-DD"
// @Param end_date query string true "窗口结束 YYYY-MM-DD（不含）"
// @Success 200 {object} response.Response{data=HostCalendarResponse}
// @Router /api/v1/villas/{id}/calendar [get]
func (h *Handler) GetHostCalendar(c *gin.Context) {
	_, villaID, ok := handler.RequireUserAndParseID(c, "房源")
	if !ok {
		return
	}
	start, end, ok := handler.RequireQueryDateRange(c)
	if !ok {
		return
	}

	days, err := h.manager.Ledger().HostCalendar(c.Request.Context(), villaID, start, end, actorFrom(c))
	if handler.HandleError(c, err) {
		return
	}
	if days == nil {
		days = []*models.CalendarBlock{}
	}
	response.Success(c, &HostCalendarResponse{VillaID: villaID, Days: days})
}
