package villa

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/villa-booking-backend/internal/middleware"
)

// RegisterPublicRoutes 注册公开路由，需在 OptionalAuth 之后
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	villas := r.Group("/villas")
	{
		villas.GET("", h.ListVillas)
		villas.GET("/:id", h.GetVilla)
		villas.GET("/:id/unavailable-dates", h.GetUnavailableDates)
		villas.GET("/:id/availability", h.CheckAvailability)
		villas.GET("/:id/quote", h.GetQuote)
	}
}

// RegisterRoutes 注册房东路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	villas := r.Group("/villas")
	{
		villas.POST("", middleware.RequireHost(), h.CreateVilla)
		villas.POST("/:id/publish", h.PublishVilla)
		villas.POST("/:id/unpublish", h.UnpublishVilla)
		villas.GET("/:id/bookings", h.ListVillaBookings)
		villas.GET("/:id/checkin/:booking_no", h.VerifyCheckIn)
		villas.GET("/:id/calendar", h.GetHostCalendar)
		villas.POST("/:id/calendar/block", h.BlockDates)
		villas.POST("/:id/calendar/unblock", h.UnblockDates)
	}
}

// RegisterAdminRoutes 注册管理员路由
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	villas := r.Group("/villas")
	{
		villas.GET("/:id", h.GetVilla)
		villas.POST("/:id/unpublish", h.UnpublishVilla)
		villas.GET("/:id/bookings", h.ListVillaBookings)
		villas.GET("/:id/checkin/:booking_no", h.VerifyCheckIn)
		villas.GET("/:id/calendar", h.GetHostCalendar)
		villas.POST("/:id/calendar/block", h.BlockDates)
		villas.POST("/:id/calendar/unblock", h.UnblockDates)
	}
}

// RegisterRoutes 注册预订路由，submit 为提交接口额外的中间件（如限流）
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, submit ...gin.HandlerFunc) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", append(submit, h.CreateBooking)...)
		bookings.GET("", h.GetMyBookings)
		bookings.GET("/:id", h.GetBookingDetail)
		bookings.GET("/:id/checkin-code", h.GetCheckInCode)
		bookings.POST("/:id/confirm", h.ConfirmBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
}

// RegisterAdminRoutes 注册管理员预订路由
func (h *BookingHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.GET("/:id", h.GetBookingDetail)
		bookings.GET("/:id/checkin-code", h.GetCheckInCode)
		bookings.POST("/:id/confirm", h.ConfirmBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
}
