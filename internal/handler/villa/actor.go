// Package villa 提供房源、日历与预订相关的 HTTP Handler
package villa

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/villa-booking-backend/internal/middleware"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
)

// actorFrom 从认证上下文构造操作者，未登录时为零值
func actorFrom(c *gin.Context) booking.Actor {
	return booking.Actor{
		UserID:  middleware.GetUserID(c),
		IsAdmin: middleware.IsAdmin(c),
	}
}
