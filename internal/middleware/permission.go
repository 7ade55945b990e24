// Package middleware 提供 HTTP 中间件
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/villa-booking-backend/internal/common/response"
	"github.com/dumeirei/villa-booking-backend/internal/models"
)

// RequireRoles 要求指定角色，管理员令牌始终放行
func RequireRoles(roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if !IsLoggedIn(c) {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if IsAdmin(c) {
			c.Next()
			return
		}

		if _, ok := roleSet[GetRole(c)]; !ok {
			response.Forbidden(c, "权限不足")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireHost 要求房东角色
func RequireHost() gin.HandlerFunc {
	return RequireRoles(models.UserRoleHost)
}
