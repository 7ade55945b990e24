// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/villa-booking-backend/internal/common/jwt"
	"github.com/dumeirei/villa-booking-backend/internal/common/response"
)

// 上下文键，user_id 也被追踪中间件读取
const (
	ContextKeyUserID = "user_id"
	ContextKeyClaims = "claims"
)

// Authenticated 要求有效的访问令牌，不限用户类型
func Authenticated(m *jwt.Manager) gin.HandlerFunc { return requireToken(m, "") }

// UserAuth 只接受房客与房东令牌
func UserAuth(m *jwt.Manager) gin.HandlerFunc { return requireToken(m, jwt.UserTypeUser) }

// AdminAuth 只接受管理员令牌
func AdminAuth(m *jwt.Manager) gin.HandlerFunc { return requireToken(m, jwt.UserTypeAdmin) }

func requireToken(m *jwt.Manager, userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}
		claims, err := m.ParseAccessToken(token)
		if err != nil {
			response.Unauthorized(c, tokenMessage(err))
			c.Abort()
			return
		}
		if userType != "" && claims.UserType != userType {
			response.Forbidden(c, "无权访问")
			c.Abort()
			return
		}
		bindClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth 令牌缺失或无效时按匿名处理
func OptionalAuth(m *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := m.ParseAccessToken(token); err == nil {
				bindClaims(c, claims)
			}
		}
		c.Next()
	}
}

func tokenMessage(err error) string {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "登录已过期，请重新登录"
	}
	return "无效的令牌"
}

func bindClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyClaims, claims)
}

// bearerToken 取 Authorization 头，其次是 token 查询参数（入住码图片直链用）
func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// GetUserID 未登录时返回 0
func GetUserID(c *gin.Context) int64 {
	id, _ := c.Value(ContextKeyUserID).(int64)
	return id
}

func GetClaims(c *gin.Context) *jwt.Claims {
	claims, _ := c.Value(ContextKeyClaims).(*jwt.Claims)
	return claims
}

// GetRole 令牌中的角色声明
func GetRole(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil {
		return claims.Role
	}
	return ""
}

func IsAdmin(c *gin.Context) bool {
	claims := GetClaims(c)
	return claims != nil && claims.IsAdmin()
}

func IsLoggedIn(c *gin.Context) bool {
	return GetUserID(c) > 0
}
