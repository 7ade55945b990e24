// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/response"
)

const (
	ContextKeyRequestID = "request_id"

	headerRequestID = "X-Request-ID"
	// maxRequestIDLen 客户端传入的 ID 过长时重新生成，避免污染日志
	maxRequestIDLen = 64
)

// RequestID 沿用客户端的 X-Request-ID，缺失或过长时生成 UUID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// GetRequestID 获取请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// Recovery 捕获 panic，记录堆栈并返回 500
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error("Panic recovered",
				zap.String("request_id", GetRequestID(c)),
				zap.String("route", c.FullPath()),
				zap.Int64("user_id", GetUserID(c)),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
				Code:    errors.ErrInternalError.Code,
				Message: "服务器内部错误",
			})
		}()
		c.Next()
	}
}

// SecureHeaders 安全响应头，预订数据含个人信息，禁止中间缓存
func SecureHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cache-Control", "no-store")
		c.Next()
	}
}

// RequestSizeLimiter 限制请求体大小，声明长度超限时直接拒绝
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			response.BadRequest(c, fmt.Sprintf("请求体过大，最大允许 %d 字节", maxSize))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
