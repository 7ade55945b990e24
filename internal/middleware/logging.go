// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	commonMiddleware "github.com/dumeirei/villa-booking-backend/internal/common/middleware"
)

// quietPaths 探活与抓取接口不写访问日志
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/ping":    {},
	"/ready":   {},
	"/metrics": {},
}

// AccessLog 访问日志中间件
// 不记录请求体与响应体，预订请求里有房客手机号
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := quietPaths[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if traceID := commonMiddleware.GetTraceID(c); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		if userID := GetUserID(c); userID > 0 {
			fields = append(fields, zap.Int64("user_id", userID))
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields,
				zap.String("kind", errors.KindOf(last.Err).String()),
				zap.String("error", last.Error()),
			)
		}

		if ce := logger.Check(accessLevel(status), "HTTP Request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

// accessLevel 409 是日期冲突的正常结果，按 info 记录
func accessLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusConflict:
		return zapcore.InfoLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
