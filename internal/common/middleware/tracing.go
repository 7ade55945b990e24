// Package middleware 提供与业务无关的 HTTP 中间件
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/dumeirei/villa-booking-backend/internal/common/errors"
	"github.com/dumeirei/villa-booking-backend/internal/common/tracing"
)

// HeaderTraceID 响应头中的追踪 ID，便于房客反馈问题时定位
const HeaderTraceID = "X-Trace-ID"

// contextKeyUserID 与认证中间件写入的键一致
const contextKeyUserID = "user_id"

// TracingConfig 追踪中间件配置
type TracingConfig struct {
	ServiceName string
	SkipPaths   []string
}

// routeResources 路由中 :id 所指的资源
var routeResources = []struct {
	segment string
	attr    func(int64) attribute.KeyValue
}{
	{"/villas/:id", tracing.WithVillaID},
	{"/bookings/:id", tracing.WithBookingID},
}

// Tracing 为每个请求开启 server span，沿用上游 traceparent
func Tracing(cfg *TracingConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = &TracingConfig{ServiceName: "villa-booking-backend"}
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	tracer := otel.Tracer(cfg.ServiceName)

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Header(HeaderTraceID, sc.TraceID().String())
		}

		c.Next()

		for _, r := range routeResources {
			if strings.Contains(route, r.segment) {
				if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil {
					span.SetAttributes(r.attr(id))
				}
				break
			}
		}
		if id, ok := c.Value(contextKeyUserID).(int64); ok && id > 0 {
			span.SetAttributes(tracing.WithUserID(id))
		}

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if last := c.Errors.Last(); last != nil {
			span.SetAttributes(tracing.WithErrorKind(errors.KindOf(last.Err).String()))
		}
		if status >= http.StatusInternalServerError {
			tracing.RecordFailure(span, errorOrStatus(c, status))
		}
	}
}

func errorOrStatus(c *gin.Context, status int) error {
	if last := c.Errors.Last(); last != nil {
		return last.Err
	}
	return errors.New(status, http.StatusText(status))
}

// GetTraceID 当前请求的追踪 ID，没有 span 时返回空串
func GetTraceID(c *gin.Context) string {
	sc := trace.SpanFromContext(c.Request.Context()).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
