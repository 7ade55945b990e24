// Package tracing 提供 OpenTelemetry 链路追踪
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "villa-booking-backend"

// Config 追踪配置
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP gRPC 地址，留空输出到 stdout
	SampleRate     float64
	Enabled        bool
}

// Tracer 持有 TracerProvider，用于退出时刷出未导出的 span
type Tracer struct {
	provider *sdktrace.TracerProvider
}

// Init 初始化全局 TracerProvider，未启用时返回空 Tracer，span 走全局 noop 实现
func Init(cfg *Config) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return &Tracer{}, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Tracer{provider: provider}, nil
}

// newResource 的 schema 版本须与 sdk 默认资源一致，否则合并失败
func newResource(cfg *Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("创建资源失败: %w", err)
	}
	return res, nil
}

func newExporter(endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("创建 stdout 导出器失败: %w", err)
		}
		return exp, nil
	}
	client := otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	exp, err := otlptrace.New(context.Background(), client)
	if err != nil {
		return nil, fmt.Errorf("创建 OTLP 导出器失败: %w", err)
	}
	return exp, nil
}

// sampler 按比例采样，>=1 全采，<=0 不采
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown 刷出并关闭 TracerProvider
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartSpan 从全局 TracerProvider 开始 span
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordFailure 标记 span 失败并记录错误，err 为 nil 时不做任何事
func RecordFailure(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// 预订相关属性键
var (
	AttrUserID    = attribute.Key("user.id")
	AttrVillaID   = attribute.Key("villa.id")
	AttrBookingID = attribute.Key("booking.id")
	AttrStayStart = attribute.Key("stay.start")
	AttrStayEnd   = attribute.Key("stay.end")
	AttrErrorKind = attribute.Key("error.kind")
)

func WithUserID(id int64) attribute.KeyValue    { return AttrUserID.Int64(id) }
func WithVillaID(id int64) attribute.KeyValue   { return AttrVillaID.Int64(id) }
func WithBookingID(id int64) attribute.KeyValue { return AttrBookingID.Int64(id) }

// WithErrorKind 错误类别，见 errors.Kind.String
func WithErrorKind(kind string) attribute.KeyValue { return AttrErrorKind.String(kind) }

// WithStay 入住区间 [start, end)
func WithStay(start, end string) []attribute.KeyValue {
	return []attribute.KeyValue{AttrStayStart.String(start), AttrStayEnd.String(end)}
}
