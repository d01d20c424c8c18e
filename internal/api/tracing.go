package api

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/mautops/bounty-gin/internal/auth"
	"github.com/mautops/bounty-gin/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName 追踪与日志使用的服务名
const ServiceName = "bounty-gin"

var tracerProvider *tracesdk.TracerProvider

// 不追踪的探活和推送路径
var untracedPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
	"/ws":      true,
}

// InitTracing 初始化 OpenTelemetry 追踪,按比例采样并继承上游采样决定
func InitTracing(cfg config.TracingConfig, env string) error {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	if err != nil {
		return fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.DeploymentEnvironmentKey.String(env),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create trace resource: %w", err)
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(ratio))),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

// TracingMiddleware 追踪中间件,跨度上附加请求 ID 和调用方身份
func TracingMiddleware() gin.HandlerFunc {
	traced := otelgin.Middleware(ServiceName)
	return func(c *gin.Context) {
		if untracedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		traced(c)
	}
}

// SpanAttributesMiddleware 在身份认证之后给当前跨度补充调用方
func SpanAttributesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.SpanContext().IsValid() {
			span.SetAttributes(attribute.String("request.id", c.GetString(ContextRequestID)))
			if caller, ok := auth.GetUserID(c); ok {
				span.SetAttributes(attribute.String("enduser.id", caller))
			}
		}
		c.Next()
	}
}

// ShutdownTracing 关闭追踪,刷新未导出的跨度
func ShutdownTracing(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}
