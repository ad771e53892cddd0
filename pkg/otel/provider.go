package otel

import (
	"context"
	"sync/atomic"

	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerProvider 追踪提供者。启用时安装为全局 TracerProvider，
// 会话默认从全局获取 Tracer，因此每个读写周期的 span 都经由这里导出。
type TracerProvider struct {
	config   *Config
	provider *sdktrace.TracerProvider
	logger   logger.Logger
	exporter sdktrace.SpanExporter
	closed   atomic.Bool
}

// Option 选项
type Option func(*TracerProvider)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(p *TracerProvider) { p.logger = l }
}

// WithExporter 使用给定的导出器，忽略 ExporterType
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(p *TracerProvider) { p.exporter = exp }
}

// New 创建追踪提供者，未启用时返回 noop 实现
func New(cfg *Config, opts ...Option) (*TracerProvider, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	p := &TracerProvider{config: merged}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Default()
	}
	p.logger = p.logger.Named("otel")

	if !merged.Enabled {
		return p, nil
	}

	exp := p.exporter
	if exp == nil {
		if exp, err = createExporter(context.Background(), merged); err != nil {
			return nil, err
		}
		if exp == nil {
			return p, nil
		}
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(merged.ServiceName)}
	for k, v := range merged.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	b := merged.BatchExport
	p.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxExportBatchSize(b.BatchSize),
			sdktrace.WithMaxQueueSize(b.MaxQueueSize),
			sdktrace.WithBatchTimeout(b.BatchTimeout),
			sdktrace.WithExportTimeout(b.ExportTimeout),
		),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
		sdktrace.WithSampler(newSampler(merged.Sampler)),
	)

	otel.SetTracerProvider(p.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	p.logger.Info("tracing enabled",
		"service", merged.ServiceName,
		"exporter", string(merged.ExporterType),
		"endpoint", merged.Endpoint,
	)
	return p, nil
}

func newSampler(cfg SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case SamplerTypeAlways:
		return sdktrace.AlwaysSample()
	case SamplerTypeNever:
		return sdktrace.NeverSample()
	case SamplerTypeRatio:
		return sdktrace.TraceIDRatioBased(cfg.Ratio)
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// Tracer 获取指定名称的 Tracer
func (p *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if p.provider == nil {
		return noop.NewTracerProvider().Tracer(name, opts...)
	}
	return p.provider.Tracer(name, opts...)
}

// Enabled 是否在导出 span
func (p *TracerProvider) Enabled() bool {
	return p.provider != nil
}

// Config 生效的配置
func (p *TracerProvider) Config() *Config {
	return p.config
}

// ForceFlush 导出缓冲中的 span
func (p *TracerProvider) ForceFlush(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.ForceFlush(ctx)
}

// Shutdown 导出剩余 span 并关闭
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return ErrProviderClosed
	}
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Close 使用 ShutdownTimeout 关闭，实现 app.Closer
func (p *TracerProvider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.ShutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}
