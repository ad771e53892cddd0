package otel

import (
	"fmt"
	"time"

	"github.com/lk2023060901/aioserver/pkg/config"
)

// ExporterType 导出器类型
type ExporterType string

const (
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	// ExporterTypeStdout 调试用
	ExporterTypeStdout ExporterType = "stdout"
	ExporterTypeNoop   ExporterType = "noop"
)

// SamplerType 采样类型
type SamplerType string

const (
	SamplerTypeAlways SamplerType = "always"
	SamplerTypeNever  SamplerType = "never"
	SamplerTypeRatio  SamplerType = "ratio"
	// SamplerTypeParent 跟随父 Span 的采样决策，没有父 Span 时始终采样
	SamplerTypeParent SamplerType = "parent"
)

// Config TracerProvider 配置
type Config struct {
	// Enabled 是否启用追踪，关闭时会话使用全局的 noop Tracer
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	ServiceName string `mapstructure:"service_name" json:"service_name" yaml:"service_name" validate:"required_if=Enabled true"`

	// Endpoint OTLP 端点，HTTP 默认 localhost:4318，gRPC 默认 localhost:4317
	Endpoint string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`

	ExporterType ExporterType `mapstructure:"exporter_type" json:"exporter_type" yaml:"exporter_type" validate:"omitempty,oneof=otlp-http otlp-grpc stdout noop"`

	// Insecure 不使用 TLS
	Insecure bool `mapstructure:"insecure" json:"insecure" yaml:"insecure"`

	Sampler SamplerConfig `mapstructure:"sampler" json:"sampler" yaml:"sampler"`

	BatchExport BatchExportConfig `mapstructure:"batch_export" json:"batch_export" yaml:"batch_export"`

	// Attributes 附加的资源属性
	Attributes map[string]string `mapstructure:"attributes" json:"attributes" yaml:"attributes"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SamplerConfig 采样配置
type SamplerConfig struct {
	Type SamplerType `mapstructure:"type" json:"type" yaml:"type" validate:"omitempty,oneof=always never ratio parent"`
	// Ratio 仅 ratio 采样时生效
	Ratio float64 `mapstructure:"ratio" json:"ratio" yaml:"ratio" validate:"gte=0,lte=1"`
}

// BatchExportConfig 批量导出配置
type BatchExportConfig struct {
	BatchSize     int           `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size"`
	MaxQueueSize  int           `mapstructure:"max_queue_size" json:"max_queue_size" yaml:"max_queue_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout" json:"batch_timeout" yaml:"batch_timeout"`
	ExportTimeout time.Duration `mapstructure:"export_timeout" json:"export_timeout" yaml:"export_timeout"`
}

// DefaultConfig 返回默认配置，默认不启用
func DefaultConfig() *Config {
	return &Config{
		ServiceName:  "aioserver",
		Endpoint:     "localhost:4318",
		ExporterType: ExporterTypeOTLPHTTP,
		Insecure:     true,
		Sampler: SamplerConfig{
			Type:  SamplerTypeParent,
			Ratio: 1.0,
		},
		BatchExport: BatchExportConfig{
			BatchSize:     512,
			MaxQueueSize:  2048,
			BatchTimeout:  5 * time.Second,
			ExportTimeout: 30 * time.Second,
		},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
