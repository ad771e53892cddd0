package sentry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/aioserver/pkg/config"
)

// Config 故障上报配置，DSN 为空表示不上报
type Config struct {
	DSN         string `mapstructure:"dsn" json:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" json:"environment" yaml:"environment"`
	Release     string `mapstructure:"release" json:"release" yaml:"release"`
	ServerName  string `mapstructure:"server_name" json:"server_name" yaml:"server_name"`

	// SampleRate 事件采样率 [0, 1]
	SampleRate float64 `mapstructure:"sample_rate" json:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`

	AttachStacktrace bool `mapstructure:"attach_stacktrace" json:"attach_stacktrace" yaml:"attach_stacktrace"`
	MaxBreadcrumbs   int  `mapstructure:"max_breadcrumbs" json:"max_breadcrumbs" yaml:"max_breadcrumbs" validate:"gte=0"`

	// ShutdownTimeout 关闭时等待事件发送完成的时间
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`

	Debug bool `mapstructure:"debug" json:"debug" yaml:"debug"`

	// Tags 附加到每个事件的标签
	Tags map[string]string `mapstructure:"tags" json:"tags" yaml:"tags"`

	// ReportReasons 需要上报的会话关闭原因，取值见 session.Reason
	ReportReasons []string `mapstructure:"report_reasons" json:"report_reasons" yaml:"report_reasons" validate:"dive,oneof=end_of_stream decode process encode transport other"`
}

// DefaultConfig 默认上报解码、处理、编码与传输故障
func DefaultConfig() *Config {
	return &Config{
		Environment:      "production",
		SampleRate:       1.0,
		AttachStacktrace: true,
		MaxBreadcrumbs:   100,
		ShutdownTimeout:  2 * time.Second,
		ReportReasons:    []string{"decode", "process", "encode", "transport"},
	}
}

// Validate 校验配置，DSN 必填
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.DSN == "" {
		return ErrInvalidDSN
	}
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) clientOptions() sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              c.DSN,
		Environment:      c.Environment,
		Release:          c.Release,
		ServerName:       c.ServerName,
		SampleRate:       c.SampleRate,
		AttachStacktrace: c.AttachStacktrace,
		MaxBreadcrumbs:   c.MaxBreadcrumbs,
		Debug:            c.Debug,
	}
}
