package session

import (
	"github.com/lk2023060901/aioserver/pkg/buffer"
	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultReadBufferSize 每个读周期分配的缓冲区大小
	DefaultReadBufferSize = 64 * 1024

	tracerName = "github.com/lk2023060901/aioserver/pkg/session"
)

// Config 会话配置
type Config struct {
	// ReadBufferSize 单次读取的缓冲区容量
	ReadBufferSize int `mapstructure:"read_buffer_size" json:"read_buffer_size" yaml:"read_buffer_size" validate:"gte=512,lte=16777216"`
	// UsePool 读缓冲区是否从 buffer.Pool 获取
	UsePool bool `mapstructure:"use_pool" json:"use_pool" yaml:"use_pool"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize: DefaultReadBufferSize,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	return config.Validate(c)
}

// Option 会话选项
type Option func(*Session)

// WithConfig 覆盖默认配置，未设置的字段保留默认值
func WithConfig(cfg *Config) Option {
	return func(s *Session) {
		s.cfgOverride = cfg
	}
}

// WithRegistry 设置关闭时通知的注册表
func WithRegistry(r Registry) Option {
	return func(s *Session) {
		s.registry = r
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver 设置事件观察者
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithTracer 设置链路追踪，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithPool 读缓冲区从指定的池获取
func WithPool(p *buffer.Pool) Option {
	return func(s *Session) {
		s.pool = p
	}
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
