package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/aioserver/pkg/logger"
)

// Options 应用选项
type Options struct {
	ID           string
	Name         string
	StopTimeout  time.Duration
	PrintVersion bool
	Logger       logger.Logger

	LogConfig    *logger.Config
	NamedLoggers map[string]*logger.Config
}

// Option 选项函数
type Option func(*Options)

// DefaultOptions 默认选项
func DefaultOptions() Options {
	return Options{
		ID:           uuid.New().String(),
		Name:         AppName,
		StopTimeout:  30 * time.Second,
		PrintVersion: true,
		Logger:       logger.Default(),
	}
}

// WithLogConfig 由配置创建主日志
func WithLogConfig(cfg *logger.Config) Option {
	return func(o *Options) { o.LogConfig = cfg }
}

// WithNamedLoggers 由配置创建具名日志
func WithNamedLoggers(loggers map[string]*logger.Config) Option {
	return func(o *Options) { o.NamedLoggers = loggers }
}

// WithLogger 设置主日志
func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithID 设置实例 ID
func WithID(id string) Option {
	return func(o *Options) { o.ID = id }
}

// WithName 设置应用名称
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithStopTimeout 设置停止超时
func WithStopTimeout(t time.Duration) Option {
	return func(o *Options) { o.StopTimeout = t }
}

// WithPrintVersion 启动时是否在标准输出打印版本
func WithPrintVersion(enabled bool) Option {
	return func(o *Options) { o.PrintVersion = enabled }
}
