package logger

import (
	"context"
	"os"
	"sync"
)

var (
	defaultLogger Logger
	defaultMu     sync.RWMutex
)

// SetDefault 设置全局默认 logger
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default 返回全局默认 logger，未设置时懒加载控制台 logger。
// 环境变量 AIOSERVER_LOG_LEVEL 可覆盖默认等级。
func Default() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger != nil {
		return defaultLogger
	}

	cfg := DefaultConfig()
	if level := os.Getenv("AIOSERVER_LOG_LEVEL"); level != "" {
		cfg.Level = Level(level)
	}
	bl, err := New(cfg)
	if err != nil {
		defaultLogger = NewNoop()
	} else {
		defaultLogger = bl
	}
	return defaultLogger
}

var _ Logger = (*NoopLogger)(nil)

// NoopLogger 丢弃所有日志
type NoopLogger struct{}

// NewNoop 创建空日志记录器
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(string, ...any) {}
func (l *NoopLogger) Info(string, ...any) {}
func (l *NoopLogger) Warn(string, ...any) {}
func (l *NoopLogger) Error(string, ...any) {}
func (l *NoopLogger) DebugContext(context.Context, string, ...any) {}
func (l *NoopLogger) InfoContext(context.Context, string, ...any) {}
func (l *NoopLogger) WarnContext(context.Context, string, ...any) {}
func (l *NoopLogger) ErrorContext(context.Context, string, ...any) {}
func (l *NoopLogger) Named(string) Logger { return l }
func (l *NoopLogger) WithFields(...any) Logger { return l }
func (l *NoopLogger) Sync() error { return nil }
