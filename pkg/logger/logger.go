// Package logger 基于 zap 的结构化日志。
// 其他 pkg 模块只依赖 Logger 接口，测试中使用 NewNoop。
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lk2023060901/aioserver/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 日志接口，参数为 key-value 对
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	DebugContext(ctx context.Context, msg string, keysAndValues ...any)
	InfoContext(ctx context.Context, msg string, keysAndValues ...any)
	WarnContext(ctx context.Context, msg string, keysAndValues ...any)
	ErrorContext(ctx context.Context, msg string, keysAndValues ...any)

	Named(name string) Logger
	WithFields(keysAndValues ...any) Logger

	Sync() error
}

var _ Logger = (*BaseLogger)(nil)

// BaseLogger zap 实现
type BaseLogger struct {
	zl     *zap.Logger
	config *Config
	extra  []io.Writer
}

// Option 构造选项
type Option func(*BaseLogger)

// WithOutput 追加一个输出目标，主要用于测试捕获日志
func WithOutput(w io.Writer) Option {
	return func(l *BaseLogger) {
		l.extra = append(l.extra, w)
	}
}

// New 创建 BaseLogger，cfg 中未设置的字段使用默认值
func New(cfg *Config, opts ...Option) (*BaseLogger, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: failed to merge config: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	l := &BaseLogger{config: merged}
	for _, opt := range opts {
		opt(l)
	}

	zl, err := l.build()
	if err != nil {
		return nil, err
	}
	l.zl = zl
	return l, nil
}

func (l *BaseLogger) build() (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(l.config.TimeFormat),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if l.config.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	if l.config.Format == JSONFormat {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	syncers := make([]zapcore.WriteSyncer, 0, 2+len(l.extra))
	if l.config.EnableConsole {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	if l.config.EnableFile {
		w, err := NewRotationWriter(&l.config.Rotation, l.config.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("logger: failed to create rotation writer: %w", err)
		}
		syncers = append(syncers, zapcore.AddSync(w))
	}
	for _, w := range l.extra {
		syncers = append(syncers, zapcore.AddSync(w))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), toZapLevel(l.config.Level))
	if l.config.EnableSampling {
		core = zapcore.NewSamplerWithOptions(core, time.Second, l.config.SamplingInitial, l.config.SamplingThereafter)
	}

	options := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if l.config.EnableStacktrace {
		options = append(options, zap.AddStacktrace(toZapLevel(l.config.StacktraceLevel)))
	}
	if l.config.Development {
		options = append(options, zap.Development())
	}

	zl := zap.New(core, options...)
	if len(l.config.GlobalFields) > 0 {
		fields := make([]zap.Field, 0, len(l.config.GlobalFields))
		for k, v := range l.config.GlobalFields {
			fields = append(fields, zap.Any(k, v))
		}
		zl = zl.With(fields...)
	}
	return zl, nil
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *BaseLogger) Debug(msg string, keysAndValues ...any) {
	l.zl.Debug(msg, toFields(keysAndValues)...)
}

func (l *BaseLogger) Info(msg string, keysAndValues ...any) {
	l.zl.Info(msg, toFields(keysAndValues)...)
}

func (l *BaseLogger) Warn(msg string, keysAndValues ...any) {
	l.zl.Warn(msg, toFields(keysAndValues)...)
}

func (l *BaseLogger) Error(msg string, keysAndValues ...any) {
	l.zl.Error(msg, toFields(keysAndValues)...)
}

func (l *BaseLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.zl.Debug(msg, append(contextFields(ctx), toFields(keysAndValues)...)...)
}

func (l *BaseLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.zl.Info(msg, append(contextFields(ctx), toFields(keysAndValues)...)...)
}

func (l *BaseLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.zl.Warn(msg, append(contextFields(ctx), toFields(keysAndValues)...)...)
}

func (l *BaseLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.zl.Error(msg, append(contextFields(ctx), toFields(keysAndValues)...)...)
}

// Named 创建具名 logger
func (l *BaseLogger) Named(name string) Logger {
	return &BaseLogger{zl: l.zl.Named(name), config: l.config, extra: l.extra}
}

// WithFields 返回附加了字段的 logger
func (l *BaseLogger) WithFields(keysAndValues ...any) Logger {
	fields := toFields(keysAndValues)
	if len(fields) == 0 {
		return l
	}
	return &BaseLogger{zl: l.zl.With(fields...), config: l.config, extra: l.extra}
}

// Sync 刷新缓冲
func (l *BaseLogger) Sync() error {
	return l.zl.Sync()
}

// Zap 返回底层 zap.Logger
func (l *BaseLogger) Zap() *zap.Logger {
	return l.zl
}

// toFields 将 key-value 对转换为 zap.Field，也接受直接传入的 zap.Field
func toFields(keysAndValues []any) []zap.Field {
	if len(keysAndValues) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i++ {
		switch v := keysAndValues[i].(type) {
		case zap.Field:
			fields = append(fields, v)
		case string:
			if i+1 >= len(keysAndValues) {
				fields = append(fields, zap.Any("!BADKEY", v))
				continue
			}
			if err, ok := keysAndValues[i+1].(error); ok && v == "error" {
				fields = append(fields, zap.Error(err))
			} else {
				fields = append(fields, zap.Any(v, keysAndValues[i+1]))
			}
			i++
		default:
			fields = append(fields, zap.Any("!BADKEY", v))
		}
	}
	return fields
}
