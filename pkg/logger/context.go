package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithFields 将字段附加到 context，*Context 系列方法会自动输出这些字段。
// 会话用它把 session_id、remote 带到整个处理链路。
func ContextWithFields(ctx context.Context, keysAndValues ...any) context.Context {
	fields := toFields(keysAndValues)
	if len(fields) == 0 {
		return ctx
	}
	if prev, ok := ctx.Value(ctxKey{}).([]zap.Field); ok {
		merged := make([]zap.Field, 0, len(prev)+len(fields))
		merged = append(merged, prev...)
		fields = append(merged, fields...)
	}
	return context.WithValue(ctx, ctxKey{}, fields)
}

func contextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxKey{}).([]zap.Field)
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, len(fields))
	copy(out, fields)
	return out
}
