package session

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// 故障分类。会话内部产生的错误都会用 errors.Mark 标记为其中之一，
// 调用方通过 github.com/cockroachdb/errors 的 Is 判断类别，原始原因仍在错误链中。
var (
	ErrTransport          = errors.New("session: transport fault")
	ErrDecode             = errors.New("session: decode fault")
	ErrProcess            = errors.New("session: process fault")
	ErrEncode             = errors.New("session: encode fault")
	ErrNotRegistered      = errors.New("session: pipeline not registered")
	ErrAddressUnavailable = errors.New("session: address unavailable")
)

var (
	// ErrEndOfStream 对端关闭或解码器判定不会再有数据
	ErrEndOfStream = errors.New("session: end of stream")

	ErrClosed             = errors.New("session: closed")
	ErrAlreadyRegistered  = errors.New("session: pipeline already registered")
	ErrIdentifierAssigned = errors.New("session: identifier already assigned")
	ErrEmptyIdentifier    = errors.New("session: empty identifier")
	ErrIOInFlight         = errors.New("session: operation already in flight")
	ErrInvalidPipeline    = errors.New("session: invalid pipeline")
	ErrNilTransport       = errors.New("session: transport is nil")
)

// fault 将 cause 归类为 kind，cause 为 nil 时只保留类别。
func fault(cause error, kind error) error {
	if cause == nil {
		return errors.WithStack(kind)
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return errors.Mark(errors.Wrap(cause, kind.Error()), kind)
}

// safely 执行 fn，将 panic 转为错误。
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "panic")
				return
			}
			err = errors.Newf("panic: %s", fmt.Sprint(r))
		}
	}()
	return fn()
}

// Reason 关闭原因的类别名，nil 表示本端主动关闭
func Reason(err error) string {
	switch {
	case err == nil:
		return "local"
	case errors.Is(err, ErrEndOfStream):
		return "end_of_stream"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrProcess):
		return "process"
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrTransport):
		return "transport"
	}
	return "other"
}
