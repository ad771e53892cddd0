package handler

import (
	"sync/atomic"

	"github.com/lk2023060901/aioserver/pkg/codec"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/session"
)

var (
	_ session.Processor = (*EchoHandler)(nil)
	_ session.Observer  = (*EchoHandler)(nil)
)

// EchoHandler 把解码后的内容原样写回，同时记录连接的建立与断开。
type EchoHandler struct {
	session.NopObserver
	logger logger.Logger

	messages atomic.Uint64
	bytes    atomic.Uint64
}

func NewEchoHandler(l logger.Logger) *EchoHandler {
	return &EchoHandler{logger: l.Named("echo.handler")}
}

// Process 原样回写。分帧模式下空帧也会回写，消息数按帧计
func (h *EchoHandler) Process(s *session.Session) (bool, error) {
	n := s.Buffer().Remaining()
	h.messages.Add(uint64(max(len(codec.Frames(s)), 1)))
	h.bytes.Add(uint64(n))
	h.logger.Debug("echo", "id", s.ID(), "len", n)
	return true, nil
}

func (h *EchoHandler) OnOpened(s *session.Session) {
	h.logger.Info("client connected", "id", s.ID(), "addr", s.Remote())
}

func (h *EchoHandler) OnClosed(s *session.Session, reason error) {
	h.logger.Info("client disconnected", "id", s.ID(), "addr", s.Remote(), "reason", session.Reason(reason), "error", reason)
}

// Stats 已回写的消息数与字节数
func (h *EchoHandler) Stats() (messages, bytes uint64) {
	return h.messages.Load(), h.bytes.Load()
}

// Pipeline 用同一个编解码器和本处理器组成流水线
func (h *EchoHandler) Pipeline(d session.Decoder, e session.Encoder) session.PipelineFactory {
	p := session.Pipeline{Decoder: d, Processor: h, Encoder: e}
	return func(*session.Session) session.Pipeline {
		return p
	}
}
