// Package session 实现基于完成回调的 TCP 会话引擎。
//
// 一个 Session 独占一条连接，驱动 读 → 解码 → 处理 → 编码 → 写 的循环：
//
//	Created → AwaitingRegistration → AwaitingRead → Decoding → Processing → AwaitingWrite → AwaitingRead ...
//
// 任意状态都可以进入终态 Closed。同一会话同一时刻最多只有一个读和一个写在途，
// 下一次读只会在写完成之后，或确定本周期无需写出之后发起。
// 周期内的任何故障都在会话边界被记录并转为 Close，不会向上传播。
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/aioserver/pkg/buffer"
	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session 单条连接的会话
type Session struct {
	mu    sync.Mutex
	id    string
	state State

	transport   Transport
	registry    Registry
	cfg         *Config
	cfgOverride *Config
	pool        *buffer.Pool
	logger      logger.Logger
	observer    Observer
	tracer      trace.Tracer

	decoder   Decoder
	processor Processor
	encoder   Encoder

	reading bool
	writing bool
	readBuf *buffer.Buffer
	buf     *buffer.Buffer
	// 本周期持有的缓冲区，周期结束或关闭时统一释放
	owned []*buffer.Buffer
	span  trace.Span

	attrMu sync.RWMutex
	attrs  map[any]any

	remote    string
	createdAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// New 创建会话，处于 Created 状态，需要 RegisterPipeline 之后才能收发数据。
func New(t Transport, opts ...Option) (*Session, error) {
	if t == nil {
		return nil, ErrNilTransport
	}

	s := &Session{
		transport: t,
		observer:  NopObserver{},
		attrs:     make(map[any]any),
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := config.MergeConfig(DefaultConfig(), s.cfgOverride)
	if err != nil {
		return nil, errors.Wrap(err, "session: merge config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s.cfg = cfg
	if s.pool == nil && cfg.UsePool {
		s.pool = buffer.DefaultPool()
	}
	if s.logger == nil {
		s.logger = logger.Default().Named("session")
	}
	if s.tracer == nil {
		s.tracer = defaultTracer()
	}

	if addr, err := t.RemoteAddr(); err == nil && addr != nil {
		s.remote = addr.String()
	}
	s.logger = s.logger.WithFields("remote", s.remote)
	s.ctx, s.cancel = context.WithCancel(logger.ContextWithFields(context.Background(), "remote", s.remote))
	return s, nil
}

// ID 注册表分配的标识，未分配时为空
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetID 由注册表调用，只能设置一次
func (s *Session) SetID(id string) error {
	if id == "" {
		return ErrEmptyIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateClosed:
		return ErrClosed
	case s.id != "":
		return ErrIdentifierAssigned
	}
	s.id = id
	if s.state == StateCreated {
		s.state = StateAwaitingRegistration
	}
	s.logger = s.logger.WithFields("session_id", id)
	s.ctx = logger.ContextWithFields(s.ctx, "session_id", id)
	return nil
}

// SetRegistry 设置关闭时通知的注册表
func (s *Session) SetRegistry(r Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = r
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Closed 是否已关闭
func (s *Session) Closed() bool {
	return s.State() == StateClosed
}

// Context 会话关闭时取消，携带 session_id 与 remote 日志字段
func (s *Session) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// CreatedAt 会话创建时间
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Logger 带会话字段的日志
func (s *Session) Logger() logger.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

// Value 读取会话属性
func (s *Session) Value(key any) any {
	s.attrMu.RLock()
	defer s.attrMu.RUnlock()
	return s.attrs[key]
}

// SetValue 设置会话属性，阶段对象用它保存会话级状态
func (s *Session) SetValue(key, value any) {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	s.attrs[key] = value
}

// DeleteValue 删除会话属性
func (s *Session) DeleteValue(key any) {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	delete(s.attrs, key)
}

// Buffer 当前流水线缓冲区，处理器从这里读取解码结果
func (s *Session) Buffer() *buffer.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// SetBuffer 替换当前流水线缓冲区，会话负责在周期结束时释放它
func (s *Session) SetBuffer(b *buffer.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = b
	s.trackLocked(b)
}

// Remote 创建时记录的对端地址，会话关闭后仍可读取，取不到时为空
func (s *Session) Remote() string {
	return s.remote
}

// RemoteAddr 对端地址
func (s *Session) RemoteAddr() (string, error) {
	if s.Closed() {
		return "", errors.WithStack(ErrAddressUnavailable)
	}
	addr, err := s.transport.RemoteAddr()
	if err != nil {
		return "", fault(err, ErrAddressUnavailable)
	}
	if addr == nil {
		return "", errors.WithStack(ErrAddressUnavailable)
	}
	return addr.String(), nil
}

// RegisterPipeline 绑定解码器、处理器、编码器，只能调用一次。
func (s *Session) RegisterPipeline(d Decoder, p Processor, e Encoder) error {
	if d == nil || p == nil || e == nil {
		return ErrInvalidPipeline
	}

	s.mu.Lock()
	switch {
	case s.state == StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case s.decoder != nil:
		s.mu.Unlock()
		return ErrAlreadyRegistered
	}
	s.decoder, s.processor, s.encoder = d, p, e
	s.state = StateAwaitingRead
	s.mu.Unlock()

	s.notify(func() { s.observer.OnOpened(s) })
	return nil
}

// BeginRead 发起第一次读。连接未打开时只记录日志。
func (s *Session) BeginRead() error {
	return s.armRead(StateAwaitingRead)
}

// Greet 在第一次读之前写出 p（服务端欢迎语或客户端握手），写完成后进入读循环。
func (s *Session) Greet(p []byte) error {
	s.mu.Lock()
	if err := s.checkIOLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.reading || s.writing || s.state != StateAwaitingRead {
		s.mu.Unlock()
		return ErrIOInFlight
	}
	s.mu.Unlock()

	if len(p) == 0 {
		return s.BeginRead()
	}
	buf := buffer.From(p)
	s.SetBuffer(buf)
	return s.write(buf, StateAwaitingRead)
}

// onRead 交给传输层的读完成回调
func (s *Session) onRead(n int, err error) {
	s.OnReadComplete(n, err)
}

// OnReadComplete 读完成回调。返回本周期是否成功，失败时会话已关闭。
func (s *Session) OnReadComplete(n int, err error) bool {
	s.mu.Lock()
	if !s.reading {
		s.mu.Unlock()
		s.log().Warn("unexpected read completion", "bytes", n)
		return false
	}
	s.reading = false
	if s.state == StateClosed {
		bufs := s.takeBuffersLocked()
		s.mu.Unlock()
		releaseAll(bufs)
		return false
	}
	buf := s.readBuf
	if err == nil && n > 0 {
		s.state = StateDecoding
	}
	s.mu.Unlock()

	switch {
	case err != nil && !errors.Is(err, io.EOF):
		s.fail("read failed", fault(err, ErrTransport))
		return false
	case err != nil || n <= 0:
		s.OnEmptyRead()
		return false
	}

	if err := buf.Commit(n); err != nil {
		s.fail("read overflow", fault(err, ErrTransport))
		return false
	}
	buf.Flip()
	s.notify(func() { s.observer.OnRead(s, n) })
	s.startCycle(n)

	var decoded *buffer.Buffer
	err = safely(func() (e error) {
		decoded, e = s.decoder.Decode(buf, s)
		return e
	})
	if err != nil {
		if errors.Is(err, ErrEndOfStream) {
			s.OnEmptyRead()
			s.finishCycle()
			return false
		}
		s.fail("decode failed", fault(err, ErrDecode))
		return false
	}

	s.SetBuffer(decoded)
	if !decoded.HasRemaining() {
		// 帧不完整，等待更多数据
		s.finishCycle()
		return s.rearm(StateDecoding)
	}
	return s.runPipeline()
}

// runPipeline 处理并在需要时编码写出
func (s *Session) runPipeline() bool {
	if !s.transition(StateProcessing, StateDecoding) {
		s.finishCycle()
		return false
	}

	var emit bool
	err := safely(func() (e error) {
		emit, e = s.processor.Process(s)
		return e
	})
	if err != nil {
		s.fail("process failed", fault(err, ErrProcess))
		return false
	}
	if !emit {
		s.finishCycle()
		return s.rearm(StateProcessing)
	}

	in := s.Buffer()
	var out *buffer.Buffer
	err = safely(func() (e error) {
		out, e = s.encoder.Encode(in, s)
		return e
	})
	if err != nil {
		s.fail("encode failed", fault(err, ErrEncode))
		return false
	}
	s.SetBuffer(out)
	return s.write(out, StateProcessing) == nil
}

// write 发起异步写，不重新发起读，读由写完成回调恢复。
// 缓冲区为空时本周期无输出，直接恢复读循环。
func (s *Session) write(buf *buffer.Buffer, from State) error {
	if !buf.HasRemaining() {
		s.finishCycle()
		return s.armRead(from)
	}

	s.mu.Lock()
	if s.state != from || s.reading || s.writing {
		closed := s.state == StateClosed
		s.mu.Unlock()
		if closed {
			s.finishCycle()
			return ErrClosed
		}
		err := fault(ErrIOInFlight, ErrTransport)
		s.fail("write rejected", err)
		return err
	}
	s.writing = true
	s.state = StateAwaitingWrite
	s.mu.Unlock()

	err := safely(func() error {
		return s.transport.AsyncWrite(buf.Bytes(), s.OnWriteComplete)
	})
	if err != nil {
		s.mu.Lock()
		s.writing = false
		s.mu.Unlock()
		err = fault(err, ErrTransport)
		s.fail("write not issued", err)
		return err
	}
	return nil
}

// OnWriteComplete 写完成回调，成功后释放本周期缓冲区并发起下一次读。
func (s *Session) OnWriteComplete(n int, err error) {
	s.mu.Lock()
	if !s.writing {
		s.mu.Unlock()
		s.log().Warn("unexpected write completion", "bytes", n)
		return
	}
	s.writing = false
	if s.state == StateClosed {
		bufs := s.takeBuffersLocked()
		s.mu.Unlock()
		releaseAll(bufs)
		return
	}
	s.mu.Unlock()

	if err != nil {
		s.fail("write failed", fault(err, ErrTransport))
		return
	}
	s.notify(func() { s.observer.OnWrite(s, n) })
	s.finishCycle()
	s.rearm(StateAwaitingWrite)
}

// OnEmptyRead 对端关闭，直接进入 Closed
func (s *Session) OnEmptyRead() {
	s.log().Debug("peer closed")
	s.closeWith(ErrEndOfStream)
}

// Close 关闭会话，可重复调用。
// 通知注册表、关闭连接、释放缓冲区，清理过程中的错误只记录日志。
func (s *Session) Close() error {
	s.closeWith(nil)
	return nil
}

func (s *Session) closeWith(reason error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateClosed
	id, reg := s.id, s.registry
	var bufs []*buffer.Buffer
	// 有操作在途或周期正在执行时缓冲区仍在使用，由回调或周期结束时释放
	if !s.reading && !s.writing && !prev.in(StateDecoding, StateProcessing) {
		bufs = s.takeBuffersLocked()
	}
	span := s.span
	s.span = nil
	l := s.logger
	s.mu.Unlock()

	s.cancel()

	if reg != nil && id != "" {
		if err := safely(func() error { reg.Remove(id); return nil }); err != nil {
			l.Error("registry remove failed", "error", err)
		}
	}
	if err := safely(s.transport.Close); err != nil {
		l.Warn("transport close failed", "error", err)
	}
	releaseAll(bufs)
	if span != nil {
		span.End()
	}
	s.notify(func() { s.observer.OnClosed(s, reason) })

	if reason != nil {
		l.Debug("session closed", "state", prev.String(), "reason", reason.Error())
	} else {
		l.Debug("session closed", "state", prev.String())
	}
}

// armRead 在 from 状态下发起下一次读
func (s *Session) armRead(from State) error {
	s.mu.Lock()
	if err := s.checkIOLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.reading || s.writing || s.state != from {
		s.mu.Unlock()
		return ErrIOInFlight
	}
	s.reading = true
	s.mu.Unlock()

	if !s.transport.IsOpen() {
		s.mu.Lock()
		s.reading = false
		s.mu.Unlock()
		s.log().Warn("transport not open, read not armed", "state", from.String())
		if from != StateAwaitingRead {
			// 周期中途连接已关闭，没有人会再驱动这个会话
			s.closeWith(fault(nil, ErrTransport))
		}
		return nil
	}

	buf := s.allocRead()
	s.mu.Lock()
	if s.state == StateClosed {
		s.reading = false
		s.mu.Unlock()
		buf.Release()
		return ErrClosed
	}
	s.state = StateAwaitingRead
	s.readBuf = buf
	s.trackLocked(buf)
	s.mu.Unlock()

	err := safely(func() error {
		return s.transport.AsyncRead(buf.Free(), s.onRead)
	})
	if err != nil {
		s.mu.Lock()
		s.reading = false
		s.mu.Unlock()
		err = fault(err, ErrTransport)
		s.fail("read not issued", err)
		return err
	}
	return nil
}

func (s *Session) rearm(from State) bool {
	return s.armRead(from) == nil
}

func (s *Session) allocRead() *buffer.Buffer {
	if s.pool != nil {
		return s.pool.Get(s.cfg.ReadBufferSize)
	}
	return buffer.New(s.cfg.ReadBufferSize)
}

func (s *Session) checkIOLocked() error {
	switch {
	case s.state == StateClosed:
		return ErrClosed
	case !s.state.Registered():
		return ErrNotRegistered
	}
	return nil
}

// transition 仅当当前状态属于 from 时切换到 to
func (s *Session) transition(to State, from ...State) bool {
	s.mu.Lock()
	cur := s.state
	if !cur.in(from...) {
		s.mu.Unlock()
		if cur != StateClosed {
			s.log().Warn("invalid transition", "from", cur.String(), "to", to.String())
		}
		return false
	}
	s.state = to
	s.mu.Unlock()
	return true
}

func (s *Session) startCycle(n int) {
	s.mu.Lock()
	ctx, id := s.ctx, s.id
	s.mu.Unlock()

	_, span := s.tracer.Start(ctx, "session.cycle",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.String("net.peer.addr", s.remote),
			attribute.Int("session.bytes_read", n),
		),
	)

	s.mu.Lock()
	s.span = span
	s.mu.Unlock()
}

// finishCycle 释放本周期缓冲区并结束 span
func (s *Session) finishCycle() {
	s.mu.Lock()
	bufs := s.takeBuffersLocked()
	span := s.span
	s.span = nil
	s.mu.Unlock()

	releaseAll(bufs)
	if span != nil {
		span.End()
	}
}

func (s *Session) fail(msg string, err error) {
	s.mu.Lock()
	span := s.span
	state := s.state
	s.mu.Unlock()

	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
	}
	s.log().Error(msg, "error", err, "state", state.String())
	s.closeWith(err)
	s.finishCycle()
}

func (s *Session) notify(fn func()) {
	if err := safely(func() error { fn(); return nil }); err != nil {
		s.log().Error("observer failed", "error", err)
	}
}

func (s *Session) log() logger.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

func (s *Session) trackLocked(b *buffer.Buffer) {
	if b == nil {
		return
	}
	for _, o := range s.owned {
		if o == b {
			return
		}
	}
	s.owned = append(s.owned, b)
}

func (s *Session) takeBuffersLocked() []*buffer.Buffer {
	bufs := s.owned
	s.owned = nil
	s.buf = nil
	s.readBuf = nil
	return bufs
}

func releaseAll(bufs []*buffer.Buffer) {
	for _, b := range bufs {
		b.Release()
	}
}
