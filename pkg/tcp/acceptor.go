package tcp

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/session"
	"github.com/panjf2000/gnet/v2"
	"golang.org/x/time/rate"
)

const (
	minTickInterval = 100 * time.Millisecond
	pruneInterval   = 30 * time.Second
)

// transportKey 会话属性中保存 gnet 传输
type transportKey struct{}

// Acceptor 基于 gnet 的服务端，为每条入站连接创建会话。
type Acceptor struct {
	gnet.BuiltinEventEngine

	cfg      *ServerConfig
	factory  session.PipelineFactory
	opts     *options
	dispatch *Dispatcher
	limiter  *rate.Limiter

	engine  gnet.Engine
	conns   atomic.Int64
	started atomic.Bool
	stopped atomic.Bool
	booted  chan struct{}
	errCh   chan error
}

// NewAcceptor 创建服务端，cfg 中未设置的字段使用默认值
func NewAcceptor(cfg *ServerConfig, factory session.PipelineFactory, opts ...Option) (*Acceptor, error) {
	if factory == nil {
		return nil, ErrNilPipelineFactory
	}
	merged, err := config.MergeConfig(DefaultServerConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	o := newOptions("acceptor", opts)
	d, err := NewDispatcher(merged.WorkerPoolSize, o.logger)
	if err != nil {
		return nil, err
	}

	a := &Acceptor{
		cfg:      merged,
		factory:  factory,
		opts:     o,
		dispatch: d,
		booted:   make(chan struct{}),
		errCh:    make(chan error, 1),
	}
	if merged.AcceptRate > 0 {
		burst := max(merged.AcceptBurst, 1)
		a.limiter = rate.NewLimiter(rate.Limit(merged.AcceptRate), burst)
	}
	return a, nil
}

// Manager 会话管理器
func (a *Acceptor) Manager() *session.Manager {
	return a.opts.manager
}

// Addr 监听地址
func (a *Acceptor) Addr() string {
	return a.cfg.Addr
}

// Connections 当前连接数
func (a *Acceptor) Connections() int {
	return int(a.conns.Load())
}

// Start 启动事件循环，监听成功或失败后返回
func (a *Acceptor) Start() error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrServerAlreadyStarted
	}

	opts := []gnet.Option{
		gnet.WithMulticore(a.cfg.Multicore),
		gnet.WithReusePort(a.cfg.ReusePort),
		gnet.WithReuseAddr(a.cfg.ReuseAddr),
		gnet.WithTCPKeepAlive(a.cfg.TCPKeepAlive),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(gnetLogger{l: a.opts.logger}),
		gnet.WithTicker(true),
	}
	if a.cfg.NumEventLoop > 0 {
		opts = append(opts, gnet.WithNumEventLoop(a.cfg.NumEventLoop))
	}
	if a.cfg.SocketRecvBuffer > 0 {
		opts = append(opts, gnet.WithSocketRecvBuffer(a.cfg.SocketRecvBuffer))
	}
	if a.cfg.SocketSendBuffer > 0 {
		opts = append(opts, gnet.WithSocketSendBuffer(a.cfg.SocketSendBuffer))
	}

	protoAddr := a.cfg.ProtoAddr()
	go func() {
		if err := gnet.Run(a, protoAddr, opts...); err != nil {
			a.errCh <- err
		}
	}()

	select {
	case <-a.booted:
		a.opts.logger.Info("tcp server started", "addr", protoAddr)
		return nil
	case err := <-a.errCh:
		a.started.Store(false)
		return fmt.Errorf("tcp: listen %s: %w", protoAddr, err)
	case <-time.After(a.cfg.StartTimeout):
		return ErrStartTimeout
	}
}

// Stop 关闭所有会话并停止事件循环
func (a *Acceptor) Stop() error {
	if !a.started.Load() {
		return ErrServerNotStarted
	}
	if !a.stopped.CompareAndSwap(false, true) {
		return nil
	}

	a.opts.manager.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.StopTimeout)
	defer cancel()
	err := a.engine.Stop(ctx)
	if rerr := a.dispatch.Release(a.cfg.StopTimeout); rerr != nil && err == nil {
		err = rerr
	}
	a.opts.logger.Info("tcp server stopped", "addr", a.cfg.Addr)
	return err
}

// OnBoot 实现 gnet.EventHandler。
func (a *Acceptor) OnBoot(eng gnet.Engine) gnet.Action {
	a.engine = eng
	close(a.booted)
	return gnet.None
}

// OnOpen 实现 gnet.EventHandler。
func (a *Acceptor) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if a.limiter != nil && !a.limiter.Allow() {
		a.opts.logger.Warn("connection rejected", "remote", c.RemoteAddr(), "error", ErrRateLimited)
		return nil, gnet.Close
	}
	if limit := a.cfg.MaxConnections; limit > 0 && a.conns.Load() >= int64(limit) {
		a.opts.logger.Warn("connection rejected", "remote", c.RemoteAddr(), "error", ErrTooManyConnections)
		return nil, gnet.Close
	}

	t := newGnetTransport(c, a.dispatch)
	s, err := a.opts.newSession(t, a.cfg.Session, a.factory)
	if err != nil {
		a.opts.logger.Error("failed to create session", "remote", c.RemoteAddr(), "error", err)
		return nil, gnet.Close
	}
	s.SetValue(transportKey{}, t)
	t.setOwner(s)
	c.SetContext(t)
	a.conns.Add(1)

	banner := a.cfg.Banner
	a.dispatch.Go(func() {
		var err error
		if banner != "" {
			err = s.Greet([]byte(banner))
		} else {
			err = s.BeginRead()
		}
		if err != nil {
			s.Logger().Warn("failed to start session", "error", err)
			_ = s.Close()
		}
	})
	return nil, gnet.None
}

// OnTraffic 实现 gnet.EventHandler。
func (a *Acceptor) OnTraffic(c gnet.Conn) gnet.Action {
	if t, ok := c.Context().(*gnetTransport); ok {
		t.onTraffic()
	}
	return gnet.None
}

// OnClose 实现 gnet.EventHandler。
func (a *Acceptor) OnClose(c gnet.Conn, err error) gnet.Action {
	t, ok := c.Context().(*gnetTransport)
	if !ok {
		return gnet.None
	}
	a.conns.Add(-1)
	if t.onClose(err) {
		return gnet.None
	}
	// 没有在途读，直接关闭会话
	if s := t.session(); s != nil {
		a.dispatch.Go(func() { _ = s.Close() })
	}
	return gnet.None
}

// OnTick 清理管理器中已回收的条目，并关闭空闲超时的会话
func (a *Acceptor) OnTick() (time.Duration, gnet.Action) {
	if n := a.opts.manager.Prune(); n > 0 {
		a.opts.logger.Debug("pruned collected sessions", "count", n)
	}
	idle := a.cfg.IdleTimeout
	if idle <= 0 {
		return pruneInterval, gnet.None
	}

	now := time.Now()
	a.opts.manager.Range(func(s *session.Session) bool {
		t, ok := s.Value(transportKey{}).(*gnetTransport)
		if ok && t.idleFor(now) > idle {
			s.Logger().Info("closing idle session", "idle_timeout", idle)
			a.dispatch.Go(func() { _ = s.Close() })
		}
		return true
	})
	return max(idle/2, minTickInterval), gnet.None
}

// gnetLogger 把 gnet 的日志转到 logger
type gnetLogger struct {
	l logger.Logger
}

func (g gnetLogger) Debugf(format string, args ...any) { g.l.Debug(fmt.Sprintf(format, args...)) }
func (g gnetLogger) Infof(format string, args ...any)  { g.l.Info(fmt.Sprintf(format, args...)) }
func (g gnetLogger) Warnf(format string, args ...any)  { g.l.Warn(fmt.Sprintf(format, args...)) }
func (g gnetLogger) Errorf(format string, args ...any) { g.l.Error(fmt.Sprintf(format, args...)) }
func (g gnetLogger) Fatalf(format string, args ...any) { g.l.Error(fmt.Sprintf(format, args...)) }
