package tcp

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/session"
)

// Connector 客户端，拨号后为连接创建会话。
// 返回的会话处于 AwaitingRead，由调用方 Greet 发送首个请求或 BeginRead 开始读取。
type Connector struct {
	cfg      *ClientConfig
	factory  session.PipelineFactory
	opts     *options
	dispatch *Dispatcher
	closed   atomic.Bool
}

// NewConnector 创建客户端
func NewConnector(cfg *ClientConfig, factory session.PipelineFactory, opts ...Option) (*Connector, error) {
	if factory == nil {
		return nil, ErrNilPipelineFactory
	}
	merged, err := config.MergeConfig(DefaultClientConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	o := newOptions("connector", opts)
	d, err := NewDispatcher(merged.WorkerPoolSize, o.logger)
	if err != nil {
		return nil, err
	}
	return &Connector{cfg: merged, factory: factory, opts: o, dispatch: d}, nil
}

// Manager 会话管理器
func (c *Connector) Manager() *session.Manager {
	return c.opts.manager
}

// Dial 连接 addr，为空时使用配置中的地址
func (c *Connector) Dial(ctx context.Context, addr string) (*session.Session, error) {
	if c.closed.Load() {
		return nil, session.ErrClosed
	}
	if addr == "" {
		addr = c.cfg.Addr
	}

	dialer := &net.Dialer{
		Timeout:   c.cfg.DialTimeout,
		KeepAlive: c.cfg.TCPKeepAlive,
	}
	conn, err := dialer.DialContext(ctx, c.cfg.Network, addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(c.cfg.TCPNoDelay)
	}

	t := NewConnTransport(conn,
		WithDispatcher(c.dispatch),
		WithReadTimeout(c.cfg.ReadTimeout),
		WithWriteTimeout(c.cfg.WriteTimeout),
	)
	s, err := c.opts.newSession(t, c.cfg.Session, c.factory)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	s.Logger().Debug("connected", "addr", addr)
	return s, nil
}

// Close 关闭所有会话并释放协程池
func (c *Connector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.opts.manager.CloseAll()
	return c.dispatch.Release(0)
}
