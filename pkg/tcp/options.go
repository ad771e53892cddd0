package tcp

import (
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/session"
)

// options Acceptor 与 Connector 共用的选项
type options struct {
	logger      logger.Logger
	manager     *session.Manager
	observer    session.Observer
	sessionOpts []session.Option
}

// Option 选项
type Option func(*options)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithManager 使用外部的会话管理器
func WithManager(m *session.Manager) Option {
	return func(o *options) {
		if m != nil {
			o.manager = m
		}
	}
}

// WithObserver 会话事件观察者，可多次调用
func WithObserver(obs session.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = session.Observers(o.observer, obs)
		}
	}
}

// WithSessionOptions 追加创建会话时的选项
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

func newOptions(name string, opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Default()
	}
	o.logger = o.logger.Named(name)
	if o.manager == nil {
		o.manager = session.NewManager()
	}
	return o
}

// newSession 按选项创建并注册会话，绑定 factory 生成的流水线
func (o *options) newSession(t session.Transport, cfg *session.Config, factory session.PipelineFactory) (*session.Session, error) {
	opts := []session.Option{
		session.WithLogger(o.logger),
		session.WithConfig(cfg),
	}
	if o.observer != nil {
		opts = append(opts, session.WithObserver(o.observer))
	}
	opts = append(opts, o.sessionOpts...)

	s, err := session.New(t, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := o.manager.Register(s); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := factory(s).Register(s); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
