// Package app 管理进程级生命周期：启动服务、等待信号、优雅停止并释放资源。
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lk2023060901/aioserver/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAppAlreadyRunning = errors.New("app: application is already running")
	ErrStopTimeout       = errors.New("app: stop timeout")
)

// Application 应用接口
type Application interface {
	Run() error
	Shutdown() error
	Logger(name string) logger.Logger
	AppLogger() logger.Logger
}

// Server 需要启动和停止的服务，如 tcp.Acceptor
type Server interface {
	Start() error
	Stop() error
}

// Closer 停止后需要释放的资源，如 prometheus.Client、sentry.Client
type Closer interface {
	Close() error
}

// BaseApp Application 的基础实现
type BaseApp struct {
	opts    Options
	logger  logger.Logger
	loggers *namedLoggers
	servers []Server
	closers []Closer

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex

	started atomic.Bool
	closed  atomic.Bool
}

// NewBaseApp 创建应用
func NewBaseApp(opts ...Option) *BaseApp {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &BaseApp{
		opts:    o,
		logger:  o.Logger.Named(o.Name),
		loggers: newNamedLoggers(),
		ctx:     ctx,
		cancel:  cancel,
	}
	if o.LogConfig != nil {
		if l, err := logger.New(o.LogConfig); err == nil {
			a.logger = l.Named(o.Name)
		} else {
			a.logger.Warn("invalid log config, keeping default logger", "error", err)
		}
	}
	return a
}

// ID 实例标识
func (a *BaseApp) ID() string {
	return a.opts.ID
}

// Context 应用上下文，Shutdown 时取消
func (a *BaseApp) Context() context.Context {
	return a.ctx
}

// AppLogger 应用主日志
func (a *BaseApp) AppLogger() logger.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logger
}

// Logger 具名日志，未配置时返回主日志的子日志
func (a *BaseApp) Logger(name string) logger.Logger {
	if l := a.loggers.get(name); l != nil {
		return l
	}
	return a.AppLogger().Named(name)
}

// AppendServer 添加服务，按添加顺序启动
func (a *BaseApp) AppendServer(srv ...Server) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.servers = append(a.servers, srv...)
}

// AppendCloser 添加资源，按添加的逆序关闭
func (a *BaseApp) AppendCloser(closer ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer...)
}

// Run 启动所有服务并阻塞，直到收到 SIGINT/SIGTERM 或 Stop 被调用
func (a *BaseApp) Run() error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}

	if err := a.loggers.init(a.opts.NamedLoggers); err != nil {
		a.logger.Error("failed to initialize named loggers", "error", err)
		return err
	}

	info := GetInfo()
	if a.opts.PrintVersion {
		fmt.Println(info.String())
	}
	a.logger.Info("application starting",
		"name", info.AppName,
		"version", info.Version,
		"commit", info.GitCommit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
		"id", a.opts.ID,
	)

	a.mu.RLock()
	servers := append([]Server(nil), a.servers...)
	a.mu.RUnlock()
	for i, srv := range servers {
		if err := srv.Start(); err != nil {
			a.logger.Error("failed to start server", "index", i, "error", err)
			_ = a.Shutdown()
			return err
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		a.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-a.ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}
	return a.Shutdown()
}

// Stop 让 Run 返回
func (a *BaseApp) Stop() {
	a.cancel()
}

// Shutdown 并行停止所有服务，超时后继续逆序关闭资源
func (a *BaseApp) Shutdown() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.cancel()
	a.logger.Info("application shutting down")

	a.mu.RLock()
	servers := append([]Server(nil), a.servers...)
	closers := append([]Closer(nil), a.closers...)
	a.mu.RUnlock()

	var g errgroup.Group
	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.Stop(); err != nil {
				a.logger.Error("failed to stop server", "error", err)
				return err
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var stopErr error
	select {
	case stopErr = <-done:
		a.logger.Info("all servers stopped")
	case <-time.After(a.opts.StopTimeout):
		a.logger.Warn("shutdown timeout, closing resources anyway", "timeout", a.opts.StopTimeout)
		stopErr = ErrStopTimeout
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", "error", err)
		}
	}

	a.loggers.sync()
	a.logger.Info("application exited")
	_ = a.logger.Sync()
	return stopErr
}
