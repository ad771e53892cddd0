package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/web/middleware"
)

// Server 基于 gin 的 HTTP 服务，实现 app.Server
type Server struct {
	engine *gin.Engine
	config *Config
	logger logger.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer 创建 HTTP 服务，cfg 中未设置的字段使用默认值
func NewServer(cfg *Config, l logger.Logger) (*Server, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Default()
	}
	l = l.Named("web.server")

	gin.SetMode(merged.Mode)
	engine := gin.New()
	engine.Use(middleware.Logger(l))
	engine.Use(middleware.Recovery(l, true))
	engine.Use(middleware.Tracing(merged.ServiceName))
	if len(merged.AllowOrigins) > 0 {
		engine.Use(middleware.CORS(merged.AllowOrigins))
	}

	return &Server{
		engine: engine,
		config: merged,
		logger: l,
	}, nil
}

// Router 返回 gin 引擎，用于注册路由
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr 实际监听地址，未启动时返回配置的地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// Start 监听并在后台提供服务
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server exited", "error", err)
		}
	}()
	s.logger.Info("http server started", "addr", ln.Addr().String())
	return nil
}

// Stop 优雅关闭，等待进行中的请求最多 StopTimeout
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.StopTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
