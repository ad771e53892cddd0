package admin

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/aioserver/app/echo/internal/handler"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/session"
	"github.com/lk2023060901/aioserver/pkg/web"
)

// 业务错误码
const (
	CodeSessionNotFound = 40401
)

// SessionInfo 会话概要
type SessionInfo struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Remote    string    `json:"remote,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Admin 管理端路由：健康检查、指标、会话查询与踢出
type Admin struct {
	manager *session.Manager
	echo    *handler.EchoHandler
	metrics http.Handler
	logger  logger.Logger
}

func New(m *session.Manager, h *handler.EchoHandler, metrics http.Handler, l logger.Logger) *Admin {
	return &Admin{
		manager: m,
		echo:    h,
		metrics: metrics,
		logger:  l.Named("echo.admin"),
	}
}

// Register 挂载路由
func (a *Admin) Register(r gin.IRouter) {
	r.GET("/healthz", a.health)
	if a.metrics != nil {
		r.GET("/metrics", gin.WrapH(a.metrics))
	}
	r.GET("/stats", a.stats)

	g := r.Group("/sessions")
	g.GET("", a.listSessions)
	g.GET("/:id", a.getSession)
	g.DELETE("/:id", a.closeSession)
}

func (a *Admin) health(c *gin.Context) {
	web.Success(c, gin.H{"status": "ok", "sessions": a.manager.Count()})
}

func (a *Admin) stats(c *gin.Context) {
	messages, bytes := a.echo.Stats()
	web.Success(c, gin.H{
		"sessions": a.manager.Count(),
		"messages": messages,
		"bytes":    bytes,
	})
}

func (a *Admin) listSessions(c *gin.Context) {
	list := make([]SessionInfo, 0, a.manager.Count())
	a.manager.Range(func(s *session.Session) bool {
		list = append(list, info(s))
		return true
	})
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	web.Success(c, list)
}

func (a *Admin) getSession(c *gin.Context) {
	s, ok := a.manager.Get(c.Param("id"))
	if !ok {
		web.Error(c, http.StatusNotFound, CodeSessionNotFound, "session not found")
		return
	}
	web.Success(c, info(s))
}

func (a *Admin) closeSession(c *gin.Context) {
	id := c.Param("id")
	s, ok := a.manager.Get(id)
	if !ok {
		web.Error(c, http.StatusNotFound, CodeSessionNotFound, "session not found")
		return
	}
	_ = s.Close()
	a.logger.Info("session closed by admin", "id", id, "ip", c.ClientIP())
	web.Success(c, info(s))
}

func info(s *session.Session) SessionInfo {
	return SessionInfo{
		ID:        s.ID(),
		State:     s.State().String(),
		Remote:    s.Remote(),
		CreatedAt: s.CreatedAt(),
	}
}
