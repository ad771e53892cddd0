package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/aioserver/pkg/logger"
)

// Recovery 适配 pkg/logger 的异常恢复中间件，stack 为 true 时记录堆栈
func Recovery(l logger.Logger, stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			request, _ := httputil.DumpRequest(c.Request, false)
			if brokenPipe(r) {
				l.Warn("http broken pipe", "error", r, "request", string(request))
				_ = c.Error(fmt.Errorf("%v", r))
				c.Abort()
				return
			}

			fields := []any{"error", r, "request", string(request)}
			if stack {
				fields = append(fields, "stack", string(debug.Stack()))
			}
			l.Error("http recovery from panic", fields...)
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}

// brokenPipe 对端已断开时的写错误
func brokenPipe(r any) bool {
	err, ok := r.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
