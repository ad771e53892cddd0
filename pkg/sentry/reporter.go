package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/aioserver/pkg/session"
)

// capturer 上报所需的最小接口，*Client 与 *sentry.Hub 都满足
type capturer interface {
	CaptureException(err error) *sentry.EventID
	WithScope(f func(scope *sentry.Scope))
}

var (
	_ capturer         = (*Client)(nil)
	_ capturer         = (*sentry.Hub)(nil)
	_ session.Observer = (*Reporter)(nil)
)

// Reporter 在会话因故障关闭时上报，其余事件忽略
type Reporter struct {
	session.NopObserver
	capturer capturer
	reasons  map[string]struct{}
}

// NewReporter 创建上报器，reasons 为空时上报所有非本端主动的关闭
func NewReporter(c capturer, reasons ...string) *Reporter {
	r := &Reporter{capturer: c}
	if len(reasons) > 0 {
		r.reasons = make(map[string]struct{}, len(reasons))
		for _, reason := range reasons {
			r.reasons[reason] = struct{}{}
		}
	}
	return r
}

func (r *Reporter) OnClosed(s *session.Session, reason error) {
	if reason == nil {
		return
	}
	kind := session.Reason(reason)
	if r.reasons != nil {
		if _, ok := r.reasons[kind]; !ok {
			return
		}
	}

	remote := s.Remote()
	r.capturer.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session.close_reason", kind)
		if id := s.ID(); id != "" {
			scope.SetTag("session.id", id)
		}
		scope.SetContext("session", sentry.Context{
			"remote":   remote,
			"lifetime": time.Since(s.CreatedAt()).String(),
		})
		r.capturer.CaptureException(reason)
	})
}
