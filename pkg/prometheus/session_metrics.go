package prometheus

import (
	"time"

	"github.com/lk2023060901/aioserver/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

var _ session.Observer = (*SessionMetrics)(nil)

// openedKey 会话属性，标记已计入活跃数
type openedKey struct{}

// SessionMetrics 以 session.Observer 的形式采集会话指标
type SessionMetrics struct {
	active       prometheus.Gauge
	opened       prometheus.Counter
	closed       *prometheus.CounterVec
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	lifetime     prometheus.Observer
}

// NewSessionMetrics 在客户端上注册会话指标
func NewSessionMetrics(c *Client) (*SessionMetrics, error) {
	active, err := c.NewGauge("sessions_active", "Number of sessions with a registered pipeline.", nil)
	if err != nil {
		return nil, err
	}
	opened, err := c.NewCounter("sessions_opened_total", "Sessions that registered a pipeline.", nil)
	if err != nil {
		return nil, err
	}
	closed, err := c.NewCounter("sessions_closed_total", "Closed sessions by reason.", []string{"reason"})
	if err != nil {
		return nil, err
	}
	read, err := c.NewCounter("session_read_bytes_total", "Bytes delivered by completed reads.", nil)
	if err != nil {
		return nil, err
	}
	written, err := c.NewCounter("session_written_bytes_total", "Bytes reported by completed writes.", nil)
	if err != nil {
		return nil, err
	}
	lifetime, err := c.NewHistogram("session_lifetime_seconds", "Time from session creation to close.", nil,
		prometheus.ExponentialBuckets(0.01, 4, 10))
	if err != nil {
		return nil, err
	}

	return &SessionMetrics{
		active:       active.WithLabelValues(),
		opened:       opened.WithLabelValues(),
		closed:       closed,
		bytesRead:    read.WithLabelValues(),
		bytesWritten: written.WithLabelValues(),
		lifetime:     lifetime.WithLabelValues(),
	}, nil
}

func (m *SessionMetrics) OnOpened(s *session.Session) {
	s.SetValue(openedKey{}, true)
	m.active.Inc()
	m.opened.Inc()
}

func (m *SessionMetrics) OnRead(_ *session.Session, n int) {
	m.bytesRead.Add(float64(n))
}

func (m *SessionMetrics) OnWrite(_ *session.Session, n int) {
	m.bytesWritten.Add(float64(n))
}

func (m *SessionMetrics) OnClosed(s *session.Session, reason error) {
	if opened, _ := s.Value(openedKey{}).(bool); opened {
		m.active.Dec()
	}
	m.closed.WithLabelValues(session.Reason(reason)).Inc()
	m.lifetime.Observe(time.Since(s.CreatedAt()).Seconds())
}
