package tcp

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/aioserver/pkg/session"
	"github.com/panjf2000/gnet/v2"
)

var _ session.Transport = (*gnetTransport)(nil)

// pendingRead 等待事件循环填充的读请求
type pendingRead struct {
	p    []byte
	done func(int, error)
}

// gnetTransport 把 gnet 的事件回调转为完成式读写。
// 读请求先登记，再通过 Wake 让事件循环在 OnTraffic 中从入站缓冲区取数据；
// 完成回调统一交给 Dispatcher，不在事件循环里执行会话逻辑。
type gnetTransport struct {
	conn     gnet.Conn
	dispatch *Dispatcher
	remote   net.Addr

	open       atomic.Bool
	lastActive atomic.Int64

	mu      sync.Mutex
	pending *pendingRead
	closed  bool
	owner   *session.Session
}

func newGnetTransport(c gnet.Conn, d *Dispatcher) *gnetTransport {
	t := &gnetTransport{
		conn:     c,
		dispatch: d,
		remote:   c.RemoteAddr(),
	}
	t.open.Store(true)
	t.touch()
	return t
}

func (t *gnetTransport) IsOpen() bool {
	return t.open.Load()
}

func (t *gnetTransport) AsyncRead(p []byte, done func(int, error)) error {
	pr := &pendingRead{p: p, done: done}

	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return net.ErrClosed
	case t.pending != nil:
		t.mu.Unlock()
		return ErrReadPending
	}
	t.pending = pr
	t.mu.Unlock()

	if err := t.conn.Wake(nil); err != nil {
		t.mu.Lock()
		if t.pending == pr {
			t.pending = nil
			t.mu.Unlock()
			return err
		}
		// 已被 onClose 取走并回调
		t.mu.Unlock()
	}
	return nil
}

func (t *gnetTransport) AsyncWrite(p []byte, done func(int, error)) error {
	if !t.open.Load() {
		return net.ErrClosed
	}
	n := len(p)
	var once sync.Once
	return t.conn.AsyncWrite(p, func(_ gnet.Conn, err error) error {
		once.Do(func() {
			if err != nil {
				t.dispatch.Go(func() { done(0, err) })
				return
			}
			t.touch()
			t.dispatch.Go(func() { done(n, nil) })
		})
		return nil
	})
}

func (t *gnetTransport) RemoteAddr() (net.Addr, error) {
	if t.remote == nil {
		return nil, session.ErrAddressUnavailable
	}
	return t.remote, nil
}

func (t *gnetTransport) Close() error {
	if !t.open.CompareAndSwap(true, false) {
		return nil
	}
	return t.conn.Close()
}

// onTraffic 在事件循环中调用，有登记的读且入站缓冲区有数据时完成该读
func (t *gnetTransport) onTraffic() {
	t.mu.Lock()
	pr := t.pending
	if pr == nil || t.conn.InboundBuffered() == 0 {
		t.mu.Unlock()
		return
	}
	n, err := t.conn.Read(pr.p)
	t.pending = nil
	t.mu.Unlock()

	if err != nil {
		n = 0
	} else {
		t.touch()
	}
	t.dispatch.Go(func() { pr.done(n, err) })
}

// onClose 在事件循环中调用，返回是否有读请求收到了关闭通知
func (t *gnetTransport) onClose(err error) bool {
	t.open.Store(false)

	t.mu.Lock()
	t.closed = true
	pr := t.pending
	t.pending = nil
	t.mu.Unlock()

	if pr == nil {
		return false
	}
	if err == nil {
		err = io.EOF
	}
	t.dispatch.Go(func() { pr.done(0, err) })
	return true
}

func (t *gnetTransport) touch() {
	t.lastActive.Store(time.Now().UnixNano())
}

// idleFor 距最近一次读写完成的时长
func (t *gnetTransport) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, t.lastActive.Load()))
}

func (t *gnetTransport) setOwner(s *session.Session) {
	t.mu.Lock()
	t.owner = s
	t.mu.Unlock()
}

func (t *gnetTransport) session() *session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owner
}
