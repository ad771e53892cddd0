package tcp

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/aioserver/pkg/session"
)

var _ session.Transport = (*ConnTransport)(nil)

// ConnTransport 基于阻塞 net.Conn 的传输，读写在 Dispatcher 中执行后回调
type ConnTransport struct {
	conn         net.Conn
	dispatch     *Dispatcher
	readTimeout  time.Duration
	writeTimeout time.Duration

	closed  atomic.Bool
	reading atomic.Bool
	writing atomic.Bool
}

// ConnOption 传输选项
type ConnOption func(*ConnTransport)

// WithReadTimeout 单次读超时
func WithReadTimeout(d time.Duration) ConnOption {
	return func(t *ConnTransport) {
		t.readTimeout = d
	}
}

// WithWriteTimeout 单次写超时
func WithWriteTimeout(d time.Duration) ConnOption {
	return func(t *ConnTransport) {
		t.writeTimeout = d
	}
}

// WithDispatcher 指定执行读写的调度器
func WithDispatcher(d *Dispatcher) ConnOption {
	return func(t *ConnTransport) {
		t.dispatch = d
	}
}

// NewConnTransport 包装一条已建立的连接
func NewConnTransport(conn net.Conn, opts ...ConnOption) *ConnTransport {
	t := &ConnTransport{conn: conn}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ConnTransport) IsOpen() bool {
	return !t.closed.Load()
}

func (t *ConnTransport) AsyncRead(p []byte, done func(int, error)) error {
	if t.closed.Load() {
		return net.ErrClosed
	}
	if !t.reading.CompareAndSwap(false, true) {
		return ErrReadPending
	}

	t.dispatch.Go(func() {
		if t.readTimeout > 0 {
			_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		}
		n, err := t.conn.Read(p)
		t.reading.Store(false)
		// 同时返回数据和错误时先交付数据，错误留给下一次读
		if n > 0 {
			err = nil
		} else if err != nil {
			n = 0
		}
		done(n, err)
	})
	return nil
}

func (t *ConnTransport) AsyncWrite(p []byte, done func(int, error)) error {
	if t.closed.Load() {
		return net.ErrClosed
	}
	if !t.writing.CompareAndSwap(false, true) {
		return session.ErrIOInFlight
	}

	t.dispatch.Go(func() {
		if t.writeTimeout > 0 {
			_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		}
		n, err := t.conn.Write(p)
		t.writing.Store(false)
		if err != nil {
			n = 0
		}
		done(n, err)
	})
	return nil
}

func (t *ConnTransport) RemoteAddr() (net.Addr, error) {
	addr := t.conn.RemoteAddr()
	if addr == nil {
		return nil, session.ErrAddressUnavailable
	}
	return addr, nil
}

func (t *ConnTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.conn.Close()
}
