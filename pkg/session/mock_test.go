package session

import (
	"io"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/aioserver/pkg/buffer"
)

var errNotOpen = errors.New("mock: not open")

// mockTransport 记录每次调用并统计并发在途操作数，完成由测试手动驱动。
type mockTransport struct {
	mu sync.Mutex

	open bool
	addr net.Addr

	readCalls  int
	writeCalls int
	closeCalls int

	readsInFlight  int
	writesInFlight int
	maxReads       int
	maxWrites      int
	// 写在途时又发起了读
	readDuringWrite int

	// owner 读完成时直接调用 OnReadComplete 以取得周期结果
	owner        *Session
	readBuf      []byte
	pendingRead  func(int, error)
	pendingWrite func(int, error)
	written      [][]byte

	issueReadErr  error
	issueWriteErr error
	addrErr       error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		open: true,
		addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5555},
	}
}

func (m *mockTransport) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *mockTransport) AsyncRead(p []byte, done func(int, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issueReadErr != nil {
		return m.issueReadErr
	}
	m.readCalls++
	m.readsInFlight++
	m.maxReads = max(m.maxReads, m.readsInFlight)
	if m.writesInFlight > 0 {
		m.readDuringWrite++
	}
	m.readBuf = p
	m.pendingRead = done
	return nil
}

func (m *mockTransport) AsyncWrite(p []byte, done func(int, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issueWriteErr != nil {
		return m.issueWriteErr
	}
	m.writeCalls++
	m.writesInFlight++
	m.maxWrites = max(m.maxWrites, m.writesInFlight)
	m.written = append(m.written, append([]byte(nil), p...))
	m.pendingWrite = done
	return nil
}

func (m *mockTransport) RemoteAddr() (net.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addrErr != nil {
		return nil, m.addrErr
	}
	if !m.open {
		return nil, errNotOpen
	}
	return m.addr, nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.open = false
	return nil
}

// deliver 模拟数据到达，返回 OnReadComplete 的结果
func (m *mockTransport) deliver(data []byte) bool {
	m.mu.Lock()
	done, p := m.pendingRead, m.readBuf
	m.pendingRead, m.readBuf = nil, nil
	m.readsInFlight--
	n := copy(p, data)
	owner := m.owner
	m.mu.Unlock()
	return m.complete(owner, done, n, nil)
}

func (m *mockTransport) deliverErr(err error) bool {
	m.mu.Lock()
	done := m.pendingRead
	m.pendingRead, m.readBuf = nil, nil
	m.readsInFlight--
	owner := m.owner
	m.mu.Unlock()
	return m.complete(owner, done, 0, err)
}

func (m *mockTransport) bind(s *Session) {
	m.mu.Lock()
	m.owner = s
	m.mu.Unlock()
}

// complete 未绑定会话时走传输层回调，此时无法得知周期结果
func (m *mockTransport) complete(owner *Session, done func(int, error), n int, err error) bool {
	if owner == nil {
		done(n, err)
		return false
	}
	return owner.OnReadComplete(n, err)
}

func (m *mockTransport) completeWrite() {
	m.mu.Lock()
	done := m.pendingWrite
	n := len(m.written[len(m.written)-1])
	m.pendingWrite = nil
	m.writesInFlight--
	m.mu.Unlock()
	done(n, nil)
}

func (m *mockTransport) failWrite(err error) {
	m.mu.Lock()
	done := m.pendingWrite
	m.pendingWrite = nil
	m.writesInFlight--
	m.mu.Unlock()
	done(0, err)
}

func (m *mockTransport) stats() (reads, writes, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCalls, m.writeCalls, m.closeCalls
}

func (m *mockTransport) lastWrite() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.written) == 0 {
		return nil
	}
	return m.written[len(m.written)-1]
}

// autoTransport 在独立 goroutine 上完成操作，按顺序投递 chunks 后返回 EOF。
type autoTransport struct {
	*mockTransport
	chunks [][]byte
}

func (a *autoTransport) AsyncRead(p []byte, done func(int, error)) error {
	if err := a.mockTransport.AsyncRead(p, done); err != nil {
		return err
	}
	a.mu.Lock()
	var chunk []byte
	if len(a.chunks) > 0 {
		chunk, a.chunks = a.chunks[0], a.chunks[1:]
	}
	a.mu.Unlock()

	go func() {
		if chunk == nil {
			a.deliverErr(io.EOF)
			return
		}
		a.deliver(chunk)
	}()
	return nil
}

func (a *autoTransport) AsyncWrite(p []byte, done func(int, error)) error {
	if err := a.mockTransport.AsyncWrite(p, done); err != nil {
		return err
	}
	go a.completeWrite()
	return nil
}

type recordingRegistry struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func (r *recordingRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.removed)
}

type recordingObserver struct {
	mu      sync.Mutex
	opened  int
	read    int
	written int
	closed  int
	reason  error
}

func (o *recordingObserver) OnOpened(*Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++
}

func (o *recordingObserver) OnRead(_ *Session, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.read += n
}

func (o *recordingObserver) OnWrite(_ *Session, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.written += n
}

func (o *recordingObserver) OnClosed(_ *Session, reason error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
	o.reason = reason
}

func (o *recordingObserver) closeReason() (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed, o.reason
}

// stage 调用计数
type stageCounter struct {
	mu        sync.Mutex
	decodes   int
	processes int
	encodes   int
}

func (c *stageCounter) counts() (int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decodes, c.processes, c.encodes
}

// echoPipeline 解码、编码都是恒等变换，处理器在有数据时输出
func (c *stageCounter) echoPipeline() Pipeline {
	return Pipeline{
		Decoder: DecoderFunc(func(buf *buffer.Buffer, _ *Session) (*buffer.Buffer, error) {
			c.mu.Lock()
			c.decodes++
			c.mu.Unlock()
			return buf, nil
		}),
		Processor: ProcessorFunc(func(s *Session) (bool, error) {
			c.mu.Lock()
			c.processes++
			c.mu.Unlock()
			return s.Buffer().HasRemaining(), nil
		}),
		Encoder: EncoderFunc(func(buf *buffer.Buffer, _ *Session) (*buffer.Buffer, error) {
			c.mu.Lock()
			c.encodes++
			c.mu.Unlock()
			return buf, nil
		}),
	}
}
