package session

import (
	"bytes"
	"io"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/aioserver/pkg/buffer"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fixture struct {
	tr       *mockTransport
	reg      *recordingRegistry
	obs      *recordingObserver
	counter  *stageCounter
	session  *Session
	recorder *tracetest.SpanRecorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWith(t, newMockTransport(), opts...)
}

func newFixtureWith(t *testing.T, tr Transport, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		reg:      &recordingRegistry{},
		obs:      &recordingObserver{},
		counter:  &stageCounter{},
		recorder: tracetest.NewSpanRecorder(),
	}
	if mt, ok := tr.(*mockTransport); ok {
		f.tr = mt
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.recorder))

	base := []Option{
		WithLogger(logger.NewNoop()),
		WithRegistry(f.reg),
		WithObserver(f.obs),
		WithTracer(tp.Tracer("test")),
	}
	s, err := New(tr, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, s.SetID("session-1"))
	if b, ok := tr.(interface{ bind(*Session) }); ok {
		b.bind(s)
	}
	f.session = s
	return f
}

func (f *fixture) registerEcho(t *testing.T) {
	t.Helper()
	require.NoError(t, f.counter.echoPipeline().Register(f.session))
}

func (f *fixture) register(t *testing.T, p Pipeline) {
	t.Helper()
	require.NoError(t, p.Register(f.session))
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilTransport)

	_, err = New(newMockTransport(), WithLogger(logger.NewNoop()), WithConfig(&Config{ReadBufferSize: 16}))
	require.Error(t, err)

	s, err := New(newMockTransport(), WithLogger(logger.NewNoop()), WithConfig(&Config{ReadBufferSize: 4096}))
	require.NoError(t, err)
	assert.Equal(t, 4096, s.cfg.ReadBufferSize)
	assert.Equal(t, StateCreated, s.State())
	assert.Empty(t, s.ID())
}

func TestSessionRegistration(t *testing.T) {
	s, err := New(newMockTransport(), WithLogger(logger.NewNoop()))
	require.NoError(t, err)

	assert.ErrorIs(t, s.BeginRead(), ErrNotRegistered)
	assert.ErrorIs(t, s.Greet([]byte("hi")), ErrNotRegistered)

	assert.ErrorIs(t, s.SetID(""), ErrEmptyIdentifier)
	require.NoError(t, s.SetID("a"))
	assert.Equal(t, StateAwaitingRegistration, s.State())
	assert.ErrorIs(t, s.SetID("b"), ErrIdentifierAssigned)
	assert.Equal(t, "a", s.ID())

	assert.ErrorIs(t, s.BeginRead(), ErrNotRegistered)

	c := &stageCounter{}
	p := c.echoPipeline()
	assert.ErrorIs(t, s.RegisterPipeline(nil, p.Processor, p.Encoder), ErrInvalidPipeline)
	assert.ErrorIs(t, s.RegisterPipeline(p.Decoder, nil, p.Encoder), ErrInvalidPipeline)
	assert.ErrorIs(t, s.RegisterPipeline(p.Decoder, p.Processor, nil), ErrInvalidPipeline)

	require.NoError(t, p.Register(s))
	assert.Equal(t, StateAwaitingRead, s.State())
	assert.ErrorIs(t, p.Register(s), ErrAlreadyRegistered)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.SetID("c"), ErrClosed)
}

func TestSessionRegisterFromCreated(t *testing.T) {
	s, err := New(newMockTransport(), WithLogger(logger.NewNoop()))
	require.NoError(t, err)
	c := &stageCounter{}
	require.NoError(t, c.echoPipeline().Register(s))
	assert.Equal(t, StateAwaitingRead, s.State())
}

func TestSessionEchoScenario(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)

	require.NoError(t, f.session.BeginRead())
	reads, writes, _ := f.tr.stats()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 0, writes)
	assert.Len(t, f.tr.readBuf, DefaultReadBufferSize)

	payload := bytes.Repeat([]byte{0xAB}, 64)
	assert.True(t, f.tr.deliver(payload))

	reads, writes, _ = f.tr.stats()
	assert.Equal(t, 1, writes)
	assert.Equal(t, 1, reads, "next read must wait for the write completion")
	assert.Equal(t, payload, f.tr.lastWrite())
	assert.Equal(t, StateAwaitingWrite, f.session.State())

	f.tr.completeWrite()
	reads, writes, _ = f.tr.stats()
	assert.Equal(t, 2, reads)
	assert.Equal(t, 1, writes)
	assert.Equal(t, StateAwaitingRead, f.session.State())

	assert.Equal(t, 1, f.tr.maxReads)
	assert.Equal(t, 1, f.tr.maxWrites)
	assert.Zero(t, f.tr.readDuringWrite)
	assert.Equal(t, 64, f.obs.read)
	assert.Equal(t, 64, f.obs.written)
	assert.Equal(t, 1, f.obs.opened)
}

func TestSessionRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)
	require.NoError(t, f.session.BeginRead())

	inputs := [][]byte{
		[]byte("a"),
		[]byte("hello world"),
		bytes.Repeat([]byte("xyz"), 1000),
		{0x00, 0x01, 0x02, 0xFF},
	}
	for i, in := range inputs {
		require.True(t, f.tr.deliver(in), "cycle %d", i)
		assert.Equal(t, in, f.tr.lastWrite(), "cycle %d", i)
		f.tr.completeWrite()
	}

	reads, writes, _ := f.tr.stats()
	assert.Equal(t, len(inputs)+1, reads)
	assert.Equal(t, len(inputs), writes)
	assert.Equal(t, 1, f.tr.maxReads)
	assert.Equal(t, 1, f.tr.maxWrites)
}

func TestSessionEmptyRead(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "zero bytes", err: nil},
		{name: "eof", err: io.EOF},
		{name: "wrapped eof", err: errors.Wrap(io.EOF, "conn")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.registerEcho(t)
			require.NoError(t, f.session.BeginRead())

			var ok bool
			if tt.err == nil {
				ok = f.tr.deliver(nil)
			} else {
				ok = f.tr.deliverErr(tt.err)
			}
			assert.False(t, ok)

			assert.Equal(t, StateClosed, f.session.State())
			assert.Equal(t, 1, f.reg.count())
			assert.Equal(t, []string{"session-1"}, f.reg.removed)

			reads, writes, closes := f.tr.stats()
			assert.Equal(t, 1, reads)
			assert.Zero(t, writes)
			assert.Equal(t, 1, closes)

			decodes, processes, _ := f.counter.counts()
			assert.Zero(t, decodes)
			assert.Zero(t, processes)
			assert.Empty(t, f.recorder.Started(), "empty read must not start a cycle")

			n, reason := f.obs.closeReason()
			assert.Equal(t, 1, n)
			assert.ErrorIs(t, reason, ErrEndOfStream)
		})
	}
}

func TestSessionDecodeFault(t *testing.T) {
	malformed := errors.New("malformed frame")

	tests := []struct {
		name   string
		decode DecoderFunc
		cause  error
	}{
		{
			name: "error",
			decode: func(*buffer.Buffer, *Session) (*buffer.Buffer, error) {
				return nil, malformed
			},
			cause: malformed,
		},
		{
			name: "panic",
			decode: func(*buffer.Buffer, *Session) (*buffer.Buffer, error) {
				panic("index out of range")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			echo := f.counter.echoPipeline()
			echo.Decoder = tt.decode
			f.register(t, echo)
			require.NoError(t, f.session.BeginRead())

			assert.False(t, f.tr.deliver([]byte("garbage")))
			assert.Equal(t, StateClosed, f.session.State())

			_, processes, encodes := f.counter.counts()
			assert.Zero(t, processes)
			assert.Zero(t, encodes)

			reads, writes, closes := f.tr.stats()
			assert.Equal(t, 1, reads)
			assert.Zero(t, writes)
			assert.Equal(t, 1, closes)
			assert.Equal(t, 1, f.reg.count())

			_, reason := f.obs.closeReason()
			assert.True(t, errors.Is(reason, ErrDecode))
			if tt.cause != nil {
				assert.True(t, errors.Is(reason, tt.cause))
			}

			spans := f.recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "session.cycle", spans[0].Name())
			assert.Equal(t, codes.Error, spans[0].Status().Code)
		})
	}
}

func TestSessionProcessAndEncodeFaults(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		mutate func(p *Pipeline)
		kind   error
	}{
		{
			name: "process error",
			mutate: func(p *Pipeline) {
				p.Processor = ProcessorFunc(func(*Session) (bool, error) { return false, boom })
			},
			kind: ErrProcess,
		},
		{
			name: "process panic",
			mutate: func(p *Pipeline) {
				p.Processor = ProcessorFunc(func(*Session) (bool, error) { panic(boom) })
			},
			kind: ErrProcess,
		},
		{
			name: "encode error",
			mutate: func(p *Pipeline) {
				p.Encoder = EncoderFunc(func(*buffer.Buffer, *Session) (*buffer.Buffer, error) { return nil, boom })
			},
			kind: ErrEncode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.counter.echoPipeline()
			tt.mutate(&p)
			f.register(t, p)
			require.NoError(t, f.session.BeginRead())

			assert.False(t, f.tr.deliver([]byte("payload")))
			assert.Equal(t, StateClosed, f.session.State())

			_, writes, _ := f.tr.stats()
			assert.Zero(t, writes, "no partial write after a stage fault")
			assert.Equal(t, 1, f.reg.count())

			_, reason := f.obs.closeReason()
			assert.True(t, errors.Is(reason, tt.kind))
			assert.True(t, errors.Is(reason, boom))
		})
	}
}

func TestSessionNoEmit(t *testing.T) {
	f := newFixture(t)
	p := f.counter.echoPipeline()
	p.Processor = ProcessorFunc(func(s *Session) (bool, error) {
		// 缓冲区仍有内容，但处理器明确不输出
		assert.True(t, s.Buffer().HasRemaining())
		return false, nil
	})
	f.register(t, p)
	require.NoError(t, f.session.BeginRead())

	assert.True(t, f.tr.deliver([]byte("ping")))

	reads, writes, _ := f.tr.stats()
	assert.Equal(t, 2, reads)
	assert.Zero(t, writes)
	assert.Equal(t, StateAwaitingRead, f.session.State())
	_, _, encodes := f.counter.counts()
	assert.Zero(t, encodes)
	assert.Len(t, f.recorder.Ended(), 1)
}

func TestSessionTransportCallbackDrivesCycle(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)
	require.NoError(t, f.session.BeginRead())

	// 不经 OnReadComplete，直接调用交给传输层的回调
	f.tr.mu.Lock()
	done, p := f.tr.pendingRead, f.tr.readBuf
	f.tr.pendingRead, f.tr.readBuf = nil, nil
	f.tr.readsInFlight--
	f.tr.mu.Unlock()
	require.NotNil(t, done)
	done(copy(p, "hello"), nil)

	f.tr.mu.Lock()
	written := append([][]byte(nil), f.tr.written...)
	f.tr.mu.Unlock()
	require.Len(t, written, 1)
	assert.Equal(t, "hello", string(written[0]))
	assert.Equal(t, StateAwaitingWrite, f.session.State())

	f.tr.completeWrite()
	reads, _, _ := f.tr.stats()
	assert.Equal(t, 2, reads)
	assert.Equal(t, StateAwaitingRead, f.session.State())
}

func TestSessionEmptyEncodedOutput(t *testing.T) {
	f := newFixture(t)
	p := f.counter.echoPipeline()
	p.Encoder = EncoderFunc(func(*buffer.Buffer, *Session) (*buffer.Buffer, error) {
		return buffer.New(0).Flip(), nil
	})
	f.register(t, p)
	require.NoError(t, f.session.BeginRead())

	assert.True(t, f.tr.deliver([]byte("ping")))
	reads, writes, _ := f.tr.stats()
	assert.Equal(t, 2, reads)
	assert.Zero(t, writes)
}

func TestSessionIncompleteFrame(t *testing.T) {
	f := newFixture(t)
	p := f.counter.echoPipeline()
	p.Decoder = DecoderFunc(func(buf *buffer.Buffer, s *Session) (*buffer.Buffer, error) {
		// 累积到 4 字节才输出
		prev, _ := s.Value("pending").([]byte)
		prev = append(prev, buf.Bytes()...)
		if len(prev) < 4 {
			s.SetValue("pending", prev)
			return nil, nil
		}
		s.DeleteValue("pending")
		return buffer.From(prev), nil
	})
	f.register(t, p)
	require.NoError(t, f.session.BeginRead())

	assert.True(t, f.tr.deliver([]byte("ab")))
	reads, writes, _ := f.tr.stats()
	assert.Equal(t, 2, reads)
	assert.Zero(t, writes)
	_, processes, _ := f.counter.counts()
	assert.Zero(t, processes)

	assert.True(t, f.tr.deliver([]byte("cd")))
	assert.Equal(t, []byte("abcd"), f.tr.lastWrite())
	assert.Nil(t, f.session.Value("pending"))
}

func TestSessionDecoderEndOfStream(t *testing.T) {
	f := newFixture(t)
	p := f.counter.echoPipeline()
	p.Decoder = DecoderFunc(func(*buffer.Buffer, *Session) (*buffer.Buffer, error) {
		return nil, ErrEndOfStream
	})
	f.register(t, p)
	require.NoError(t, f.session.BeginRead())

	assert.False(t, f.tr.deliver([]byte("QUIT")))
	assert.Equal(t, StateClosed, f.session.State())
	assert.Equal(t, 1, f.reg.count())
	_, processes, _ := f.counter.counts()
	assert.Zero(t, processes)
	_, reason := f.obs.closeReason()
	assert.ErrorIs(t, reason, ErrEndOfStream)
}

func TestSessionCloseIdempotent(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)

	ctx := f.session.Context()
	require.NoError(t, f.session.Close())
	require.NoError(t, f.session.Close())

	assert.Equal(t, 1, f.reg.count())
	_, _, closes := f.tr.stats()
	assert.Equal(t, 1, closes)
	n, reason := f.obs.closeReason()
	assert.Equal(t, 1, n)
	assert.NoError(t, reason)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not cancelled")
	}

	assert.ErrorIs(t, f.session.BeginRead(), ErrClosed)
	assert.ErrorIs(t, f.session.Greet([]byte("x")), ErrClosed)
	assert.ErrorIs(t, f.session.RegisterPipeline(f.counter.echoPipeline().Decoder, nil, nil), ErrInvalidPipeline)
}

func TestSessionConcurrentClose(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)
	require.NoError(t, f.session.BeginRead())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.session.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.reg.count())
	_, _, closes := f.tr.stats()
	assert.Equal(t, 1, closes)
}

func TestSessionCloseToleratesFailingCollaborators(t *testing.T) {
	tr := &panickyTransport{mockTransport: newMockTransport()}
	f := newFixtureWith(t, tr)
	f.registerEcho(t)
	f.session.SetRegistry(panickyRegistry{})

	assert.NotPanics(t, func() { _ = f.session.Close() })
	assert.Equal(t, StateClosed, f.session.State())
	assert.True(t, tr.closeAttempted)
}

type panickyTransport struct {
	*mockTransport
	closeAttempted bool
}

func (p *panickyTransport) Close() error {
	p.closeAttempted = true
	panic("close failed")
}

type panickyRegistry struct{}

func (panickyRegistry) Remove(string) { panic("registry unavailable") }

func TestSessionTransportFaults(t *testing.T) {
	reset := syscall.ECONNRESET

	t.Run("read error", func(t *testing.T) {
		f := newFixture(t)
		f.registerEcho(t)
		require.NoError(t, f.session.BeginRead())

		assert.False(t, f.tr.deliverErr(reset))
		assert.Equal(t, StateClosed, f.session.State())
		_, reason := f.obs.closeReason()
		assert.True(t, errors.Is(reason, ErrTransport))
		assert.True(t, errors.Is(reason, reset))
	})

	t.Run("write completion error", func(t *testing.T) {
		f := newFixture(t)
		f.registerEcho(t)
		require.NoError(t, f.session.BeginRead())
		require.True(t, f.tr.deliver([]byte("x")))

		f.tr.failWrite(reset)
		assert.Equal(t, StateClosed, f.session.State())
		reads, _, _ := f.tr.stats()
		assert.Equal(t, 1, reads)
		_, reason := f.obs.closeReason()
		assert.True(t, errors.Is(reason, ErrTransport))
	})

	t.Run("read not issued", func(t *testing.T) {
		f := newFixture(t)
		f.registerEcho(t)
		f.tr.issueReadErr = reset

		err := f.session.BeginRead()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTransport))
		assert.Equal(t, StateClosed, f.session.State())
		assert.Equal(t, 1, f.reg.count())
	})

	t.Run("write not issued", func(t *testing.T) {
		f := newFixture(t)
		f.registerEcho(t)
		require.NoError(t, f.session.BeginRead())
		f.tr.issueWriteErr = reset

		assert.False(t, f.tr.deliver([]byte("x")))
		assert.Equal(t, StateClosed, f.session.State())
	})
}

func TestSessionBeginReadTransportNotOpen(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)
	f.tr.open = false

	assert.NoError(t, f.session.BeginRead())
	reads, _, _ := f.tr.stats()
	assert.Zero(t, reads)
	assert.Equal(t, StateAwaitingRead, f.session.State())
}

func TestSessionRearmOnClosedTransportCloses(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)
	require.NoError(t, f.session.BeginRead())
	require.True(t, f.tr.deliver([]byte("x")))

	f.tr.mu.Lock()
	f.tr.open = false
	f.tr.mu.Unlock()
	f.tr.completeWrite()

	assert.Equal(t, StateClosed, f.session.State())
	assert.Equal(t, 1, f.reg.count())
}

func TestSessionSingleOutstandingRead(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)

	require.NoError(t, f.session.BeginRead())
	assert.ErrorIs(t, f.session.BeginRead(), ErrIOInFlight)
	assert.ErrorIs(t, f.session.Greet([]byte("x")), ErrIOInFlight)
	assert.Equal(t, 1, f.tr.maxReads)

	// 多余的完成通知被忽略
	assert.True(t, f.tr.deliver([]byte("x")))
	assert.False(t, f.session.OnReadComplete(1, nil))
	f.tr.completeWrite()
	f.session.OnWriteComplete(1, nil)
	assert.Equal(t, StateAwaitingRead, f.session.State())
}

func TestSessionGreet(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)

	require.NoError(t, f.session.Greet([]byte("220 ready\r\n")))
	reads, writes, _ := f.tr.stats()
	assert.Zero(t, reads)
	assert.Equal(t, 1, writes)
	assert.Equal(t, []byte("220 ready\r\n"), f.tr.lastWrite())
	assert.Equal(t, StateAwaitingWrite, f.session.State())

	f.tr.completeWrite()
	reads, _, _ = f.tr.stats()
	assert.Equal(t, 1, reads)
	assert.Equal(t, StateAwaitingRead, f.session.State())
}

func TestSessionGreetEmpty(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)

	require.NoError(t, f.session.Greet(nil))
	reads, writes, _ := f.tr.stats()
	assert.Equal(t, 1, reads)
	assert.Zero(t, writes)
}

func TestSessionRemoteAddr(t *testing.T) {
	f := newFixture(t)

	addr, err := f.session.RemoteAddr()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5555", addr)

	f.tr.addrErr = syscall.ENOTCONN
	_, err = f.session.RemoteAddr()
	assert.True(t, errors.Is(err, ErrAddressUnavailable))
	assert.True(t, errors.Is(err, syscall.ENOTCONN))

	f.tr.addrErr = nil
	require.NoError(t, f.session.Close())
	_, err = f.session.RemoteAddr()
	assert.ErrorIs(t, err, ErrAddressUnavailable)
	assert.Equal(t, "127.0.0.1:5555", f.session.Remote(), "cached address survives close")
}

func TestSessionValues(t *testing.T) {
	f := newFixture(t)

	assert.Nil(t, f.session.Value("k"))
	f.session.SetValue("k", 1)
	assert.Equal(t, 1, f.session.Value("k"))
	f.session.DeleteValue("k")
	assert.Nil(t, f.session.Value("k"))
}

func TestSessionReleasesPooledBuffers(t *testing.T) {
	pool := buffer.NewPool()

	t.Run("after write completion", func(t *testing.T) {
		f := newFixture(t, WithPool(pool), WithConfig(&Config{ReadBufferSize: 4096}))
		f.registerEcho(t)
		require.NoError(t, f.session.BeginRead())
		require.True(t, f.tr.deliver([]byte("hello")))

		before := pool.Stats().Puts
		f.tr.completeWrite()
		assert.Equal(t, before+1, pool.Stats().Puts)
	})

	t.Run("close with read in flight", func(t *testing.T) {
		f := newFixture(t, WithPool(pool), WithConfig(&Config{ReadBufferSize: 4096}))
		f.registerEcho(t)
		require.NoError(t, f.session.BeginRead())

		before := pool.Stats().Puts
		require.NoError(t, f.session.Close())
		assert.Equal(t, before, pool.Stats().Puts, "buffer is still owned by the pending read")

		assert.False(t, f.tr.deliverErr(io.EOF))
		assert.Equal(t, before+1, pool.Stats().Puts)
	})

	t.Run("decode fault", func(t *testing.T) {
		f := newFixture(t, WithPool(pool), WithConfig(&Config{ReadBufferSize: 4096}))
		p := f.counter.echoPipeline()
		p.Decoder = DecoderFunc(func(*buffer.Buffer, *Session) (*buffer.Buffer, error) {
			return nil, errors.New("bad")
		})
		f.register(t, p)
		require.NoError(t, f.session.BeginRead())

		before := pool.Stats().Puts
		assert.False(t, f.tr.deliver([]byte("x")))
		assert.Equal(t, before+1, pool.Stats().Puts)
	})
}

func TestSessionCloseDuringProcessing(t *testing.T) {
	f := newFixture(t)
	p := f.counter.echoPipeline()
	p.Processor = ProcessorFunc(func(s *Session) (bool, error) {
		require.NoError(t, s.Close())
		return true, nil
	})
	f.register(t, p)
	require.NoError(t, f.session.BeginRead())

	assert.False(t, f.tr.deliver([]byte("x")))
	_, writes, _ := f.tr.stats()
	assert.Zero(t, writes)
	assert.Equal(t, 1, f.reg.count())
}

func TestSessionTracing(t *testing.T) {
	f := newFixture(t)
	f.registerEcho(t)
	require.NoError(t, f.session.BeginRead())

	require.True(t, f.tr.deliver([]byte("abc")))
	assert.Empty(t, f.recorder.Ended(), "span ends after the write completes")
	f.tr.completeWrite()

	spans := f.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "session.cycle", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

// 多个会话在独立 goroutine 上完成 I/O，验证单会话内读写互斥与顺序
func TestSessionConcurrentCompletions(t *testing.T) {
	const sessions = 32
	const chunks = 20

	transports := make([]*autoTransport, sessions)
	fixtures := make([]*fixture, sessions)
	for i := range transports {
		at := &autoTransport{mockTransport: newMockTransport()}
		for j := 0; j < chunks; j++ {
			at.chunks = append(at.chunks, []byte{byte(i), byte(j)})
		}
		transports[i] = at
		fixtures[i] = newFixtureWith(t, at)
		fixtures[i].registerEcho(t)
	}
	for _, f := range fixtures {
		require.NoError(t, f.session.BeginRead())
	}

	require.Eventually(t, func() bool {
		for _, f := range fixtures {
			if !f.session.Closed() {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	for i, at := range transports {
		at.mu.Lock()
		assert.Equal(t, 1, at.maxReads, "session %d", i)
		assert.Equal(t, 1, at.maxWrites, "session %d", i)
		assert.Zero(t, at.readDuringWrite, "session %d", i)
		require.Len(t, at.written, chunks, "session %d", i)
		for j, w := range at.written {
			assert.Equal(t, []byte{byte(i), byte(j)}, w)
		}
		at.mu.Unlock()
		assert.Equal(t, 1, fixtures[i].reg.count())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_read", StateAwaitingRead.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.False(t, StateAwaitingRegistration.Registered())
	assert.True(t, StateAwaitingWrite.Registered())
	assert.False(t, StateClosed.Registered())
}

func TestReason(t *testing.T) {
	cases := map[string]error{
		"local":         nil,
		"end_of_stream": ErrEndOfStream,
		"decode":        fault(errors.New("bad header"), ErrDecode),
		"process":       fault(errors.New("handler"), ErrProcess),
		"encode":        fault(nil, ErrEncode),
		"transport":     fault(io.ErrUnexpectedEOF, ErrTransport),
		"other":         errors.New("unknown"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Reason(err))
	}
}
