package session

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(newMockTransport(), WithLogger(logger.NewNoop()))
	require.NoError(t, err)
	return s
}

func TestManagerRegister(t *testing.T) {
	m := NewManager()
	s := newTestSession(t)

	id, err := m.Register(s)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, s.ID())
	assert.Equal(t, StateAwaitingRegistration, s.State())

	got, ok := m.Get(id)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Count())

	_, err = m.Register(s)
	assert.ErrorIs(t, err, ErrIdentifierAssigned)
	assert.Equal(t, 1, m.Count())
}

func TestManagerRemovedOnClose(t *testing.T) {
	m := NewManager()
	s := newTestSession(t)
	id, err := m.Register(s)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, ok := m.Get(id)
	assert.False(t, ok)
	assert.Zero(t, m.Count())
}

func TestManagerCustomIDGenerator(t *testing.T) {
	var n int
	m := NewManager(WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("conn-%d", n)
	}))

	id, err := m.Register(newTestSession(t))
	require.NoError(t, err)
	assert.Equal(t, "conn-1", id)
}

func TestManagerRangeAndCloseAll(t *testing.T) {
	m := NewManager()
	sessions := make([]*Session, 5)
	for i := range sessions {
		sessions[i] = newTestSession(t)
		_, err := m.Register(sessions[i])
		require.NoError(t, err)
	}

	visited := 0
	m.Range(func(*Session) bool {
		visited++
		return visited < 2
	})
	assert.Equal(t, 2, visited)

	m.CloseAll()
	assert.Zero(t, m.Count())
	for _, s := range sessions {
		assert.True(t, s.Closed())
	}
}

func TestManagerDoesNotKeepSessionsAlive(t *testing.T) {
	m := NewManager()
	id := registerTransient(t, m)

	require.Eventually(t, func() bool {
		runtime.GC()
		_, ok := m.Get(id)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)

	assert.Zero(t, m.Count())
	assert.Equal(t, 1, m.Prune())
	assert.Zero(t, m.Prune())
}

func registerTransient(t *testing.T, m *Manager) string {
	s := newTestSession(t)
	id, err := m.Register(s)
	require.NoError(t, err)
	return id
}

func TestManagerConcurrentAccess(t *testing.T) {
	m := NewManager()
	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s, err := New(newMockTransport(), WithLogger(logger.NewNoop()))
				if !assert.NoError(t, err) {
					return
				}
				id, err := m.Register(s)
				if !assert.NoError(t, err) {
					return
				}
				got, ok := m.Get(id)
				assert.True(t, ok)
				assert.Same(t, s, got)
				m.Count()
				if i%2 == 0 {
					_ = s.Close()
				}
				runtime.KeepAlive(s)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < perWorker; i++ {
			m.Range(func(*Session) bool { return true })
		}
	}()
	wg.Wait()

	assert.LessOrEqual(t, m.Count(), workers*perWorker/2)
}
