package tcp

import (
	"context"
	"testing"
	"time"

	"github.com/lk2023060901/aioserver/pkg/balancer"
	"github.com/lk2023060901/aioserver/pkg/codec"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver map[string][]*registry.ServiceInfo

func (r staticResolver) Resolve(_ context.Context, name string) ([]*registry.ServiceInfo, error) {
	return r[name], nil
}

func (r staticResolver) Watch(ctx context.Context, name string) (<-chan []*registry.ServiceInfo, error) {
	ch := make(chan []*registry.ServiceInfo, 1)
	ch <- r[name]
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestServiceDialerSkipsDeadInstances(t *testing.T) {
	factory := echoFactory(codec.Passthrough{}, codec.Passthrough{})
	a := startAcceptor(t, &ServerConfig{}, factory)

	resolver := staticResolver{"echo": {
		{ServiceName: "echo", Address: freeAddr(t)},
		{ServiceName: "echo", Address: a.Addr()},
	}}
	c, err := NewConnector(&ClientConfig{DialTimeout: time.Second}, factory, WithLogger(logger.NewNoop()))
	require.NoError(t, err)
	defer c.Close()

	d := NewServiceDialer(c, resolver, "echo", nil)
	for range 3 {
		s, err := d.Dial(context.Background(), "")
		require.NoError(t, err)
		addr, err := s.RemoteAddr()
		require.NoError(t, err)
		assert.Equal(t, a.Addr(), addr)
		require.NoError(t, s.Close())
	}
}

func TestServiceDialerNoInstance(t *testing.T) {
	factory := echoFactory(codec.Passthrough{}, codec.Passthrough{})
	c, err := NewConnector(&ClientConfig{DialTimeout: time.Second}, factory, WithLogger(logger.NewNoop()))
	require.NoError(t, err)
	defer c.Close()

	d := NewServiceDialer(c, staticResolver{}, "echo", balancer.New(balancer.RandomName))
	_, err = d.Dial(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoInstance)

	dead := staticResolver{"echo": {{ServiceName: "echo", Address: freeAddr(t)}}}
	d = NewServiceDialer(c, dead, "echo", nil)
	_, err = d.Dial(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoInstance)
	assert.Zero(t, c.Manager().Count())
}

func TestServiceDialerConsistentHash(t *testing.T) {
	factory := echoFactory(codec.Passthrough{}, codec.Passthrough{})
	a := startAcceptor(t, &ServerConfig{}, factory)
	b := startAcceptor(t, &ServerConfig{}, factory)

	resolver := staticResolver{"echo": {
		{ServiceName: "echo", Address: a.Addr()},
		{ServiceName: "echo", Address: b.Addr()},
	}}
	c, err := NewConnector(&ClientConfig{}, factory, WithLogger(logger.NewNoop()))
	require.NoError(t, err)
	defer c.Close()

	d := NewServiceDialer(c, resolver, "echo", balancer.New(balancer.ConsistentHashName))
	first, err := d.Dial(context.Background(), "player-42")
	require.NoError(t, err)
	want, _ := first.RemoteAddr()
	for range 3 {
		s, err := d.Dial(context.Background(), "player-42")
		require.NoError(t, err)
		got, _ := s.RemoteAddr()
		assert.Equal(t, want, got)
	}
}
