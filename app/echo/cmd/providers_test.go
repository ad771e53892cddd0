package main

import (
	"testing"
	"time"

	"github.com/lk2023060901/aioserver/app/echo/internal/handler"
	"github.com/lk2023060901/aioserver/pkg/app"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvidePipelineFactory(t *testing.T) {
	h := handler.NewEchoHandler(logger.NewNoop())

	for _, framing := range []string{"", "frame", "raw"} {
		f, err := providePipelineFactory(&Config{Framing: framing}, h)
		require.NoError(t, err, framing)
		assert.NotNil(t, f)
	}

	_, err := providePipelineFactory(&Config{Framing: "lines"}, h)
	assert.Error(t, err)
}

func TestProvideManager(t *testing.T) {
	m, err := provideManager(&Config{})
	require.NoError(t, err)
	assert.NotNil(t, m)

	m, err = provideManager(&Config{SessionIDs: "sonyflake", MachineID: 3})
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = provideManager(&Config{SessionIDs: "serial"})
	assert.Error(t, err)
}

func TestInitApp(t *testing.T) {
	cfg := &Config{
		TCP:     tcp.ServerConfig{Addr: "127.0.0.1:0"},
		Framing: "raw",
	}
	application, cleanup, err := InitApp(cfg, logger.NewNoop())
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, application)

	reg, err := provideRegistrar(cfg, logger.NewNoop())
	require.NoError(t, err)
	assert.Nil(t, reg)

	sc, err := provideSentry(cfg)
	require.NoError(t, err)
	assert.Nil(t, sc)

	tp, err := provideTracing(cfg, logger.NewNoop())
	require.NoError(t, err)
	assert.False(t, tp.Enabled())

	comps := provideComponents(cfg, logger.NewNoop(), nil, nil, nil, nil, nil, tp, nil)
	assert.Len(t, comps.Servers, 1)
	assert.Len(t, comps.Closers, 2)
}

func TestProvideSystemCollector(t *testing.T) {
	cfg := &Config{}
	pc, err := providePrometheus(cfg, logger.NewNoop())
	require.NoError(t, err)
	defer pc.Close()

	c, err := provideSystemCollector(cfg, pc)
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.SystemMetrics = SystemMetricsConfig{Enabled: true, Interval: time.Hour}
	c, err = provideSystemCollector(cfg, pc)
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close()

	families, err := pc.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestServiceInfo(t *testing.T) {
	info := serviceInfo(&Config{TCP: tcp.ServerConfig{Addr: "0.0.0.0:9000"}})
	assert.Equal(t, app.AppName, info.ServiceName)
	assert.Equal(t, "0.0.0.0:9000", info.Address)
	assert.Equal(t, "frame", info.Metadata["framing"])

	cfg := &Config{Framing: "raw"}
	cfg.Registry.ServiceName = "echo"
	cfg.Registry.ServiceAddr = "10.0.0.5:9000"
	info = serviceInfo(cfg)
	assert.Equal(t, "echo", info.ServiceName)
	assert.Equal(t, "10.0.0.5:9000", info.Address)
	assert.Equal(t, "raw", info.Metadata["framing"])
}
