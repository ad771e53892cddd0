package main

import (
	"fmt"

	"github.com/lk2023060901/aioserver/app/echo/internal/admin"
	"github.com/lk2023060901/aioserver/app/echo/internal/handler"
	"github.com/lk2023060901/aioserver/pkg/app"
	"github.com/lk2023060901/aioserver/pkg/codec"
	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/idgen"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/metrics/system"
	"github.com/lk2023060901/aioserver/pkg/otel"
	"github.com/lk2023060901/aioserver/pkg/prometheus"
	"github.com/lk2023060901/aioserver/pkg/registry/etcd"
	"github.com/lk2023060901/aioserver/pkg/sentry"
	"github.com/lk2023060901/aioserver/pkg/session"
	"github.com/lk2023060901/aioserver/pkg/tcp"
	"github.com/lk2023060901/aioserver/pkg/web"
)

const (
	framingFrame = "frame"
	framingRaw   = "raw"

	sessionIDsUUID      = "uuid"
	sessionIDsSonyflake = "sonyflake"
)

func provideAppOptions(cfg *Config, l logger.Logger) []app.Option {
	return []app.Option{
		app.WithName(app.AppName),
		app.WithLogger(l),
		app.WithLogConfig(&cfg.Log),
		app.WithNamedLoggers(cfg.Loggers),
	}
}

// providePipelineFactory 按 framing 选择编解码器
func providePipelineFactory(cfg *Config, h *handler.EchoHandler) (session.PipelineFactory, error) {
	switch cfg.Framing {
	case "", framingFrame:
		fc, err := codec.NewFrameCodec(&cfg.Frame)
		if err != nil {
			return nil, err
		}
		return h.Pipeline(fc, fc), nil
	case framingRaw:
		return h.Pipeline(codec.Passthrough{}, codec.Passthrough{}), nil
	default:
		return nil, fmt.Errorf("unknown framing %q", cfg.Framing)
	}
}

// provideManager 按 session_ids 选择标识生成方式
func provideManager(cfg *Config) (*session.Manager, error) {
	switch cfg.SessionIDs {
	case "", sessionIDsUUID:
		return session.NewManager(), nil
	case sessionIDsSonyflake:
		g, err := idgen.NewSonyflake(cfg.MachineID)
		if err != nil {
			return nil, err
		}
		return session.NewManager(session.WithIDGenerator(idgen.SessionIDs(g))), nil
	default:
		return nil, fmt.Errorf("unknown session_ids %q", cfg.SessionIDs)
	}
}

// providePrometheus 未设置的字段使用默认配置
func providePrometheus(cfg *Config, l logger.Logger) (*prometheus.Client, error) {
	merged, err := config.MergeConfig(prometheus.DefaultConfig(), &cfg.Prometheus)
	if err != nil {
		return nil, err
	}
	return prometheus.New(merged, prometheus.WithLogger(l))
}

// provideSystemCollector 未启用时返回 nil
func provideSystemCollector(cfg *Config, pc *prometheus.Client) (*system.Collector, error) {
	if !cfg.SystemMetrics.Enabled {
		return nil, nil
	}
	c, err := system.New(pc.Config().Namespace)
	if err != nil {
		return nil, err
	}
	if err := pc.RegisterCollector(c); err != nil {
		return nil, err
	}
	c.Start(cfg.SystemMetrics.Interval)
	return c, nil
}

func provideTracing(cfg *Config, l logger.Logger) (*otel.TracerProvider, error) {
	return otel.New(&cfg.Tracing, otel.WithLogger(l))
}

// provideSentry 未配置 dsn 时返回 nil
func provideSentry(cfg *Config) (*sentry.Client, error) {
	if cfg.Sentry.DSN == "" {
		return nil, nil
	}
	return sentry.New(&cfg.Sentry)
}

func provideAcceptor(
	cfg *Config,
	l logger.Logger,
	factory session.PipelineFactory,
	mgr *session.Manager,
	h *handler.EchoHandler,
	m *prometheus.SessionMetrics,
	tp *otel.TracerProvider,
	sc *sentry.Client,
) (*tcp.Acceptor, error) {
	opts := []tcp.Option{
		tcp.WithLogger(l),
		tcp.WithManager(mgr),
		tcp.WithObserver(h),
		tcp.WithObserver(m),
		tcp.WithSessionOptions(session.WithTracer(tp.Tracer("aioserver/session"))),
	}
	if sc != nil {
		opts = append(opts, tcp.WithObserver(sc.Reporter()))
	}
	return tcp.NewAcceptor(&cfg.TCP, factory, opts...)
}

// provideAdmin 未启用时返回 nil
func provideAdmin(
	cfg *Config,
	l logger.Logger,
	mgr *session.Manager,
	h *handler.EchoHandler,
	pc *prometheus.Client,
) (*web.Server, error) {
	if !cfg.Admin.Enabled {
		return nil, nil
	}
	srv, err := web.NewServer(&cfg.Admin, l)
	if err != nil {
		return nil, err
	}
	admin.New(mgr, h, pc.Handler(), l).Register(srv.Router())
	return srv, nil
}

func provideComponents(
	cfg *Config,
	l logger.Logger,
	a *tcp.Acceptor,
	adm *web.Server,
	reg *etcd.Registrar,
	pc *prometheus.Client,
	sys *system.Collector,
	tp *otel.TracerProvider,
	sc *sentry.Client,
) app.Components {
	comps := app.Components{
		Servers: []app.Server{a},
		Closers: []app.Closer{pc, tp},
	}
	if adm != nil {
		comps.Servers = append(comps.Servers, adm)
	}
	if reg != nil {
		comps.Servers = append(comps.Servers, &serviceRegistrar{
			registrar: reg,
			info:      serviceInfo(cfg),
			logger:    l,
		})
		comps.Closers = append(comps.Closers, reg)
	}
	if sys != nil {
		comps.Closers = append(comps.Closers, sys)
	}
	if sc != nil {
		comps.Closers = append(comps.Closers, sc)
	}
	return comps
}
