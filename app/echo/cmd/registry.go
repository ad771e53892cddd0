package main

import (
	"context"
	"time"

	"github.com/lk2023060901/aioserver/pkg/app"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/registry"
	"github.com/lk2023060901/aioserver/pkg/registry/etcd"
)

const registerTimeout = 5 * time.Second

// serviceRegistrar 服务注册启动器，实现 app.Server 接口。
// 排在 Acceptor 之后启动，监听成功后才对外公布地址。
type serviceRegistrar struct {
	registrar registry.Registrar
	info      *registry.ServiceInfo
	logger    logger.Logger
}

func (s *serviceRegistrar) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
	defer cancel()
	if err := s.registrar.Register(ctx, s.info); err != nil {
		s.logger.Error("failed to register service", "error", err)
		return err
	}
	s.logger.Info("service registered to etcd", "name", s.info.ServiceName, "addr", s.info.Address)
	return nil
}

func (s *serviceRegistrar) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
	defer cancel()
	return s.registrar.Deregister(ctx)
}

// provideRegistrar 未启用时返回 nil
func provideRegistrar(cfg *Config, l logger.Logger) (*etcd.Registrar, error) {
	if !cfg.Registry.Enabled {
		return nil, nil
	}
	return etcd.NewRegistrar(&cfg.Registry, l)
}

// serviceInfo 注册到 etcd 的实例信息
func serviceInfo(cfg *Config) *registry.ServiceInfo {
	name := cfg.Registry.ServiceName
	if name == "" {
		name = app.AppName
	}
	addr := cfg.Registry.ServiceAddr
	if addr == "" {
		addr = cfg.TCP.Addr
	}
	framing := cfg.Framing
	if framing == "" {
		framing = framingFrame
	}
	return &registry.ServiceInfo{
		ServiceName: name,
		Address:     addr,
		Metadata: map[string]string{
			"version": app.Version,
			"framing": framing,
		},
	}
}
