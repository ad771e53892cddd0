//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/lk2023060901/aioserver/app/echo/internal/handler"
	"github.com/lk2023060901/aioserver/pkg/app"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/prometheus"
)

func InitApp(cfg *Config, l logger.Logger) (app.Application, func(), error) {
	panic(wire.Build(
		// 1. 基础框架 (BaseApp)
		provideAppOptions,
		app.ProviderSet,

		// 2. 业务 Handler 与流水线
		handler.NewEchoHandler,
		providePipelineFactory,
		provideManager,

		// 3. Prometheus 客户端与会话指标
		providePrometheus,
		prometheus.NewSessionMetrics,
		provideSystemCollector,

		// 4. 链路追踪
		provideTracing,

		// 5. Sentry
		provideSentry,

		// 6. TCP Acceptor
		provideAcceptor,

		// 7. 管理端
		provideAdmin,

		// 8. 服务注册（etcd）
		provideRegistrar,

		// 9. 组装
		provideComponents,
	))
}
