package main

import (
	"time"

	"github.com/lk2023060901/aioserver/pkg/app"
	"github.com/lk2023060901/aioserver/pkg/codec"
	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/otel"
	"github.com/lk2023060901/aioserver/pkg/prometheus"
	"github.com/lk2023060901/aioserver/pkg/registry/etcd"
	"github.com/lk2023060901/aioserver/pkg/sentry"
	"github.com/lk2023060901/aioserver/pkg/tcp"
	"github.com/lk2023060901/aioserver/pkg/web"
)

// Config 定义 Echo 服务的完整配置结构
type Config struct {
	Log     logger.Config             `mapstructure:"log"`
	Loggers map[string]*logger.Config `mapstructure:"loggers"`

	// TCP Server 配置，会话配置在 tcp.session 下
	TCP tcp.ServerConfig `mapstructure:"tcp"`

	// 会话标识生成：uuid 或 sonyflake
	SessionIDs string `mapstructure:"session_ids"`

	// sonyflake 机器 ID，同一集群内的进程必须不同
	MachineID uint16 `mapstructure:"machine_id"`

	// 分帧方式：frame 或 raw
	Framing string `mapstructure:"framing"`

	// 帧编解码配置，framing 为 frame 时生效
	Frame codec.FrameConfig `mapstructure:"frame"`

	// Prometheus 配置
	Prometheus prometheus.Config `mapstructure:"prometheus"`

	// 服务注册配置
	Registry etcd.Config `mapstructure:"registry"`

	// 管理端 HTTP 服务
	Admin web.Config `mapstructure:"admin"`

	// 进程与主机指标
	SystemMetrics SystemMetricsConfig `mapstructure:"system_metrics"`

	// 链路追踪配置
	Tracing otel.Config `mapstructure:"tracing"`

	// Sentry 配置，dsn 为空时不上报
	Sentry sentry.Config `mapstructure:"sentry"`
}

// SystemMetricsConfig 系统指标采集配置
type SystemMetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

func main() {
	var cfg Config

	// 1. 加载配置
	if _, err := app.LoadConfig(&cfg); err != nil {
		panic(err)
	}

	// 2. 初始化主日志
	l, err := logger.New(&cfg.Log)
	if err != nil {
		panic(err)
	}

	// 3. 通过 Wire 初始化应用
	application, cleanup, err := InitApp(&cfg, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		return
	}
	defer cleanup()

	// 4. 运行服务
	if err := application.Run(); err != nil {
		l.Error("application exited with error", "error", err)
	}
}
