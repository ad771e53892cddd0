package tcp

import (
	"fmt"
	"time"

	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/lk2023060901/aioserver/pkg/session"
)

// ServerConfig 服务端配置
type ServerConfig struct {
	// 监听地址，如 "0.0.0.0:9000"
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr" validate:"required"`

	// 网络类型，tcp/tcp4/tcp6
	Network string `mapstructure:"network" json:"network" yaml:"network" validate:"omitempty,oneof=tcp tcp4 tcp6"`

	// 是否启用多核
	Multicore bool `mapstructure:"multicore" json:"multicore" yaml:"multicore"`

	// 事件循环数量，0 表示使用 CPU 核心数
	NumEventLoop int `mapstructure:"num_event_loop" json:"num_event_loop" yaml:"num_event_loop" validate:"gte=0"`

	// 是否启用端口复用
	ReusePort bool `mapstructure:"reuse_port" json:"reuse_port" yaml:"reuse_port"`

	// 是否启用地址复用
	ReuseAddr bool `mapstructure:"reuse_addr" json:"reuse_addr" yaml:"reuse_addr"`

	// 内核 socket 缓冲区大小，0 使用系统默认
	SocketRecvBuffer int `mapstructure:"socket_recv_buffer" json:"socket_recv_buffer" yaml:"socket_recv_buffer" validate:"gte=0"`
	SocketSendBuffer int `mapstructure:"socket_send_buffer" json:"socket_send_buffer" yaml:"socket_send_buffer" validate:"gte=0"`

	// TCP KeepAlive 间隔
	TCPKeepAlive time.Duration `mapstructure:"tcp_keep_alive" json:"tcp_keep_alive" yaml:"tcp_keep_alive"`

	// 空闲超时，超过该时间无读写的连接会被关闭，0 表示不检测
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`

	// 最大连接数，0 表示不限制
	MaxConnections int `mapstructure:"max_connections" json:"max_connections" yaml:"max_connections" validate:"gte=0"`

	// 每秒接受的新连接数，0 表示不限制
	AcceptRate float64 `mapstructure:"accept_rate" json:"accept_rate" yaml:"accept_rate" validate:"gte=0"`
	AcceptBurst int     `mapstructure:"accept_burst" json:"accept_burst" yaml:"accept_burst" validate:"gte=0"`

	// 完成回调协程池大小，0 表示不限制
	WorkerPoolSize int `mapstructure:"worker_pool_size" json:"worker_pool_size" yaml:"worker_pool_size" validate:"gte=0"`

	// 连接建立后先写出的欢迎语
	Banner string `mapstructure:"banner" json:"banner" yaml:"banner"`

	// 启动等待时间
	StartTimeout time.Duration `mapstructure:"start_timeout" json:"start_timeout" yaml:"start_timeout"`

	// 停止等待时间
	StopTimeout time.Duration `mapstructure:"stop_timeout" json:"stop_timeout" yaml:"stop_timeout"`

	// 会话参数
	Session *session.Config `mapstructure:"session" json:"session" yaml:"session"`
}

// DefaultServerConfig 返回默认服务端配置
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:         "0.0.0.0:9000",
		Network:      "tcp",
		Multicore:    true,
		ReuseAddr:    true,
		TCPKeepAlive: 30 * time.Second,
		IdleTimeout:  0,
		AcceptBurst:  64,
		StartTimeout: 5 * time.Second,
		StopTimeout:  10 * time.Second,
		Session:      session.DefaultConfig(),
	}
}

// Validate 验证服务端配置
func (c *ServerConfig) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Session != nil {
		if err := c.Session.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// ProtoAddr gnet 使用的协议地址
func (c *ServerConfig) ProtoAddr() string {
	network := c.Network
	if network == "" {
		network = "tcp"
	}
	return fmt.Sprintf("%s://%s", network, c.Addr)
}

// ClientConfig 客户端配置
type ClientConfig struct {
	// 服务端地址，如 "127.0.0.1:9000"
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr"`

	// 网络类型，tcp/tcp4/tcp6
	Network string `mapstructure:"network" json:"network" yaml:"network" validate:"omitempty,oneof=tcp tcp4 tcp6"`

	// 连接超时
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout"`

	// 读超时，超时后会话关闭，0 表示不超时
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`

	// 写超时
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`

	// TCP KeepAlive 间隔
	TCPKeepAlive time.Duration `mapstructure:"tcp_keep_alive" json:"tcp_keep_alive" yaml:"tcp_keep_alive"`

	// 是否禁用 Nagle 算法（启用 TCP_NODELAY）
	TCPNoDelay bool `mapstructure:"tcp_no_delay" json:"tcp_no_delay" yaml:"tcp_no_delay"`

	// 完成回调协程池大小，0 表示不限制
	WorkerPoolSize int `mapstructure:"worker_pool_size" json:"worker_pool_size" yaml:"worker_pool_size" validate:"gte=0"`

	// 会话参数
	Session *session.Config `mapstructure:"session" json:"session" yaml:"session"`
}

// DefaultClientConfig 返回默认客户端配置
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Network:      "tcp",
		DialTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		TCPKeepAlive: 30 * time.Second,
		TCPNoDelay:   true,
		Session:      session.DefaultConfig(),
	}
}

// Validate 验证客户端配置
func (c *ClientConfig) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
