package etcd

import (
	"fmt"
	"strings"
	"time"

	"github.com/lk2023060901/aioserver/pkg/config"
)

// Config etcd 服务注册配置
type Config struct {
	// Enabled 是否注册到 etcd
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	// Endpoints etcd 集群地址
	Endpoints []string `mapstructure:"endpoints" json:"endpoints" yaml:"endpoints" validate:"required,min=1"`
	// DialTimeout 连接超时
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout" validate:"gt=0"`
	// TTL 租约过期时间，至少 1s
	TTL time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl" validate:"gte=1s"`
	// Namespace 命名空间前缀（如 /services）
	Namespace string `mapstructure:"namespace" json:"namespace" yaml:"namespace" validate:"required,startswith=/"`
	// ServiceName 服务名称（用于服务注册）
	ServiceName string `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	// ServiceAddr 对外公布的地址，为空时使用监听地址
	ServiceAddr string `mapstructure:"service_addr" json:"service_addr" yaml:"service_addr"`
	// Username/Password etcd 认证
	Username string `mapstructure:"username" json:"username" yaml:"username"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		TTL:         10 * time.Second,
		Namespace:   "/services",
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// servicePrefix 某服务所有实例的 key 前缀
func (c *Config) servicePrefix(serviceName string) string {
	return fmt.Sprintf("%s/%s/", strings.TrimRight(c.Namespace, "/"), serviceName)
}

// serviceKey 单个实例的 key
func (c *Config) serviceKey(serviceName, address string) string {
	return c.servicePrefix(serviceName) + address
}
