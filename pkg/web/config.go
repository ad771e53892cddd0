package web

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/aioserver/pkg/config"
)

// Config 管理端 HTTP 服务配置
type Config struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr" yaml:"addr" validate:"required_if=Enabled true"`
	// gin 模式：debug, release, test
	Mode         string        `mapstructure:"mode" json:"mode" yaml:"mode" validate:"omitempty,oneof=debug release test"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout" json:"stop_timeout" yaml:"stop_timeout"`
	// 允许跨域的来源，为空时不挂载 CORS 中间件
	AllowOrigins []string `mapstructure:"allow_origins" json:"allow_origins" yaml:"allow_origins"`
	// 链路追踪中的服务名
	ServiceName string `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:9200",
		Mode:         gin.ReleaseMode,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		StopTimeout:  5 * time.Second,
		ServiceName:  "aioserver-admin",
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := config.Validate(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
