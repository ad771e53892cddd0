// Package config 提供配置加载、默认值合并与校验。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix 环境变量前缀，AIOSERVER_TCP_ADDR 对应 tcp.addr
const DefaultEnvPrefix = "AIOSERVER"

// Loader 基于 viper 的配置加载器
type Loader struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// Option 加载器选项
type Option func(*Loader)

// WithEnvPrefix 设置环境变量前缀，空字符串表示不绑定环境变量
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		if prefix == "" {
			return
		}
		l.v.SetEnvPrefix(prefix)
		l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		l.v.AutomaticEnv()
	}
}

// WithDefaults 设置最低优先级的默认值
func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) {
		for k, v := range defaults {
			l.v.SetDefault(k, v)
		}
	}
}

// WithViper 使用外部 viper 实例
func WithViper(v *viper.Viper) Option {
	return func(l *Loader) {
		l.v = v
	}
}

// NewLoader 创建加载器，默认绑定 AIOSERVER_ 环境变量
func NewLoader(opts ...Option) *Loader {
	l := &Loader{v: viper.New()}
	WithEnvPrefix(DefaultEnvPrefix)(l)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile 读取配置文件，格式由扩展名决定（yaml/json/toml）
func (l *Loader) LoadFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return nil
}

// Set 以最高优先级覆盖某个 key
func (l *Loader) Set(key string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.v.Set(key, value)
}

// Unmarshal 解析全部配置
func (l *Loader) Unmarshal(target any) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.v.Unmarshal(target, decodeHooks()); err != nil {
		return fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	return nil
}

// UnmarshalKey 解析指定路径，例如 "tcp" 或 "session.read_buffer_size"
func (l *Loader) UnmarshalKey(key string, target any) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.v.UnmarshalKey(key, target, decodeHooks()); err != nil {
		return fmt.Errorf("config: failed to unmarshal key %s: %w", key, err)
	}
	return nil
}

// GetString 获取字符串配置
func (l *Loader) GetString(key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.v.GetString(key)
}

// Watch 监听配置文件变化，回调在 viper 的监听协程中执行
func (l *Loader) Watch(callback func(e fsnotify.Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
			callback(e)
		}
	})
	l.v.WatchConfig()
}

func decodeHooks() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
}
