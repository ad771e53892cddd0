package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lk2023060901/aioserver/pkg/config"
	"github.com/spf13/pflag"
)

// EnvConfigPath 指定配置文件路径的环境变量
const EnvConfigPath = "AIOSERVER_CONFIG"

// LoadConfig 从命令行参数加载配置到 target。
// 优先级：--log.path 显式参数 > 环境变量 AIOSERVER_* > 配置文件 > 默认值；
// 配置文件路径：--config/-c > AIOSERVER_CONFIG > 可执行文件目录下的 config.yaml。
func LoadConfig(target any, opts ...config.Option) (string, error) {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	return LoadConfigFrom(fs, os.Args[1:], target, opts...)
}

// LoadConfigFrom 与 LoadConfig 相同，使用给定的 FlagSet 和参数
func LoadConfigFrom(fs *pflag.FlagSet, args []string, target any, opts ...config.Option) (string, error) {
	execDir, err := ExecDir()
	if err != nil {
		return "", fmt.Errorf("app: failed to get executable directory: %w", err)
	}

	configPath := fs.StringP("config", "c", filepath.Join(execDir, "config.yaml"), "path to config file")
	logPath := fs.String("log.path", "", "output path for logs, overrides log.output_path")
	if err := fs.Parse(args); err != nil {
		return "", err
	}

	path := *configPath
	if !fs.Changed("config") {
		if env := os.Getenv(EnvConfigPath); env != "" {
			path = env
		}
	}

	loader := config.NewLoader(opts...)
	if err := loader.LoadFile(path); err != nil {
		return "", err
	}
	if fs.Changed("log.path") {
		loader.Set("log.output_path", *logPath)
		loader.Set("log.enable_file", true)
	}
	if err := loader.Unmarshal(target); err != nil {
		return "", err
	}

	if out := loader.GetString("log.output_path"); out != "" {
		_ = os.MkdirAll(filepath.Dir(out), 0o755)
	}
	return path, nil
}

// ExecDir 可执行文件所在目录（解析符号链接）
func ExecDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return filepath.Dir(execPath), nil
}
