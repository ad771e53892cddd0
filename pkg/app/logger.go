package app

import (
	"sync"

	"github.com/lk2023060901/aioserver/pkg/logger"
)

// namedLoggers 按名称管理由配置创建的日志，如 access、session
type namedLoggers struct {
	mu      sync.RWMutex
	loggers map[string]logger.Logger
}

func newNamedLoggers() *namedLoggers {
	return &namedLoggers{loggers: make(map[string]logger.Logger)}
}

func (n *namedLoggers) get(name string) logger.Logger {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.loggers[name]
}

func (n *namedLoggers) init(configs map[string]*logger.Config) error {
	built := make(map[string]logger.Logger, len(configs))
	for name, cfg := range configs {
		l, err := logger.New(cfg)
		if err != nil {
			return err
		}
		built[name] = l.Named(name)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for name, l := range built {
		n.loggers[name] = l
	}
	return nil
}

func (n *namedLoggers) sync() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, l := range n.loggers {
		_ = l.Sync()
	}
}
