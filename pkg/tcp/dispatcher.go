package tcp

import (
	"fmt"
	"time"

	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

// Dispatcher 在协程池中执行完成回调，池满时退化为独立协程
type Dispatcher struct {
	pool   *ants.Pool
	logger logger.Logger
}

// antsLogger 把 ants 的日志转到 logger
type antsLogger struct {
	l logger.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...))
}

// NewDispatcher 创建调度器，size <= 0 表示不限制协程数
func NewDispatcher(size int, l logger.Logger) (*Dispatcher, error) {
	if l == nil {
		l = logger.Default()
	}
	d := &Dispatcher{logger: l.Named("dispatcher")}

	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(30*time.Second),
		ants.WithLogger(antsLogger{l: d.logger}),
		ants.WithPanicHandler(func(r any) {
			d.logger.Error("callback panicked", "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("tcp: create worker pool: %w", err)
	}
	d.pool = pool
	return d, nil
}

// Go 执行 fn，nil 调度器直接启动协程
func (d *Dispatcher) Go(fn func()) {
	if d == nil || d.pool == nil {
		go fn()
		return
	}
	if err := d.pool.Submit(fn); err != nil {
		go fn()
	}
}

// Running 正在执行的任务数
func (d *Dispatcher) Running() int {
	if d == nil || d.pool == nil {
		return 0
	}
	return d.pool.Running()
}

// Release 等待在途任务结束后释放协程池
func (d *Dispatcher) Release(timeout time.Duration) error {
	if d == nil || d.pool == nil {
		return nil
	}
	if timeout <= 0 {
		d.pool.Release()
		return nil
	}
	return d.pool.ReleaseTimeout(timeout)
}
