package system

import (
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const defaultInterval = 5 * time.Second

var _ prometheus.Collector = (*Collector)(nil)

// Stats 系统统计数据
type Stats struct {
	// 进程 CPU 使用率 (0-100 × 核数)
	CPUPercent float64 `json:"cpu_percent"`
	// 主机 CPU 使用率 (0-100)
	HostCPUPercent float64 `json:"host_cpu_percent"`
	// 进程 RSS 占主机内存的比例 (0-100)
	MemoryPercent float64 `json:"memory_percent"`
	// 进程 RSS 字节数
	MemoryBytes uint64 `json:"memory_bytes"`
	// 更新时间
	UpdatedAt time.Time `json:"updated_at"`
}

// Collector 定期采样进程与主机指标，并作为 prometheus.Collector 导出最近一次的结果。
type Collector struct {
	proc *process.Process

	mu      sync.RWMutex
	stats   Stats
	stopCh  chan struct{}
	done    chan struct{}
	running bool

	cpuDesc     *prometheus.Desc
	hostCPUDesc *prometheus.Desc
	memPctDesc  *prometheus.Desc
	rssDesc     *prometheus.Desc
}

// New 创建系统指标收集器，指标名以 namespace 为前缀
func New(namespace string) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "system", name), help, nil, nil)
	}
	return &Collector{
		proc:        proc,
		cpuDesc:     desc("process_cpu_percent", "Process CPU usage in percent."),
		hostCPUDesc: desc("host_cpu_percent", "Host CPU usage in percent."),
		memPctDesc:  desc("process_memory_percent", "Process RSS as a percentage of host memory."),
		rssDesc:     desc("process_memory_rss_bytes", "Process resident set size in bytes."),
	}, nil
}

// Start 立即采集一次，之后每 interval 采集一次
func (c *Collector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	stopCh, done := c.stopCh, c.done
	c.mu.Unlock()

	c.collect()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop 停止采集并等待采样协程退出
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.done
	c.mu.Unlock()

	<-done
}

// Close 实现 app.Closer
func (c *Collector) Close() error {
	c.Stop()
	return nil
}

// collect 执行一次采集，单项失败时保留零值
func (c *Collector) collect() {
	var stats Stats

	if pct, err := c.proc.CPUPercent(); err == nil {
		stats.CPUPercent = pct
	}
	// interval 为 0 时与上一次调用比较，不阻塞
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		stats.HostCPUPercent = pcts[0]
	}
	if info, err := c.proc.MemoryInfo(); err == nil {
		stats.MemoryBytes = info.RSS
		if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
			stats.MemoryPercent = float64(info.RSS) / float64(vm.Total) * 100
		}
	}
	stats.UpdatedAt = time.Now()

	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// GetStats 最近一次采集的数据
func (c *Collector) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpuDesc
	ch <- c.hostCPUDesc
	ch <- c.memPctDesc
	ch <- c.rssDesc
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.GetStats()
	ch <- prometheus.MustNewConstMetric(c.cpuDesc, prometheus.GaugeValue, s.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.hostCPUDesc, prometheus.GaugeValue, s.HostCPUPercent)
	ch <- prometheus.MustNewConstMetric(c.memPctDesc, prometheus.GaugeValue, s.MemoryPercent)
	ch <- prometheus.MustNewConstMetric(c.rssDesc, prometheus.GaugeValue, float64(s.MemoryBytes))
}
