package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// register 以 name 去重注册指标
func register[T prometheus.Collector](c *Client, name string, metric T) (T, error) {
	var zero T
	if c.IsClosed() {
		return zero, ErrClientClosed
	}
	if _, loaded := c.metrics.LoadOrStore(name, metric); loaded {
		return zero, ErrMetricExists
	}
	if err := c.registry.Register(metric); err != nil {
		c.metrics.Delete(name)
		return zero, err
	}
	return metric, nil
}

// NewCounter 创建并注册 Counter
func (c *Client) NewCounter(name, help string, labels []string) (*prometheus.CounterVec, error) {
	return register(c, name, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      name,
		Help:      help,
	}, labels))
}

// NewGauge 创建并注册 Gauge
func (c *Client) NewGauge(name, help string, labels []string) (*prometheus.GaugeVec, error) {
	return register(c, name, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      name,
		Help:      help,
	}, labels))
}

// NewHistogram 创建并注册 Histogram，buckets 为 nil 时使用默认分桶
func (c *Client) NewHistogram(name, help string, labels []string, buckets []float64) (*prometheus.HistogramVec, error) {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return register(c, name, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.config.Namespace,
		Subsystem: c.config.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels))
}

// Get 获取已注册的指标
func (c *Client) Get(name string) (prometheus.Collector, bool) {
	v, ok := c.metrics.Load(name)
	if !ok {
		return nil, false
	}
	return v.(prometheus.Collector), true
}

// RegisterCollector 注册自定义采集器
func (c *Client) RegisterCollector(collector prometheus.Collector) error {
	if c.IsClosed() {
		return ErrClientClosed
	}
	return c.registry.Register(collector)
}
