package sentry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lk2023060901/aioserver/pkg/config"
)

// Client Sentry 客户端
type Client struct {
	hub    *sentry.Hub // 独立的 Hub，不影响全局
	config *Config
	closed atomic.Bool

	stats struct {
		eventsTotal    atomic.Uint64
		eventsCaptured atomic.Uint64
		eventsDropped  atomic.Uint64
	}
}

// Stats 统计信息
type Stats struct {
	EventsTotal    uint64 // 总事件数
	EventsCaptured uint64 // 成功捕获数
	EventsDropped  uint64 // 丢弃数
}

// New 创建 Sentry 客户端，未设置的字段使用默认值
func New(cfg *Config) (*Client, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("sentry: merge config: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	client, err := sentry.NewClient(merged.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("sentry: create client: %w", err)
	}
	hub := sentry.NewHub(client, sentry.NewScope())
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for key, value := range merged.Tags {
			scope.SetTag(key, value)
		}
	})

	return &Client{hub: hub, config: merged}, nil
}

// CaptureException 上报错误，已关闭时丢弃
func (c *Client) CaptureException(err error) *sentry.EventID {
	if c.closed.Load() {
		return nil
	}
	c.stats.eventsTotal.Add(1)

	id := c.hub.CaptureException(err)
	if id != nil && *id != "" {
		c.stats.eventsCaptured.Add(1)
	} else {
		c.stats.eventsDropped.Add(1)
	}
	return id
}

// WithScope 在临时作用域中执行 f
func (c *Client) WithScope(f func(scope *sentry.Scope)) {
	c.hub.WithScope(f)
}

// Reporter 按配置的关闭原因上报会话故障
func (c *Client) Reporter() *Reporter {
	return NewReporter(c, c.config.ReportReasons...)
}

// Hub 底层 Hub
func (c *Client) Hub() *sentry.Hub {
	return c.hub
}

// Flush 等待所有事件上报完成
func (c *Client) Flush(timeout time.Duration) bool {
	return c.hub.Flush(timeout)
}

// Close 刷新未发送的事件并关闭
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClientClosed
	}
	c.hub.Flush(c.config.ShutdownTimeout)
	return nil
}

// Stats 获取统计信息
func (c *Client) Stats() Stats {
	return Stats{
		EventsTotal:    c.stats.eventsTotal.Load(),
		EventsCaptured: c.stats.eventsCaptured.Load(),
		EventsDropped:  c.stats.eventsDropped.Load(),
	}
}

// IsClosed 是否已关闭
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
