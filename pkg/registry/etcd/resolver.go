package etcd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/registry"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var _ registry.Resolver = (*Resolver)(nil)

// Resolver 基于 etcd 的服务发现器
type Resolver struct {
	client *clientv3.Client
	config *Config
	logger logger.Logger
}

// NewResolver 创建 etcd 服务发现器
func NewResolver(cfg *Config, l logger.Logger) (*Resolver, error) {
	client, merged, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Default()
	}
	return &Resolver{
		client: client,
		config: merged,
		logger: l.Named("resolver.etcd"),
	}, nil
}

// Resolve 解析服务地址列表，没有实例时返回空列表
func (r *Resolver) Resolve(ctx context.Context, serviceName string) ([]*registry.ServiceInfo, error) {
	resp, err := r.client.Get(ctx, r.config.servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("etcd: failed to get services: %w", err)
	}

	services := make([]*registry.ServiceInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		info, err := decodeServiceInfo(kv.Value)
		if err != nil {
			r.logger.Warn("failed to unmarshal service info", "key", string(kv.Key), "error", err)
			continue
		}
		services = append(services, info)
	}
	r.logger.Debug("services resolved", "service", serviceName, "count", len(services))
	return services, nil
}

// Watch 先发送当前列表，之后每次变化发送最新列表
func (r *Resolver) Watch(ctx context.Context, serviceName string) (<-chan []*registry.ServiceInfo, error) {
	initial, err := r.Resolve(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	out := make(chan []*registry.ServiceInfo, 1)
	out <- initial
	wch := r.client.Watch(ctx, r.config.servicePrefix(serviceName), clientv3.WithPrefix())

	go func() {
		defer close(out)
		for resp := range wch {
			if err := resp.Err(); err != nil {
				r.logger.Error("watch failed", "service", serviceName, "error", err)
				return
			}
			services, err := r.Resolve(ctx, serviceName)
			if err != nil {
				r.logger.Error("failed to resolve services on watch event", "error", err)
				continue
			}
			select {
			case out <- services:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close 关闭客户端
func (r *Resolver) Close() error {
	return r.client.Close()
}

func decodeServiceInfo(value []byte) (*registry.ServiceInfo, error) {
	var info registry.ServiceInfo
	if err := json.Unmarshal(value, &info); err != nil {
		return nil, err
	}
	if info.Address == "" {
		return nil, fmt.Errorf("empty address")
	}
	return &info, nil
}
