package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/aioserver/pkg/logger"
	"github.com/lk2023060901/aioserver/pkg/registry"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const reRegisterInterval = time.Second

var _ registry.Registrar = (*Registrar)(nil)

// Registrar 基于 etcd 租约的服务注册器，租约丢失后自动重新注册
type Registrar struct {
	client *clientv3.Client
	config *Config
	logger logger.Logger

	mu      sync.Mutex
	info    *registry.ServiceInfo
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistrar 创建 etcd 服务注册器
func NewRegistrar(cfg *Config, l logger.Logger) (*Registrar, error) {
	client, merged, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Default()
	}
	return &Registrar{
		client: client,
		config: merged,
		logger: l.Named("registry.etcd"),
	}, nil
}

// Register 注册服务并保持租约
func (r *Registrar) Register(ctx context.Context, info *registry.ServiceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info != nil {
		return ErrRegistered
	}

	leaseID, err := r.put(ctx, info)
	if err != nil {
		return err
	}
	r.info, r.leaseID = info, leaseID

	kctx, cancel := context.WithCancel(context.Background())
	r.cancel, r.done = cancel, make(chan struct{})
	go r.keepAlive(kctx, r.done)

	r.logger.Info("service registered",
		"service", info.ServiceName,
		"address", info.Address,
		"lease_id", int64(leaseID),
	)
	return nil
}

// Deregister 停止续约并删除注册信息
func (r *Registrar) Deregister(ctx context.Context) error {
	r.mu.Lock()
	info, leaseID, cancel, done := r.info, r.leaseID, r.cancel, r.done
	r.info, r.cancel, r.done = nil, nil, nil
	r.mu.Unlock()
	if info == nil {
		return nil
	}

	cancel()
	<-done

	key := r.config.serviceKey(info.ServiceName, info.Address)
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("etcd: failed to deregister service: %w", err)
	}
	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		r.logger.Warn("failed to revoke lease", "error", err)
	}
	r.logger.Info("service deregistered", "service", info.ServiceName, "address", info.Address)
	return nil
}

// Close 取消注册并关闭客户端
func (r *Registrar) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.DialTimeout)
	defer cancel()
	err := r.Deregister(ctx)
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// put 申请租约并写入服务信息
func (r *Registrar) put(ctx context.Context, info *registry.ServiceInfo) (clientv3.LeaseID, error) {
	value, err := json.Marshal(info)
	if err != nil {
		return 0, fmt.Errorf("etcd: failed to marshal service info: %w", err)
	}

	lease, err := r.client.Grant(ctx, int64(r.config.TTL/time.Second))
	if err != nil {
		return 0, fmt.Errorf("etcd: failed to grant lease: %w", err)
	}
	key := r.config.serviceKey(info.ServiceName, info.Address)
	if _, err := r.client.Put(ctx, key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		return 0, fmt.Errorf("etcd: failed to register service: %w", err)
	}
	return lease.ID, nil
}

// keepAlive 续约，通道关闭说明租约丢失，重新注册直到成功或 ctx 结束
func (r *Registrar) keepAlive(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		r.mu.Lock()
		leaseID, info := r.leaseID, r.info
		r.mu.Unlock()
		if info == nil {
			return
		}

		ch, err := r.client.KeepAlive(ctx, leaseID)
		if err == nil {
			for range ch {
			}
		}
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("lease lost, re-registering", "service", info.ServiceName, "error", err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reRegisterInterval):
			}
			id, err := r.put(ctx, info)
			if err == nil {
				r.mu.Lock()
				r.leaseID = id
				r.mu.Unlock()
				r.logger.Info("service re-registered", "service", info.ServiceName, "lease_id", int64(id))
				break
			}
			r.logger.Error("failed to re-register service", "error", err)
		}
	}
}
