package etcd

import (
	"fmt"

	"github.com/lk2023060901/aioserver/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// newClient 合并默认配置并连接 etcd
func newClient(cfg *Config) (*clientv3.Client, *Config, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := merged.Validate(); err != nil {
		return nil, nil, err
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   merged.Endpoints,
		DialTimeout: merged.DialTimeout,
		Username:    merged.Username,
		Password:    merged.Password,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("etcd: failed to create client: %w", err)
	}
	return client, merged, nil
}
