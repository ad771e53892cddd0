package tcp

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/lk2023060901/aioserver/pkg/balancer"
	"github.com/lk2023060901/aioserver/pkg/registry"
	"github.com/lk2023060901/aioserver/pkg/session"
)

// ServiceDialer 通过服务发现解析实例，由负载均衡器选择后交给 Connector 拨号。
// 拨号失败的实例在本次 Dial 中被排除，依次尝试其余实例。
type ServiceDialer struct {
	connector *Connector
	resolver  registry.Resolver
	balancer  balancer.Balancer
	service   string
}

// NewServiceDialer b 为 nil 时使用轮询
func NewServiceDialer(c *Connector, r registry.Resolver, service string, b balancer.Balancer) *ServiceDialer {
	if b == nil {
		b = balancer.New(balancer.RoundRobinName)
	}
	return &ServiceDialer{connector: c, resolver: r, balancer: b, service: service}
}

// Dial key 供一致性哈希使用，其他策略可以为空
func (d *ServiceDialer) Dial(ctx context.Context, key string) (*session.Session, error) {
	nodes, err := d.resolver.Resolve(ctx, d.service)
	if err != nil {
		return nil, fmt.Errorf("tcp: resolve %s: %w", d.service, err)
	}

	var errs []error
	for len(nodes) > 0 {
		node := d.balancer.Pick(nodes, balancer.PickInfo{Key: key})
		if node == nil {
			break
		}
		s, err := d.connector.Dial(ctx, node.Address)
		if err == nil {
			return s, nil
		}
		if errors.Is(err, session.ErrClosed) || ctx.Err() != nil {
			return nil, err
		}
		d.connector.opts.logger.Warn("dial instance failed", "service", d.service, "addr", node.Address, "error", err)
		errs = append(errs, err)
		nodes = slices.DeleteFunc(slices.Clone(nodes), func(n *registry.ServiceInfo) bool { return n == node })
	}
	return nil, errors.Join(append([]error{fmt.Errorf("%w: %s", ErrNoInstance, d.service)}, errs...)...)
}
