package balancer

import (
	"sync/atomic"

	"github.com/lk2023060901/aioserver/pkg/registry"
)

const RoundRobinName = "round_robin"

type roundRobinBuilder struct{}

func (roundRobinBuilder) Build() Balancer { return &roundRobinBalancer{} }
func (roundRobinBuilder) Name() string    { return RoundRobinName }

type roundRobinBalancer struct {
	counter atomic.Uint64
}

func (b *roundRobinBalancer) Pick(nodes []*registry.ServiceInfo, _ PickInfo) *registry.ServiceInfo {
	if len(nodes) == 0 {
		return nil
	}
	idx := b.counter.Add(1) - 1
	return nodes[idx%uint64(len(nodes))]
}
